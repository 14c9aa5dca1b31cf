package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.temporal.io/sdk/client"
	"gopkg.in/yaml.v3"

	"github.com/leowmjw/go-timeline-annotations/pkg/hcl"
	"github.com/leowmjw/go-timeline-annotations/pkg/temporal"
	"github.com/leowmjw/go-timeline-annotations/pkg/timeline"
)

// report is what check prints for one definition
type report struct {
	Source   string             `json:"source" yaml:"source"`
	Index    *hcl.Index         `json:"index" yaml:"index"`
	Coverage map[string]float64 `json:"coverage" yaml:"coverage"`
	Warnings []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Snapshot timeline.Snapshot  `json:"snapshot" yaml:"snapshot"`
}

func main() {
	// Set up logging
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Define command line flags
	var (
		path       string
		mode       string // "check" or "submit"
		format     string
		merge      bool
		address    string
		namespace  string
		taskQueue  string
		timelineID string
		wait       bool
	)

	flag.StringVar(&path, "path", "", "Path to a definition file or directory (required)")
	flag.StringVar(&mode, "mode", "check", "Operation mode: 'check' or 'submit'")
	flag.StringVar(&format, "format", "text", "Output format: text, json or yaml")
	flag.BoolVar(&merge, "merge", false, "Treat a directory as one definition split across files (check only)")
	flag.StringVar(&address, "address", "localhost:7233", "Address of Temporal server")
	flag.StringVar(&namespace, "namespace", "default", "Temporal namespace")
	flag.StringVar(&taskQueue, "task-queue", temporal.DefaultTaskQueue, "Temporal task queue")
	flag.StringVar(&timelineID, "timeline-id", "", "Timeline ID for submit (defaults to the file name)")
	flag.BoolVar(&wait, "wait", false, "Wait for submitted timelines to close and print their result")
	flag.Parse()

	// Validate required parameters
	if path == "" {
		logger.Error("Path parameter is required")
		flag.Usage()
		os.Exit(1)
	}
	if mode != "check" && mode != "submit" {
		logger.Error("Mode must be either 'check' or 'submit'")
		os.Exit(1)
	}
	if format != "text" && format != "json" && format != "yaml" {
		logger.Error("Format must be one of text, json or yaml")
		os.Exit(1)
	}
	if merge && mode != "check" {
		logger.Error("-merge is only supported in check mode")
		os.Exit(1)
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		logger.Error("Failed to access path", "error", err)
		os.Exit(1)
	}

	if merge {
		if !fileInfo.IsDir() {
			logger.Error("-merge needs a directory", "path", path)
			os.Exit(1)
		}
		def, err := hcl.ParseDefinitionDirectory(path)
		if err != nil {
			logger.Error("Failed to load definition directory", "path", path, "error", err)
			os.Exit(1)
		}
		rep, err := checkDefinition(path, def)
		if err != nil {
			logger.Error("Definition is invalid", "path", path, "error", err)
			os.Exit(1)
		}
		if err := writeReport(os.Stdout, rep, format); err != nil {
			logger.Error("Failed to write report", "error", err)
			os.Exit(1)
		}
		return
	}

	files := []string{path}
	if fileInfo.IsDir() {
		logger.Info("Processing directory", "path", path)
		files, err = hcl.FindDefinitionFiles(path)
		if err != nil {
			logger.Error("Failed to read directory", "error", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			logger.Error("No definition files found in directory")
			os.Exit(1)
		}
	}

	var c client.Client
	if mode == "submit" {
		c, err = client.Dial(client.Options{
			HostPort:  address,
			Namespace: namespace,
		})
		if err != nil {
			logger.Error("Unable to create Temporal client", "error", err)
			os.Exit(1)
		}
		defer c.Close()
	}

	ctx := context.Background()
	failed := 0
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			logger.Error("Failed to read file", "file", file, "error", err)
			failed++
			continue
		}
		docFormat := hcl.FormatForFilename(file)
		def, err := hcl.ParseDefinitionDocument(content, docFormat)
		if err != nil {
			logger.Error("Failed to parse definition", "file", file, "error", err)
			failed++
			continue
		}
		rep, err := checkDefinition(file, def)
		if err != nil {
			logger.Error("Definition is invalid", "file", file, "error", err)
			failed++
			continue
		}

		if mode == "check" {
			if err := writeReport(os.Stdout, rep, format); err != nil {
				logger.Error("Failed to write report", "error", err)
				failed++
			}
			continue
		}

		id := timelineID
		if id == "" || len(files) > 1 {
			id = definitionName(file)
		}
		request := temporal.AnnotationRequest{
			TimelineID: id,
			Definition: &temporal.DefinitionDocument{Content: string(content), Format: docFormat},
		}
		if err := submit(ctx, c, taskQueue, request, wait, format, logger); err != nil {
			logger.Error("Failed to submit definition", "file", file, "error", err)
			failed++
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// definitionName is the file's base name without its extensions
func definitionName(file string) string {
	name := filepath.Base(file)
	name = strings.TrimSuffix(name, ".json")
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// checkDefinition builds def locally, exactly as the workflow would
func checkDefinition(source string, def *hcl.Definition) (report, error) {
	tl, ix, ws, err := def.BuildWith(timeline.NewIDRegistry(), hcl.WithDefaultStartTime(time.Now().UTC()))
	if err != nil {
		return report{}, err
	}

	rep := report{
		Source:   source,
		Index:    ix,
		Coverage: make(map[string]float64, len(ix.Conditions)),
		Warnings: ws.Strings(),
		Snapshot: tl.Snapshot(),
	}
	for name, id := range ix.Conditions {
		covered, err := tl.ConditionCoverage(id)
		if err != nil {
			return report{}, err
		}
		rep.Coverage[name] = covered
	}
	return rep, nil
}

func writeReport(w io.Writer, rep report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	}

	snap := rep.Snapshot
	fmt.Fprintf(w, "%s: %s timeline, %d samples from %g to %g\n",
		rep.Source, snap.Unit.Name, snap.Length, snap.Init, snap.End)

	var names []string
	if rep.Index != nil {
		for name := range rep.Index.Conditions {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	members := make(map[int]int, len(snap.Conditions))
	for _, c := range snap.Conditions {
		members[c.ID] = len(c.Events)
	}
	for _, name := range names {
		id := rep.Index.Conditions[name]
		fmt.Fprintf(w, "  condition %s (%d): %d events, %g %s covered\n",
			name, id, members[id], rep.Coverage[name], snap.Unit.Acronym)
	}
	if len(snap.OverlapPermissions) > 0 {
		fmt.Fprintf(w, "  overlaps allowed: %v\n", snap.OverlapPermissions)
	}
	for _, warning := range rep.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	return nil
}

// submit starts an annotation workflow for the request
func submit(ctx context.Context, c client.Client, taskQueue string, request temporal.AnnotationRequest, wait bool, format string, logger *slog.Logger) error {
	options := client.StartWorkflowOptions{
		ID:        temporal.GenerateAnnotationWorkflowID(request.TimelineID),
		TaskQueue: taskQueue,
	}

	run, err := c.ExecuteWorkflow(ctx, options, temporal.AnnotationWorkflow, request)
	if err != nil {
		return fmt.Errorf("failed to start annotation workflow: %w", err)
	}
	logger.Info("Started annotation workflow",
		"timeline_id", request.TimelineID,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID())

	if !wait {
		return nil
	}

	var result temporal.AnnotationResult
	if err := run.Get(ctx, &result); err != nil {
		return fmt.Errorf("failed to get annotation result: %w", err)
	}
	logger.Info("Annotation workflow closed",
		"timeline_id", result.TimelineID,
		"closed_by", result.ClosedBy,
		"applied", result.Applied,
		"failed", result.Failed)

	return writeReport(os.Stdout, report{
		Source:   run.GetID(),
		Index:    result.Index,
		Snapshot: result.Snapshot,
	}, format)
}
