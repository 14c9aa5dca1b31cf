package hcl

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// MergeDefinitionFiles parses multiple definition files into a single body.
// This mimics how Terraform loads multiple .tf files in a directory: blocks
// from every file are combined and a second timeline block is an error.
// Files ending in .json are read as HCL JSON.
func MergeDefinitionFiles(filePaths []string) (hcl.Body, error) {
	parser := hclparse.NewParser()
	files := make([]*hcl.File, 0, len(filePaths))

	for _, path := range filePaths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", path, err)
		}

		var file *hcl.File
		var diags hcl.Diagnostics
		if strings.HasSuffix(path, ".json") {
			file, diags = parser.ParseJSON(content, path)
		} else {
			file, diags = parser.ParseHCL(content, path)
		}
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %s", path, diags.Error())
		}
		files = append(files, file)
	}

	return hcl.MergeFiles(files), nil
}

// LoadDefinitionFiles parses and merges the given files into one definition
func LoadDefinitionFiles(filePaths []string) (*Definition, error) {
	if len(filePaths) == 0 {
		return nil, fmt.Errorf("no definition files given")
	}
	body, err := MergeDefinitionFiles(filePaths)
	if err != nil {
		return nil, err
	}
	return decodeDefinition(body)
}

// FindDefinitionFiles lists the definition files below dirPath in lexical order
func FindDefinitionFiles(dirPath string) ([]string, error) {
	var files []string
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && (IsHCLBasedOnExtension(info.Name()) || strings.HasSuffix(info.Name(), ".hcl.json")) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dirPath, err)
	}
	sort.Strings(files)
	return files, nil
}

// ParseDefinitionDirectory parses all definition files in a directory and
// returns the merged definition
func ParseDefinitionDirectory(dirPath string) (*Definition, error) {
	files, err := FindDefinitionFiles(dirPath)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no definition files found in directory %s", dirPath)
	}
	return LoadDefinitionFiles(files)
}
