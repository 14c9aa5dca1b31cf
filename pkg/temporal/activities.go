package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/leowmjw/go-timeline-annotations/pkg/hcl"
)

// Activities groups the activities used by the annotation workflow
type Activities struct {
	logger *slog.Logger
	store  DefinitionStore
}

// NewActivities creates the activities backed by store
func NewActivities(logger *slog.Logger, store DefinitionStore) *Activities {
	return &Activities{
		logger: logger,
		store:  store,
	}
}

// LoadDefinitionActivity fetches a named definition and checks that it parses,
// so a broken document fails here rather than inside the workflow
func (a *Activities) LoadDefinitionActivity(ctx context.Context, name string) (*DefinitionDocument, error) {
	a.logger.Info("Loading definition", "name", name)

	doc, err := a.store.GetDefinition(ctx, name)
	if err != nil {
		a.logger.Error("Failed to load definition", "name", name, "error", err)
		if errors.Is(err, ErrDefinitionNotFound) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), "DefinitionNotFound", err)
		}
		return nil, fmt.Errorf("failed to load definition: %w", err)
	}

	if doc.Format == "" {
		doc.Format = hcl.DetectFormat([]byte(doc.Content))
	}
	if _, err := hcl.ParseDefinitionDocument([]byte(doc.Content), doc.Format); err != nil {
		a.logger.Error("Stored definition is invalid", "name", name, "error", err)
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidDefinition", err)
	}

	a.logger.Info("Successfully loaded definition", "name", name, "format", doc.Format)
	return doc, nil
}
