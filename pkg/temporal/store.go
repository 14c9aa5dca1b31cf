package temporal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/leowmjw/go-timeline-annotations/pkg/hcl"
)

// ErrDefinitionNotFound is returned by stores for unknown definition names
var ErrDefinitionNotFound = errors.New("definition not found")

// DefinitionStore keeps named timeline definitions
type DefinitionStore interface {
	GetDefinition(ctx context.Context, name string) (*DefinitionDocument, error)
	PutDefinition(ctx context.Context, name string, doc DefinitionDocument) error
	ListDefinitions(ctx context.Context) ([]string, error)
}

// MemoryDefinitionStore implements DefinitionStore in memory
type MemoryDefinitionStore struct {
	mu   sync.RWMutex
	docs map[string]DefinitionDocument
}

// NewMemoryDefinitionStore creates an empty store
func NewMemoryDefinitionStore() *MemoryDefinitionStore {
	return &MemoryDefinitionStore{
		docs: make(map[string]DefinitionDocument),
	}
}

// GetDefinition returns a copy of the named definition
func (m *MemoryDefinitionStore) GetDefinition(ctx context.Context, name string) (*DefinitionDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, exists := m.docs[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, name)
	}
	return &doc, nil
}

// PutDefinition stores or replaces a definition
func (m *MemoryDefinitionStore) PutDefinition(ctx context.Context, name string, doc DefinitionDocument) error {
	if name == "" {
		return fmt.Errorf("definition name must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[name] = doc
	return nil
}

// ListDefinitions returns the stored names in lexical order
func (m *MemoryDefinitionStore) ListDefinitions(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.docs))
	for name := range m.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// PreloadDefinitions stores every definition file found below dir. A file is
// stored under its base name without extension, so sessions/rest.hcl becomes
// "rest". Files are parsed first and the first invalid one aborts the load.
func PreloadDefinitions(ctx context.Context, store DefinitionStore, dir string) ([]string, error) {
	files, err := hcl.FindDefinitionFiles(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
		}
		doc := DefinitionDocument{
			Content: string(content),
			Format:  hcl.FormatForFilename(path),
		}
		if _, err := hcl.ParseDefinitionDocument(content, doc.Format); err != nil {
			return nil, fmt.Errorf("invalid definition %s: %w", path, err)
		}

		name := filepath.Base(path)
		name = strings.TrimSuffix(name, ".json")
		name = strings.TrimSuffix(name, filepath.Ext(name))
		if err := store.PutDefinition(ctx, name, doc); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}
