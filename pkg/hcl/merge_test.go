package hcl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionDirectoryMerging(t *testing.T) {
	// Test merging definition files from a directory
	t.Run("Split Directory", func(t *testing.T) {
		files, err := FindDefinitionFiles("testdata/split")
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join("testdata", "split", "conditions.hcl"),
			filepath.Join("testdata", "split", "events.hcl"),
			filepath.Join("testdata", "split", "overlaps.hcl.json"),
			filepath.Join("testdata", "split", "timeline.hcl"),
		}, files)

		merged, err := ParseDefinitionDirectory("testdata/split")
		require.NoError(t, err)

		content, err := os.ReadFile("testdata/annotated.hcl")
		require.NoError(t, err)
		expected, err := ParseDefinition(content, "annotated.hcl")
		require.NoError(t, err)

		AssertDefinitionsEquivalent(t, expected, merged)
	})

	t.Run("Duplicate Timeline Block", func(t *testing.T) {
		dir := t.TempDir()
		block := []byte("timeline {\n  length = 10\n}\n")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), block, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.hcl"), block, 0o644))

		_, err := ParseDefinitionDirectory(dir)
		assert.Error(t, err)
	})

	t.Run("Empty Directory", func(t *testing.T) {
		_, err := ParseDefinitionDirectory(t.TempDir())
		assert.Error(t, err)

		_, err = LoadDefinitionFiles(nil)
		assert.Error(t, err)
	})

	t.Run("Unreadable File", func(t *testing.T) {
		_, err := LoadDefinitionFiles([]string{filepath.Join(t.TempDir(), "missing.hcl")})
		assert.Error(t, err)
	})
}
