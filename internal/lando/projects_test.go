package lando

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProjectFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lando.yml"), []byte(content), 0o644))
}

func TestScanProjects(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, filepath.Join(root, "blog"), "name: my-blog\nrecipe: lamp\n")
	writeProjectFile(t, filepath.Join(root, "shop"), "recipe: drupal10\n")

	projects, err := ScanProjects(root)
	require.NoError(t, err)
	require.Len(t, projects, 2)

	byName := map[string]Project{}
	for _, p := range projects {
		byName[p.Name] = p
	}

	blog, ok := byName["my-blog"]
	require.True(t, ok)
	assert.Equal(t, "lamp", blog.Recipe)

	// Missing name falls back to the directory basename.
	shop, ok := byName["shop"]
	require.True(t, ok)
	assert.Equal(t, "drupal10", shop.Recipe)
	assert.Equal(t, filepath.Join(root, "shop"), shop.Dir)
}

func TestScanProjectsDepthLimit(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, filepath.Join(root, "a", "b"), "name: shallow\n")
	writeProjectFile(t, filepath.Join(root, "a", "b", "c", "d"), "name: deep\n")

	projects, err := ScanProjects(root)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "shallow", projects[0].Name)
}

func TestScanProjectsSkipsMalformed(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, filepath.Join(root, "good"), "name: good\n")
	writeProjectFile(t, filepath.Join(root, "bad"), "name: [unclosed\n")

	projects, err := ScanProjects(root)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "good", projects[0].Name)
}

func TestScanProjectsEmpty(t *testing.T) {
	projects, err := ScanProjects(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, projects)
}
