package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRegistry = `
projects:
  - id: kanban
    name: Kanban
    base_url: https://kanban.exe.pm
    port: 3001
    checklist: kanban.md
    test_dir: /srv/kanban
    test_command: ["npx", "playwright", "test"]
  - id: crossfit-generator
    name: WODForge
    checklist: wodforge.md
    aliases: [wodforge]
`

func TestParseRegistry(t *testing.T) {
	r, err := ParseRegistry([]byte(sampleRegistry))
	require.NoError(t, err)
	require.Len(t, r.Projects, 2)
	assert.Len(t, r.All(), 2)

	p, ok := r.Lookup("wodforge")
	require.True(t, ok)
	assert.Equal(t, "crossfit-generator", p.ID)

	f, ok := r.ChecklistFile("wodforge")
	assert.True(t, ok)
	assert.Equal(t, "wodforge.md", f)

	id, ok := r.ProjectForFile("wodforge.md")
	assert.True(t, ok)
	assert.Equal(t, "crossfit-generator", id)

	_, ok = r.ChecklistFile("unknown")
	assert.False(t, ok)

	kanban, _ := r.Lookup("kanban")
	assert.True(t, kanban.Runnable())
	assert.False(t, p.Runnable())
}

func TestParseRegistry_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad id":         "projects:\n  - id: 'bad id'\n",
		"duplicate":      "projects:\n  - id: a\n  - id: b\n    aliases: [a]\n",
		"path checklist": "projects:\n  - id: a\n    checklist: ../etc/passwd.md\n",
		"not markdown":   "projects:\n  - id: a\n    checklist: a.txt\n",
		"bad yaml":       "projects: [",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadRegistry_MissingFileIsEmpty(t *testing.T) {
	r, err := LoadRegistry(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, r.Projects)
	_, ok := r.Lookup("kanban")
	assert.False(t, ok)
}

func TestLoadRegistry_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRegistry), 0o644))
	r, err := LoadRegistry(path)
	require.NoError(t, err)

	rows := r.Models()
	require.Len(t, rows, 2)
	assert.Equal(t, 3001, *rows[0].Port)
	assert.Equal(t, "https://kanban.exe.pm", *rows[0].BaseURL)
	assert.Nil(t, rows[1].Port)
}
