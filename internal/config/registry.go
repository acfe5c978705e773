package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/p-blackswan/test-dashboard/internal/models"
)

// Project is one entry of the project registry file.
type Project struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	BaseURL     string   `yaml:"base_url"`
	Port        int      `yaml:"port"`
	Checklist   string   `yaml:"checklist"`
	Aliases     []string `yaml:"aliases"`
	TestDir     string   `yaml:"test_dir"`
	TestCommand []string `yaml:"test_command"`
}

// Runnable reports whether the project can be executed by the background runner.
func (p Project) Runnable() bool {
	return len(p.TestCommand) > 0
}

// Registry is the static set of known projects. It is loaded once at startup
// and passed to the components that need it.
type Registry struct {
	Projects []Project `yaml:"projects"`

	byID map[string]int
}

// LoadRegistry reads a registry file. A missing file yields an empty registry.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewRegistry(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	return ParseRegistry(raw)
}

// ParseRegistry decodes registry YAML.
func ParseRegistry(raw []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	return NewRegistry(r.Projects)
}

// NewRegistry validates projects and builds the lookup index.
func NewRegistry(projects []Project) (*Registry, error) {
	r := &Registry{Projects: projects, byID: make(map[string]int)}
	for i, p := range projects {
		ids := append([]string{p.ID}, p.Aliases...)
		for _, id := range ids {
			if !models.ValidProjectID(id) {
				return nil, fmt.Errorf("project %d: invalid id %q", i, id)
			}
			if _, dup := r.byID[id]; dup {
				return nil, fmt.Errorf("project %d: duplicate id %q", i, id)
			}
			r.byID[id] = i
		}
		if p.Checklist != "" && (strings.ContainsAny(p.Checklist, `/\`) || !strings.HasSuffix(p.Checklist, ".md")) {
			return nil, fmt.Errorf("project %s: checklist must be a .md file name", p.ID)
		}
	}
	return r, nil
}

// Lookup finds a project by id or alias.
func (r *Registry) Lookup(id string) (Project, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Project{}, false
	}
	return r.Projects[i], true
}

// All returns the projects in registry order.
func (r *Registry) All() []Project {
	return r.Projects
}

// ChecklistFile maps a project id or alias to its checklist file.
func (r *Registry) ChecklistFile(id string) (string, bool) {
	p, ok := r.Lookup(id)
	if !ok || p.Checklist == "" {
		return "", false
	}
	return p.Checklist, true
}

// ProjectForFile returns the first project id, in registry order, that maps to filename.
func (r *Registry) ProjectForFile(filename string) (string, bool) {
	for _, p := range r.Projects {
		if p.Checklist == filename {
			return p.ID, true
		}
	}
	return "", false
}

// Models converts the registry to persisted project rows.
func (r *Registry) Models() []models.Project {
	out := make([]models.Project, 0, len(r.Projects))
	for _, p := range r.Projects {
		m := models.Project{ID: p.ID, Name: p.Name}
		if m.Name == "" {
			m.Name = p.ID
		}
		if p.BaseURL != "" {
			u := p.BaseURL
			m.BaseURL = &u
		}
		if p.Port != 0 {
			port := p.Port
			m.Port = &port
		}
		out = append(out, m)
	}
	return out
}
