package checklist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
	"github.com/p-blackswan/test-dashboard/lru"
)

const readmeFile = "README.md"

// Mapping resolves project identifiers to checklist file names and back.
type Mapping interface {
	ChecklistFile(projectID string) (string, bool)
	ProjectForFile(filename string) (string, bool)
}

// Summary describes one checklist file for the catalog listing.
type Summary struct {
	ProjectID     string `json:"projectId"`
	Name          string `json:"name"`
	Filename      string `json:"filename"`
	ItemCount     int    `json:"itemCount"`
	CategoryCount int    `json:"categoryCount"`
}

type cached struct {
	doc     Document
	title   string
	modTime time.Time
	size    int64
}

// Catalog reads checklists from a directory and caches parsed documents.
type Catalog struct {
	dir     string
	mapping Mapping
	cache   *lru.Cache[string, cached]
	logger  zerolog.Logger
}

// NewCatalog creates a catalog over dir. mapping may be nil.
func NewCatalog(dir string, mapping Mapping, cacheSize int, logger zerolog.Logger) *Catalog {
	if cacheSize < 1 {
		cacheSize = 64
	}
	return &Catalog{
		dir:     dir,
		mapping: mapping,
		cache:   lru.New[string, cached](cacheSize),
		logger:  logger.With().Str("component", "checklists").Logger(),
	}
}

// Dir returns the checklist directory.
func (c *Catalog) Dir() string { return c.dir }

// Resolve returns the checklist file name for a project: the mapped file when
// the project is registered, otherwise "<projectID>.md".
func (c *Catalog) Resolve(projectID string) string {
	if c.mapping != nil {
		if f, ok := c.mapping.ChecklistFile(projectID); ok {
			return f
		}
	}
	return projectID + ".md"
}

// Get parses the checklist for projectID.
func (c *Catalog) Get(projectID string) (Document, error) {
	filename := c.Resolve(projectID)
	entry, err := c.load(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, dberrors.NewNotFound("checklist", projectID)
		}
		return Document{}, err
	}
	return entry.doc, nil
}

// List summarizes every checklist in the directory except README.md.
// A missing directory yields an empty list.
func (c *Catalog) List() ([]Summary, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, fmt.Errorf("failed to read checklist dir: %w", err)
	}

	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".md") || name == readmeFile {
			continue
		}
		entry, err := c.load(name)
		if err != nil {
			c.logger.Warn().Err(err).Str("file", name).Msg("Skipping unreadable checklist")
			continue
		}

		base := strings.TrimSuffix(name, ".md")
		s := Summary{
			ProjectID:     base,
			Name:          entry.title,
			Filename:      name,
			ItemCount:     len(entry.doc.Items),
			CategoryCount: len(entry.doc.Categories),
		}
		if s.Name == "" {
			s.Name = base
		}
		if c.mapping != nil {
			if id, ok := c.mapping.ProjectForFile(name); ok {
				s.ProjectID = id
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// Invalidate drops a cached document. Returns true if it was cached.
func (c *Catalog) Invalidate(filename string) bool {
	return c.cache.Delete(filename)
}

// CacheStats exposes cache counters for metrics.
func (c *Catalog) CacheStats() lru.Stats {
	return c.cache.Stats()
}

// load returns the parsed file, reparsing when the file changed on disk.
func (c *Catalog) load(filename string) (cached, error) {
	path := filepath.Join(c.dir, filepath.Base(filename))
	info, err := os.Stat(path)
	if err != nil {
		return cached{}, err
	}

	if entry, ok := c.cache.Get(filename); ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cached{}, err
	}
	entry := cached{
		doc:     Parse(string(raw)),
		title:   Title(raw),
		modTime: info.ModTime(),
		size:    info.Size(),
	}
	c.cache.Put(filename, entry)
	c.logger.Debug().Str("file", filename).Int("items", len(entry.doc.Items)).Msg("Parsed checklist")
	return entry, nil
}
