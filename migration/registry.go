package migration

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mandelsoft/vfs/pkg/vfs"
)

// Hook lets program code contribute migrations. It receives the migrations
// discovered so far, keyed by ID, and returns the map that should replace
// them. Entries may be added, replaced or removed.
type Hook func(map[string]Migration) map[string]Migration

// Skipped is a definition that was ignored during discovery.
type Skipped struct {
	// Path of the definition file, with an index suffix for entries of a
	// sequence, e.g. "/migrations/seed.yaml[2]".
	Path string
	// ID of the migration, if it could be determined.
	ID  string
	Err error
}

// Redefinition records a migration ID that was defined more than once. The
// last definition wins.
type Redefinition struct {
	ID       string
	Previous string
	Current  string
}

// Catalog is the result of a discovery pass.
type Catalog struct {
	// Migrations sorted by ID.
	Migrations   []Migration
	Skipped      []Skipped
	Redefinition []Redefinition

	byID map[string]Migration
}

// Get returns the migration with the given ID.
func (c *Catalog) Get(id string) (Migration, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// Map returns all migrations keyed by ID.
func (c *Catalog) Map() map[string]Migration {
	return c.byID
}

// IDs returns the IDs of all migrations in ascending order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.Migrations))
	for i, m := range c.Migrations {
		ids[i] = m.ID
	}
	return ids
}

// Err returns an error that aggregates the reasons definitions were skipped,
// or nil if none were.
func (c *Catalog) Err() error {
	var merr *multierror.Error
	for _, s := range c.Skipped {
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", s.Path, s.Err))
	}
	return merr.ErrorOrNil()
}

// Registry discovers migrations from a directory tree and from hooks.
type Registry struct {
	fs    vfs.FileSystem
	dir   string
	hooks []Hook
}

// NewRegistry returns a registry that reads migrations from dir on fs, and
// then passes them through the given hooks in order.
func NewRegistry(fs vfs.FileSystem, dir string, hooks ...Hook) *Registry {
	return &Registry{fs: fs, dir: dir, hooks: hooks}
}

// AddHook appends a hook to the registry.
func (r *Registry) AddHook(h Hook) {
	r.hooks = append(r.hooks, h)
}

// FS returns the filesystem migrations are read from.
func (r *Registry) FS() vfs.FileSystem {
	return r.fs
}

// Discover walks the migrations directory and runs the hooks, and returns the
// resulting catalog. A missing directory is not an error. Definition files
// that can't be parsed are skipped and reported in the catalog, and don't stop
// the rest of the discovery.
func (r *Registry) Discover() (*Catalog, error) {
	var (
		found   = map[string]Migration{}
		cat     = &Catalog{}
		files   []string
		walkErr error
	)

	if r.dir != "" {
		walkErr = vfs.Walk(r.fs, r.dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if path == r.dir && vfs.IsErrNotExist(err) {
					return nil
				}
				return err
			}
			if !info.IsDir() {
				files = append(files, path)
			}
			return nil
		})
	}
	if walkErr != nil && !vfs.IsErrNotExist(walkErr) {
		return nil, fmt.Errorf("failed walking migrations directory %s: %w", r.dir, walkErr)
	}
	slices.Sort(files)

	add := func(m Migration) {
		if prev, ok := found[m.ID]; ok {
			cat.Redefinition = append(cat.Redefinition, Redefinition{
				ID: m.ID, Previous: prev.Source, Current: m.Source,
			})
		}
		found[m.ID] = m
	}

	// SQL files referenced by definition files are steps of those migrations,
	// not migrations of their own.
	defs := map[string][]Migration{}
	referenced := map[string]struct{}{}
	for _, path := range files {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		data, err := vfs.ReadFile(r.fs, path)
		if err != nil {
			cat.Skipped = append(cat.Skipped, Skipped{Path: path, Err: err})
			continue
		}
		migs, skipped := parseDefinitions(path, data)
		cat.Skipped = append(cat.Skipped, skipped...)
		for _, m := range migs {
			for _, s := range []Step{m.Up, m.Down} {
				if s.Kind() == KindFile {
					referenced[filepath.Clean(s.Path())] = struct{}{}
				}
			}
		}
		defs[path] = migs
	}

	for _, path := range files {
		base := filepath.Base(path)
		ext := filepath.Ext(base)
		if strings.EqualFold(ext, ".sql") {
			if _, ok := referenced[filepath.Clean(path)]; ok {
				continue
			}
			add(Migration{
				ID:          strings.TrimSuffix(base, ext),
				Description: "SQL file: " + base,
				Group:       "fs",
				Up:          File(path),
				Source:      path,
			})
			continue
		}
		for _, m := range defs[path] {
			add(m)
		}
	}

	for _, hook := range r.hooks {
		prev := found
		found = hook(maps.Clone(found))
		if found == nil {
			found = map[string]Migration{}
		}
		for _, id := range slices.Sorted(maps.Keys(found)) {
			m := found[id]
			if m.Source == "" {
				m.Source = "hook"
			}
			if m.ID == "" {
				m.ID = id
			}
			found[id] = m
			if p, ok := prev[id]; ok && p.Source != m.Source {
				cat.Redefinition = append(cat.Redefinition, Redefinition{
					ID: id, Previous: p.Source, Current: m.Source,
				})
			}
		}
	}

	cat.byID = make(map[string]Migration, len(found))
	for _, id := range slices.Sorted(maps.Keys(found)) {
		m := found[id]
		switch {
		case m.ID != id:
			cat.Skipped = append(cat.Skipped, Skipped{
				Path: m.Source, ID: id,
				Err: fmt.Errorf("registered under ID %q but defines ID %q", id, m.ID),
			})
			continue
		case m.Up.IsZero():
			cat.Skipped = append(cat.Skipped, Skipped{
				Path: m.Source, ID: id,
				Err: &Error{Code: CodeInvalidMigration, ID: id, Err: errors.New("missing up step")},
			})
			continue
		}
		cat.byID[id] = m
		cat.Migrations = append(cat.Migrations, m)
	}

	return cat, nil
}
