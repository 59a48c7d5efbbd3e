package migration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.hackfix.me/sqlmgr/migration"
)

const migDir = "/migrations"

func newFS(t *testing.T, files map[string]string) vfs.FileSystem {
	t.Helper()

	fs := memoryfs.New()
	require.NoError(t, fs.MkdirAll(migDir, 0o755))
	for name, content := range files {
		path := filepath.Join(migDir, name)
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, vfs.WriteFile(fs, path, []byte(content), 0o644))
	}

	return fs
}

func TestRegistryDiscover(t *testing.T) {
	t.Parallel()

	t.Run("ok/sql_files", func(t *testing.T) {
		t.Parallel()

		fs := newFS(t, map[string]string{
			"002_users.sql":      "CREATE TABLE users (id INT);",
			"001_init.SQL":       "CREATE TABLE meta (k TEXT);",
			"sub/003_nested.sql": "SELECT 1;",
			"README.md":          "not a migration",
		})
		cat, err := migration.NewRegistry(fs, migDir).Discover()
		require.NoError(t, err)

		assert.Equal(t, []string{"001_init", "002_users", "003_nested"}, cat.IDs())
		assert.Empty(t, cat.Skipped)
		assert.NoError(t, cat.Err())

		m, ok := cat.Get("002_users")
		require.True(t, ok)
		assert.Equal(t, "SQL file: 002_users.sql", m.Description)
		assert.Equal(t, "fs", m.Group)
		assert.Equal(t, migration.KindFile, m.Up.Kind())
		assert.Equal(t, "/migrations/002_users.sql", m.Up.Path())
		assert.False(t, m.Reversible())
	})

	t.Run("ok/definitions", func(t *testing.T) {
		t.Parallel()

		fs := newFS(t, map[string]string{
			"schema.yaml": `
- id: create_t
  description: Create table t
  group: core
  up: CREATE TABLE t (x INT);
  down:
    sql: DROP TABLE t;
- id: seed_t
  depends: create_t
  up:
    file: sql/seed_up.sql
  down:
    file: sql/seed_down.sql
`,
			"sql/seed_up.sql":   "INSERT INTO t VALUES (1);",
			"sql/seed_down.sql": "DELETE FROM t;",
			"index.json":        `{"id": "idx", "depends": ["create_t"], "up": "CREATE INDEX i ON t (x);"}`,
		})
		cat, err := migration.NewRegistry(fs, migDir).Discover()
		require.NoError(t, err)

		assert.Equal(t, []string{"create_t", "idx", "seed_t"}, cat.IDs())
		assert.Empty(t, cat.Skipped)

		m, _ := cat.Get("create_t")
		assert.Equal(t, "Create table t", m.Label())
		assert.Equal(t, "core", m.Group)
		assert.Equal(t, migration.KindSQL, m.Up.Kind())
		assert.Equal(t, "DROP TABLE t;", m.Down.Text())
		assert.Equal(t, "/migrations/schema.yaml", m.Source)

		m, _ = cat.Get("seed_t")
		assert.Equal(t, []string{"create_t"}, m.Depends)
		assert.Equal(t, "/migrations/sql/seed_up.sql", m.Up.Path())
		assert.Equal(t, "/migrations/sql/seed_down.sql", m.Down.Path())
		assert.Equal(t, "seed_t", m.Label())

		m, _ = cat.Get("idx")
		assert.Equal(t, []string{"create_t"}, m.Depends)
	})

	t.Run("ok/missing_dir", func(t *testing.T) {
		t.Parallel()

		cat, err := migration.NewRegistry(memoryfs.New(), "/nope").Discover()
		require.NoError(t, err)
		assert.Empty(t, cat.Migrations)
	})

	t.Run("ok/skipped_entries", func(t *testing.T) {
		t.Parallel()

		fs := newFS(t, map[string]string{
			"bad.yaml": "id: [unterminated",
			"list.yml": `
- id: good
  up: SELECT 1;
- description: no id
  up: SELECT 2;
- id: no_up
- id: both
  up:
    sql: SELECT 1;
    file: x.sql
- id: empty_up
  up: ""
`,
			"scalar.yaml": "just a string",
		})
		cat, err := migration.NewRegistry(fs, migDir).Discover()
		require.NoError(t, err)

		assert.Equal(t, []string{"good"}, cat.IDs())

		paths := make([]string, 0, len(cat.Skipped))
		for _, s := range cat.Skipped {
			paths = append(paths, s.Path)
		}
		assert.ElementsMatch(t, []string{
			"/migrations/bad.yaml",
			"/migrations/list.yml[1]",
			"/migrations/list.yml[2]",
			"/migrations/list.yml[3]",
			"/migrations/list.yml[4]",
			"/migrations/scalar.yaml",
		}, paths)

		for _, s := range cat.Skipped {
			if s.ID == "no_up" {
				assert.ErrorIs(t, s.Err, migration.ErrInvalidMigration)
			}
		}

		err = cat.Err()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "6 errors occurred")
	})

	t.Run("ok/redefinition_last_wins", func(t *testing.T) {
		t.Parallel()

		fs := newFS(t, map[string]string{
			"a.yaml": "id: dup\nup: SELECT 1;",
			"b.yaml": "id: dup\nup: SELECT 2;",
		})
		cat, err := migration.NewRegistry(fs, migDir).Discover()
		require.NoError(t, err)

		m, ok := cat.Get("dup")
		require.True(t, ok)
		assert.Equal(t, "SELECT 2;", m.Up.Text())
		require.Len(t, cat.Redefinition, 1)
		assert.Equal(t, migration.Redefinition{
			ID: "dup", Previous: "/migrations/a.yaml", Current: "/migrations/b.yaml",
		}, cat.Redefinition[0])
	})

	t.Run("ok/hooks", func(t *testing.T) {
		t.Parallel()

		fs := newFS(t, map[string]string{
			"001_base.sql": "CREATE TABLE base (id INT);",
			"002_drop.sql": "SELECT 1;",
		})
		called := false
		fn := func(context.Context, migration.Conn) error {
			called = true
			return nil
		}

		reg := migration.NewRegistry(fs, migDir, func(found map[string]migration.Migration) map[string]migration.Migration {
			found["hooked"] = migration.Migration{
				Depends: []string{"001_base"},
				Up:      migration.Call(fn),
			}
			delete(found, "002_drop")
			return found
		})
		reg.AddHook(func(found map[string]migration.Migration) map[string]migration.Migration {
			m := found["001_base"]
			m.Description = "Overridden"
			m.Source = ""
			found["001_base"] = m
			found["mismatch"] = migration.Migration{ID: "other", Up: migration.SQL("SELECT 1;")}
			found["no_up"] = migration.Migration{ID: "no_up"}
			return found
		})

		cat, err := reg.Discover()
		require.NoError(t, err)

		assert.Equal(t, []string{"001_base", "hooked"}, cat.IDs())

		m, _ := cat.Get("hooked")
		assert.Equal(t, "hooked", m.ID)
		assert.Equal(t, "hook", m.Source)
		assert.Equal(t, migration.KindFunc, m.Up.Kind())
		assert.False(t, called)

		m, _ = cat.Get("001_base")
		assert.Equal(t, "Overridden", m.Description)
		require.Len(t, cat.Redefinition, 1)
		assert.Equal(t, "001_base", cat.Redefinition[0].ID)
		assert.Equal(t, "hook", cat.Redefinition[0].Current)

		require.Len(t, cat.Skipped, 2)
		assert.Equal(t, "mismatch", cat.Skipped[0].ID)
		assert.Equal(t, "no_up", cat.Skipped[1].ID)
		assert.ErrorIs(t, cat.Skipped[1].Err, migration.ErrInvalidMigration)
	})

	t.Run("ok/hook_returns_nil", func(t *testing.T) {
		t.Parallel()

		fs := newFS(t, map[string]string{"001.sql": "SELECT 1;"})
		reg := migration.NewRegistry(fs, migDir, func(map[string]migration.Migration) map[string]migration.Migration {
			return nil
		})
		cat, err := reg.Discover()
		require.NoError(t, err)
		assert.Empty(t, cat.Migrations)
	})
}
