package app

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/require"

	actx "go.hackfix.me/sqlmgr/app/context"
	"go.hackfix.me/sqlmgr/db"
	dbtypes "go.hackfix.me/sqlmgr/db/types"
)

var timeNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func timeNowFn() time.Time {
	return timeNow
}

const migDir = "/data/migrations"

type testApp struct {
	*App
	fs             vfs.FileSystem
	db             *db.DB
	stdout, stderr *safeBuffer
	env            *mockEnv
}

// newTestApp returns an application backed by an in-memory filesystem and a
// fresh SQLite database. files are written to the migrations directory.
func newTestApp(t *testing.T, files map[string]string, opts ...Option) *testApp {
	t.Helper()

	ctx := t.Context()
	d, err := db.Open(ctx, dbtypes.DialectSQLite,
		filepath.Join(t.TempDir(), "sqlmgr.db")+"?_pragma=busy_timeout(5000)", timeNowFn)
	require.NoError(t, err)
	// All work happens sequentially, and a single connection avoids SQLite
	// write conflicts between connections.
	d.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = d.Close() })

	fs := memoryfs.New()
	require.NoError(t, fs.MkdirAll(migDir, 0o755))
	for name, content := range files {
		path := filepath.Join(migDir, name)
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, vfs.WriteFile(fs, path, []byte(content), 0o644))
	}

	var (
		stdin            = strings.NewReader("")
		stdoutW, stderrW = newSafeBuffer(), newSafeBuffer()
	)

	env := &mockEnv{env: map[string]string{}}
	defaultOpts := []Option{
		WithTimeNow(timeNowFn),
		WithEnv(env),
		WithDB(d),
		WithContext(ctx),
		WithFDs(stdin, stdoutW, stderrW),
		WithFS(fs),
		WithLogger(false, false),
	}
	app, err := New("sqlmgr", "/config.json", "/data", append(defaultOpts, opts...)...)
	require.NoError(t, err)

	return &testApp{
		App: app, fs: fs, db: d,
		stdout: stdoutW, stderr: stderrW, env: env,
	}
}

// Run executes the command line args, resetting the output buffers first.
func (ta *testApp) Run(args ...string) error {
	ta.stdout.Reset()
	ta.stderr.Reset()
	// The configuration is reloaded on each run, like separate invocations.
	ta.ctx.Config = nil

	return ta.App.Run(args)
}

func (ta *testApp) writeConfig(t *testing.T, cfgJSON string) {
	t.Helper()
	require.NoError(t, vfs.WriteFile(ta.fs, "/config.json", []byte(cfgJSON), 0o644))
}

type mockEnv struct {
	mx  sync.RWMutex
	env map[string]string
}

var _ actx.Environment = (*mockEnv)(nil)

func (me *mockEnv) Get(key string) string {
	me.mx.RLock()
	defer me.mx.RUnlock()
	return me.env[key]
}

func (me *mockEnv) Set(key, val string) error {
	me.mx.Lock()
	defer me.mx.Unlock()
	me.env[key] = val
	return nil
}

// safeBuffer is a thread-safe buffer.
type safeBuffer struct {
	mx  sync.RWMutex
	buf *bytes.Buffer
}

var _ io.Writer = (*safeBuffer)(nil)

func newSafeBuffer() *safeBuffer {
	return &safeBuffer{buf: &bytes.Buffer{}}
}

func (b *safeBuffer) Write(p []byte) (n int, err error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) Reset() {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.buf.Reset()
}

func (b *safeBuffer) String() string {
	b.mx.RLock()
	defer b.mx.RUnlock()
	return b.buf.String()
}
