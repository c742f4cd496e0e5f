package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeSeedFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Load_JSON(t *testing.T) {
	path := writeSeedFile(t, "seed.json", `{"posts": [{"id": "1", "title": "hi"}], "comments": []}`)
	l := NewLoader(path, zap.NewNop())

	ds, err := l.Load()

	require.NoError(t, err)
	require.Len(t, ds["posts"], 1)
	assert.Equal(t, "hi", ds["posts"][0]["title"])
	assert.Empty(t, ds["comments"])
}

func TestLoader_Load_YAML(t *testing.T) {
	path := writeSeedFile(t, "seed.yaml", `
posts:
  - id: 7
    title: first
    tags:
      - go
      - storage
comments: []
`)
	l := NewLoader(path, zap.NewNop())

	ds, err := l.Load()

	require.NoError(t, err)
	require.Len(t, ds["posts"], 1)
	assert.Equal(t, 7, ds["posts"][0]["id"])
	assert.Equal(t, "first", ds["posts"][0]["title"])
	assert.Equal(t, []interface{}{"go", "storage"}, ds["posts"][0]["tags"])
}

func TestLoader_Load_ReturnsIndependentCopies(t *testing.T) {
	path := writeSeedFile(t, "seed.json", `{"posts": [{"id": "1", "title": "hi"}]}`)
	l := NewLoader(path, zap.NewNop())

	first, err := l.Load()
	require.NoError(t, err)
	first["posts"][0]["title"] = "mutated"

	second, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "hi", second["posts"][0]["title"])
}

func TestLoader_Load_CachesParse(t *testing.T) {
	path := writeSeedFile(t, "seed.json", `{"posts": []}`)
	l := NewLoader(path, zap.NewNop())

	_, err := l.Load()
	require.NoError(t, err)

	// Without Watch running, a file change is invisible to Load.
	require.NoError(t, os.WriteFile(path, []byte(`{"users": []}`), 0o644))

	ds, err := l.Load()
	require.NoError(t, err)
	assert.Contains(t, ds, "posts")
	assert.NotContains(t, ds, "users")
}

func TestLoader_Load_MissingFile(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "absent.json"), zap.NewNop())

	_, err := l.Load()

	assert.Error(t, err)
}

func TestLoader_Load_RejectsWrongShape(t *testing.T) {
	path := writeSeedFile(t, "seed.json", `{"posts": {"id": "1"}}`)
	l := NewLoader(path, zap.NewNop())

	_, err := l.Load()

	assert.Error(t, err)
}

func TestLoader_Watch_ReloadsOnWrite(t *testing.T) {
	path := writeSeedFile(t, "seed.json", `{"posts": []}`)
	l := NewLoader(path, zap.NewNop())

	_, err := l.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- l.Watch(ctx)
	}()

	// Give the watcher a moment to register before touching the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"posts": [], "users": []}`), 0o644))

	assert.Eventually(t, func() bool {
		ds, err := l.Load()
		if err != nil {
			return false
		}
		_, ok := ds["users"]
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on context cancel")
	}
}

func TestLoader_Watch_KeepsPreviousOnBrokenEdit(t *testing.T) {
	path := writeSeedFile(t, "seed.json", `{"posts": []}`)
	l := NewLoader(path, zap.NewNop())

	_, err := l.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Watch(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"posts": `), 0o644))

	// The broken write never replaces the cached template.
	time.Sleep(300 * time.Millisecond)
	ds, err := l.Load()
	require.NoError(t, err)
	assert.Contains(t, ds, "posts")
}
