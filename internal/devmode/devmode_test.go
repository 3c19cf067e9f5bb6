package devmode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacore/pkg/introspect"
	"metacore/pkg/metamodel"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewRequiresRoot(t *testing.T) {
	_, err := New(" ", nil, Options{})
	assert.ErrorIs(t, err, ErrNoRoot)
	_, err = New(filepath.Join(t.TempDir(), "missing"), nil, Options{})
	assert.Error(t, err)
}

func TestWatcherSkipsHiddenAndVendor(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"domain", ".git", "vendor", "_examples", "domain/sub"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	w, err := New(root, nil, Options{})
	require.NoError(t, err)
	defer w.fsw.Close()

	assert.ElementsMatch(t, []string{
		root,
		filepath.Join(root, "domain"),
		filepath.Join(root, "domain", "sub"),
	}, w.Watched())
}

func TestWatcherDebouncesGoChanges(t *testing.T) {
	root := t.TempDir()
	batches := make(chan []string, 4)
	w, err := New(root, func(_ context.Context, paths []string) { batches <- paths }, Options{Debounce: 200 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeFile(t, filepath.Join(root, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, "a.go"), "package a")
	writeFile(t, filepath.Join(root, "b.go"), "package a")

	select {
	case paths := <-batches:
		assert.Contains(t, paths, filepath.Join(root, "a.go"))
		assert.Contains(t, paths, filepath.Join(root, "b.go"))
		assert.NotContains(t, paths, filepath.Join(root, "notes.txt"))
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	batches := make(chan []string, 4)
	w, err := New(root, func(_ context.Context, paths []string) { batches <- paths }, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	sub := filepath.Join(root, "orders")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool {
		for _, d := range w.Watched() {
			if d == sub {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	writeFile(t, filepath.Join(sub, "order.go"), "package orders")
	select {
	case paths := <-batches:
		assert.Equal(t, []string{filepath.Join(sub, "order.go")}, paths)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}
}

type Account struct {
	Owner string
}

func (a *Account) Title() string { return a.Owner }

type Ledger struct {
	Name string
}

func (l *Ledger) Title() string { return l.Name }

func TestLiveSwapsLoaders(t *testing.T) {
	ctx := context.Background()
	var builds atomic.Int32
	var fail atomic.Bool
	build := func(context.Context) (*metamodel.Loader, error) {
		if fail.Load() {
			return nil, errors.New("does not compile")
		}
		types := []introspect.TypeRef{introspect.RefOf(reflect.TypeOf(Account{}))}
		if builds.Add(1) > 1 {
			types = append(types, introspect.RefOf(reflect.TypeOf(Ledger{})))
		}
		return metamodel.NewLoader(introspect.NewReflectIntrospector(), metamodel.Options{
			Mode:  metamodel.ModeFull,
			Types: types,
		})
	}

	live, err := NewLive(ctx, build, nil)
	require.NoError(t, err)
	first := live.Loader()
	assert.Len(t, live.Specifications(), 1)
	gen := live.Generation()

	live.Reload(ctx, []string{"ledger.go"})
	assert.NotSame(t, first, live.Loader())
	assert.Len(t, live.Specifications(), 2)
	assert.Greater(t, live.Generation(), gen)
	assert.Equal(t, uint64(1), live.Reloads())
	assert.Empty(t, first.Specifications(), "previous loader invalidated")

	_, ok := live.Lookup(introspect.RefOf(reflect.TypeOf(Ledger{})).Key)
	assert.True(t, ok)
	failures, err := live.Validate(ctx)
	require.NoError(t, err)
	assert.False(t, failures.HasBlocking())
	assert.Equal(t, metamodel.ModeFull, live.Mode())

	fail.Store(true)
	current := live.Loader()
	live.Reload(ctx, []string{"broken.go"})
	assert.Same(t, current, live.Loader())
	assert.Equal(t, uint64(1), live.Reloads())
}

func TestNewLiveReportsBuildErrors(t *testing.T) {
	_, err := NewLive(context.Background(), func(context.Context) (*metamodel.Loader, error) {
		return nil, errors.New("boom")
	}, nil)
	assert.EqualError(t, err, "boom")
}

func TestLiveLoadsLazilyOnDemand(t *testing.T) {
	ctx := context.Background()
	account := introspect.RefOf(reflect.TypeOf(Account{}))
	ledger := introspect.RefOf(reflect.TypeOf(Ledger{}))
	live, err := NewLive(ctx, func(context.Context) (*metamodel.Loader, error) {
		return metamodel.NewLoader(introspect.NewReflectIntrospector(), metamodel.Options{
			Mode:  metamodel.ModeLazy,
			Types: []introspect.TypeRef{account, ledger},
		})
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, live.Specifications())

	spec, err := live.LoadKey(ctx, account.Key)
	require.NoError(t, err)
	assert.Equal(t, account.Key, spec.Key())
	assert.Len(t, live.Specifications(), 1)

	_, err = live.LoadKey(ctx, "app.Nothing")
	assert.ErrorIs(t, err, metamodel.ErrUnknownType)

	require.NoError(t, live.LoadDomain(ctx, func(key string) bool { return key == ledger.Key }))
	_, ok := live.Lookup(ledger.Key)
	assert.True(t, ok)
}
