// Package devmode reloads the metamodel while the domain sources change.
package devmode

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// ErrNoRoot is returned when no directory is given.
var ErrNoRoot = errors.New("devmode: root directory is required")

// ChangeFunc is called once per quiet period with the changed files, sorted.
type ChangeFunc func(ctx context.Context, paths []string)

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	// Extensions selects the files that count as changes. Defaults to .go.
	Extensions []string
	// SkipDirs names directories that are never watched. Hidden directories
	// are always skipped.
	SkipDirs []string
	Logger   *logrus.Entry
}

// Watcher watches a source tree and reports batches of changes.
type Watcher struct {
	root     string
	debounce time.Duration
	exts     map[string]bool
	skip     map[string]bool
	onChange ChangeFunc
	log      *logrus.Entry
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
}

// New watches root and every directory below it.
func New(root string, onChange ChangeFunc, opts Options) (*Watcher, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ErrNoRoot
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".go"}
	}
	if opts.SkipDirs == nil {
		opts.SkipDirs = []string{"vendor", "testdata", "node_modules"}
	}
	logger := opts.Logger
	if logger == nil {
		base := logrus.New()
		base.SetOutput(io.Discard)
		logger = logrus.NewEntry(base)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     root,
		debounce: opts.Debounce,
		exts:     make(map[string]bool, len(opts.Extensions)),
		skip:     make(map[string]bool, len(opts.SkipDirs)),
		onChange: onChange,
		log:      logger.WithField("component", "devmode"),
		fsw:      fsw,
		pending:  make(map[string]struct{}),
	}
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		w.exts[strings.ToLower(ext)] = true
	}
	for _, dir := range opts.SkipDirs {
		w.skip[dir] = true
	}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Watched returns the watched directories.
func (w *Watcher) Watched() []string {
	dirs := w.fsw.WatchList()
	slices.Sort(dirs)
	return dirs
}

func (w *Watcher) skipDir(path string) bool {
	if path == w.root {
		return false
	}
	base := filepath.Base(path)
	return w.skip[base] || strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_")
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		w.log.WithField("dir", path).Debug("watching")
		return nil
	})
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	w.log.WithFields(logrus.Fields{"root": w.root, "debounce": w.debounce}).Info("dev mode watching sources")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(ev) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")
		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// handle records a relevant event and reports whether it was one.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.skipDir(ev.Name) {
				return false
			}
			if err := w.addTree(ev.Name); err != nil {
				w.log.WithError(err).WithField("dir", ev.Name).Warn("cannot watch new directory")
			}
			return false
		}
	}
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return false
	}
	if !w.exts[strings.ToLower(filepath.Ext(ev.Name))] {
		return false
	}
	w.mu.Lock()
	w.pending[ev.Name] = struct{}{}
	w.mu.Unlock()
	return true
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	slices.Sort(paths)
	w.log.WithField("files", len(paths)).Info("sources changed")
	if w.onChange != nil {
		w.onChange(ctx, paths)
	}
}
