package livereload

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/gammazero/deque"
	"github.com/samber/lo"
)

// Change is one debounced batch of modified, added or removed paths,
// relative to the watched root and slash separated.
type Change struct {
	Paths []string
}

type fileStat struct {
	modTime time.Time
	size    int64
}

type WatcherOptions struct {
	Interval time.Duration
	Debounce time.Duration
}

func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		Interval: 500 * time.Millisecond,
		Debounce: 250 * time.Millisecond,
	}
}

// Watcher polls a directory tree and reports changes in batches.
type Watcher struct {
	root     string
	options  WatcherOptions
	changes  chan Change
	ready    chan struct{}
	pending  deque.Deque[string]
	debounce func(f func())
	mutex    sync.Mutex
	closed   bool
}

func NewWatcher(root string, options WatcherOptions) *Watcher {
	return &Watcher{
		root:     root,
		options:  options,
		changes:  make(chan Change, 16),
		ready:    make(chan struct{}),
		debounce: debounce.New(options.Debounce),
	}
}

// Changes is closed when Run returns.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Ready is closed once the initial snapshot has been taken.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		w.mutex.Lock()
		w.closed = true
		close(w.changes)
		w.mutex.Unlock()
	}()

	prev, err := snapshot(w.root)
	close(w.ready)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.options.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		next, err := snapshot(w.root)
		if err != nil {
			// root vanished or unreadable; try again next tick
			continue
		}

		changed := diff(prev, next)
		prev = next
		if len(changed) == 0 {
			continue
		}

		w.mutex.Lock()
		for _, p := range changed {
			w.pending.PushBack(p)
		}
		w.mutex.Unlock()

		w.debounce(func() { w.flush(ctx) })
	}
}

func (w *Watcher) flush(ctx context.Context) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed || w.pending.Len() == 0 {
		return
	}

	paths := make([]string, 0, w.pending.Len())
	for w.pending.Len() > 0 {
		paths = append(paths, w.pending.PopFront())
	}
	paths = lo.Uniq(paths)
	sort.Strings(paths)

	select {
	case w.changes <- Change{Paths: paths}:
	case <-ctx.Done():
	}
}

func snapshot(root string) (map[string]fileStat, error) {
	files := make(map[string]fileStat)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		files[filepath.ToSlash(rel)] = fileStat{modTime: info.ModTime(), size: info.Size()}
		return nil
	})

	return files, err
}

func diff(prev, next map[string]fileStat) []string {
	var changed []string

	for path, st := range next {
		old, ok := prev[path]
		if !ok || !old.modTime.Equal(st.modTime) || old.size != st.size {
			changed = append(changed, path)
		}
	}

	for path := range prev {
		if _, ok := next[path]; !ok {
			changed = append(changed, path)
		}
	}

	return changed
}
