// Package watcher notices when the loaded fixture changes on disk so the
// explorer can re-import it. It prefers fsnotify and falls back to polling
// on filesystems where change events are unreliable.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
)

// DefaultPollInterval is the stat interval in polling mode.
const DefaultPollInterval = 2 * time.Second

// ForcePollEnvVar forces polling mode when set to a truthy value.
const ForcePollEnvVar = "GLENS_FORCE_POLL"

var (
	ErrFileRemoved    = errors.New("watched fixture was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets how long writes must stay quiet before a change
// is reported.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) { w.debounceDuration = d }
}

// WithPollInterval sets the stat interval used in polling mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithOnChange sets the callback run after the fixture content changed.
// The callback must not call Stop.
func WithOnChange(fn func()) Option {
	return func(w *Watcher) { w.onChange = fn }
}

// WithOnError sets the callback for watch errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) { w.onError = fn }
}

// WithForcePoll skips fsnotify entirely.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) { w.forcePoll = force }
}

// Watcher reports content changes of a single fixture file. Touching the
// file without changing its bytes is not a change: the content digest is
// compared before onChange runs.
type Watcher struct {
	path             string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func()
	onError          func(error)
	forcePoll        bool
	log              *zap.Logger

	mu          sync.RWMutex
	started     bool
	cancel      context.CancelFunc
	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	fsType      FilesystemType
	lastMtime   time.Time
	lastSize    int64
	digest      uint64
	loops       sync.WaitGroup

	// notifyMu is held while onChange runs so Stop can wait it out.
	notifyMu sync.Mutex
	changeCh chan struct{}
}

// New creates a watcher for path. Nothing is watched until Start.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:             abs,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func() {},
		onError:          func(error) {},
		changeCh:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounceDuration)
	w.log = debug.Named("watcher").With(zap.String("path", abs))
	return w, nil
}

// Start begins watching. The watcher stops when ctx is cancelled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	w.fsType = DetectFilesystemType(w.path)
	w.useFallback = w.forcePoll || envBool(ForcePollEnvVar) || isRemoteFilesystem(w.fsType)

	w.lastMtime, w.lastSize, w.digest = time.Time{}, 0, 0
	if info, err := os.Stat(w.path); err != nil {
		if os.IsPermission(err) {
			return ErrPermission
		}
		// A fixture that does not exist yet is reported once it appears.
	} else {
		w.lastMtime, w.lastSize = info.ModTime(), info.Size()
		if data, err := os.ReadFile(w.path); err == nil {
			w.digest = xxhash.Sum64(data)
		}
	}

	ctx, w.cancel = context.WithCancel(ctx)

	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		switch {
		case err != nil:
			w.useFallback = true
		case fsw.Add(filepath.Dir(w.path)) != nil:
			// Watching the directory catches editors that save by rename.
			fsw.Close()
			w.useFallback = true
		default:
			w.fsWatcher = fsw
			w.loops.Add(1)
			go w.watchFsnotify(ctx, fsw)
		}
	}
	if w.useFallback {
		w.loops.Add(1)
		go w.watchPolling(ctx)
	}

	w.started = true
	w.log.Debug("watching fixture",
		zap.Bool("polling", w.useFallback),
		zap.Stringer("fs", w.fsType))
	return nil
}

// Stop halts watching and waits for the watch goroutines and any running
// onChange callback to return. Stop is idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.cancel()
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.debouncer.Cancel()
	w.mu.Unlock()

	w.loops.Wait()
	w.notifyMu.Lock()
	w.notifyMu.Unlock() //nolint:staticcheck // barrier for an in-flight callback
}

// IsPolling reports whether the watcher fell back to polling.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted reports whether the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed receives after each reported change. Sends never block, so a
// slow reader sees one pending signal for several changes.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// FilesystemType returns the classification made at Start.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the stat interval used in polling mode.
func (w *Watcher) PollInterval() time.Duration {
	return w.pollInterval
}

// Digest returns the xxhash of the last content seen.
func (w *Watcher) Digest() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.digest
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func (w *Watcher) watchFsnotify(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.loops.Done()
	target := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			switch {
			case event.Op&fsnotify.Remove != 0:
				w.onError(ErrFileRemoved)
			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				w.debouncer.Trigger(w.notifyChange)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Debug("fsnotify error", zap.Error(err))
			w.onError(err)
		}
	}
}

func (w *Watcher) watchPolling(ctx context.Context) {
	defer w.loops.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		info, err := os.Stat(w.path)
		if err != nil {
			switch {
			case os.IsNotExist(err):
				w.mu.Lock()
				had := !w.lastMtime.IsZero()
				w.lastMtime, w.lastSize = time.Time{}, 0
				w.mu.Unlock()
				if had {
					w.onError(ErrFileRemoved)
				}
			case os.IsPermission(err):
				w.onError(ErrPermission)
			default:
				w.onError(err)
			}
			continue
		}

		w.mu.Lock()
		changed := !info.ModTime().Equal(w.lastMtime) || info.Size() != w.lastSize
		w.lastMtime, w.lastSize = info.ModTime(), info.Size()
		w.mu.Unlock()

		if changed {
			w.debouncer.Trigger(w.notifyChange)
		}
	}
}

// notifyChange runs once the debounce window closes. It re-reads the
// fixture and reports only if the bytes differ from the last report.
func (w *Watcher) notifyChange() {
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()

	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if !started {
		return
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		// Removed between the event and the debounce deadline; the
		// removal itself was already reported.
		w.log.Debug("fixture unreadable after change", zap.Error(err))
		return
	}
	sum := xxhash.Sum64(data)

	w.mu.Lock()
	same := sum == w.digest
	w.digest = sum
	w.mu.Unlock()
	if same {
		w.log.Debug("fixture touched without content change")
		return
	}

	metrics.FixtureReloads.Inc()
	w.log.Debug("fixture changed", zap.Int("bytes", len(data)))
	w.onChange()

	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}
