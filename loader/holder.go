package loader

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	treaty "github.com/reoring/treaty"
	"github.com/reoring/treaty/metrics"
)

// Holder serves the registry built from a directory of contract files and
// rebuilds it when they change. Every reload constructs a fresh registry
// from scratch; readers keep the previous one until the new build succeeds
// in full, so a broken edit never takes contracts away.
type Holder struct {
	dir      string
	log      zerolog.Logger
	met      *metrics.Collector
	regOpts  []treaty.RegistryOption
	debounce time.Duration

	current atomic.Pointer[treaty.Registry]

	mu      sync.Mutex
	onSwap  []func(*treaty.Registry)
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// HolderOption configures a Holder.
type HolderOption func(*Holder)

// WithLogger sets the holder's logger. The default discards everything.
func WithLogger(log zerolog.Logger) HolderOption {
	return func(h *Holder) { h.log = log }
}

// WithMetrics records reload outcomes on met.
func WithMetrics(met *metrics.Collector) HolderOption {
	return func(h *Holder) { h.met = met }
}

// WithRegistryOptions passes opts to every registry the holder builds.
func WithRegistryOptions(opts ...treaty.RegistryOption) HolderOption {
	return func(h *Holder) { h.regOpts = opts }
}

// WithDebounce sets how long file events are coalesced before reloading.
// The default is 250ms; editors tend to emit several events per save.
func WithDebounce(d time.Duration) HolderOption {
	return func(h *Holder) { h.debounce = d }
}

// NewHolder loads dir once and returns a holder serving the result. It
// fails if the initial load does, so a process never starts empty by
// accident.
func NewHolder(dir string, opts ...HolderOption) (*Holder, error) {
	h := &Holder{
		dir:      dir,
		log:      zerolog.Nop(),
		debounce: 250 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.Reload(); err != nil {
		return nil, err
	}
	return h, nil
}

// Registry returns the currently served registry.
func (h *Holder) Registry() *treaty.Registry {
	return h.current.Load()
}

// Get returns the latest version of a contract from the current registry.
func (h *Holder) Get(group, name string) (*treaty.Contract, error) {
	return h.current.Load().Get(group, name)
}

// GetVersion returns one specific version from the current registry.
func (h *Holder) GetVersion(group, name string, version int) (*treaty.Contract, error) {
	return h.current.Load().GetVersion(group, name, version)
}

// Reload rebuilds the registry from disk and swaps it in. On any error the
// currently served registry stays as is.
func (h *Holder) Reload() error {
	files, err := LoadDir(h.dir)
	var reg *treaty.Registry
	if err == nil {
		reg = treaty.NewRegistry(h.regOpts...)
		err = Apply(reg, files...)
	}
	if err != nil {
		h.met.ReloadFailed()
		h.log.Error().Err(err).Str("dir", h.dir).Msg("contract reload failed, keeping current registry")
		return fmt.Errorf("reload contracts: %w", err)
	}

	h.current.Store(reg)
	h.met.ReloadSucceeded(time.Now())
	h.log.Info().Str("dir", h.dir).Int("contracts", reg.Len()).Msg("contract files loaded")

	h.mu.Lock()
	fns := make([]func(*treaty.Registry), len(h.onSwap))
	copy(fns, h.onSwap)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(reg)
	}
	return nil
}

// OnSwap registers a callback invoked with each newly built registry.
func (h *Holder) OnSwap(fn func(*treaty.Registry)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onSwap = append(h.onSwap, fn)
}

// Watch starts watching the contract directory. Changes to contract files
// trigger a debounced reload.
func (h *Holder) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(h.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", h.dir, err)
	}

	h.mu.Lock()
	h.watcher = watcher
	h.mu.Unlock()

	go h.watchLoop(watcher)

	h.log.Info().Str("dir", h.dir).Msg("watching contract files")
	return nil
}

// Stop ends watching. It does not invalidate the served registry.
func (h *Holder) Stop() {
	close(h.stopCh)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watcher != nil {
		h.watcher.Close()
		h.watcher = nil
	}
}

func (h *Holder) watchLoop(watcher *fsnotify.Watcher) {
	timer := time.NewTimer(h.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !IsContractFile(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			h.log.Debug().Str("event", ev.Op.String()).Str("file", ev.Name).Msg("contract file changed")
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(h.debounce)
			armed = true

		case <-timer.C:
			armed = false
			if err := h.Reload(); err != nil {
				h.log.Error().Err(err).Msg("reload after file change failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.log.Error().Err(err).Msg("contract watcher error")

		case <-h.stopCh:
			return
		}
	}
}
