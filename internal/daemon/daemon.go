package daemon

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	esync "github.com/sweldo/sweldo-sync/internal/sync"
)

// Pusher pushes one entity's local records to the remote store.
// *sync.Adapter satisfies it.
type Pusher interface {
	SyncToRemote(ctx context.Context, onProgress esync.ProgressFunc) error
}

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long an entity must stay quiet before it is
	// pushed. Bursts of writes to the same entity produce one push.
	DebounceInterval time.Duration

	// InitialSync pushes every entity once on Start.
	InitialSync bool

	// OnProgress receives the progress lines of every push.
	OnProgress esync.ProgressFunc

	Logger logrus.FieldLogger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 2 * time.Second,
		InitialSync:      true,
		Logger:           logrus.StandardLogger().WithField("component", "daemon"),
	}
}

// Daemon pushes entities to the remote store when their local documents
// change.
type Daemon struct {
	root    string
	pushers map[string]Pusher
	config  *Config

	watcher *FileWatcher

	pending   map[string]time.Time // entity -> last change
	pendingMu sync.Mutex

	pushes   int
	pushesMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon watching root. pushers maps entity names to the
// adapter that pushes them; changes to entities without a pusher are
// ignored. config may be nil.
func New(root string, pushers map[string]Pusher, config *Config) (*Daemon, error) {
	if root == "" {
		return nil, fmt.Errorf("root cannot be empty")
	}
	if len(pushers) == 0 {
		return nil, fmt.Errorf("at least one pusher is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		root:    root,
		pushers: pushers,
		config:  config,
		watcher: watcher,
		pending: make(map[string]time.Time),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins watching and pushing. It blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.WithField("root", d.root).Info("starting daemon")

	if d.config.InitialSync {
		if err := d.PushAll(ctx); err != nil {
			return fmt.Errorf("initial sync failed: %w", err)
		}
	}

	if err := d.watcher.Start(d.root); err != nil {
		return err
	}

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processPending()

	select {
	case <-ctx.Done():
		d.config.Logger.Info("shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.cancel()

	if err := d.watcher.Stop(); err != nil {
		d.config.Logger.WithError(err).Warn("failed to stop watcher")
	}

	d.wg.Wait()

	d.config.Logger.Info("daemon stopped")
	return nil
}

// PushAll pushes every entity once, in name order. Errors are logged and
// the next entity is tried; the first error is returned.
func (d *Daemon) PushAll(ctx context.Context) error {
	names := make([]string, 0, len(d.pushers))
	for name := range d.pushers {
		names = append(names, name)
	}
	sort.Strings(names)

	var first error
	for _, name := range names {
		if err := d.push(ctx, name); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Pushes returns how many pushes the daemon has run.
func (d *Daemon) Pushes() int {
	d.pushesMu.Lock()
	defer d.pushesMu.Unlock()
	return d.pushes
}

func (d *Daemon) push(ctx context.Context, name string) error {
	p, ok := d.pushers[name]
	if !ok {
		return nil
	}

	d.pushesMu.Lock()
	d.pushes++
	d.pushesMu.Unlock()

	logger := d.config.Logger.WithField("entity", name)
	logger.Debug("pushing")
	if err := p.SyncToRemote(ctx, d.config.OnProgress); err != nil {
		logger.WithError(err).Error("push failed")
		return err
	}
	return nil
}

// watchFileEvents queues entities whose documents changed.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			if _, tracked := d.pushers[event.Entity]; !tracked {
				continue
			}
			d.config.Logger.WithFields(logrus.Fields{
				"entity": event.Entity,
				"op":     event.Op.String(),
				"file":   event.Path,
			}).Debug("file event")
			d.queueChange(event.Entity)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.WithError(err).Warn("watcher error")
		}
	}
}

func (d *Daemon) queueChange(name string) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	d.pending[name] = time.Now()
}

// processPending pushes entities that have been quiet for a full debounce
// interval.
func (d *Daemon) processPending() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			for _, name := range d.due(time.Now()) {
				_ = d.push(d.ctx, name)
			}
		}
	}
}

// due removes and returns the entities ready to push.
func (d *Daemon) due(now time.Time) []string {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	var ready []string
	for name, queuedAt := range d.pending {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		ready = append(ready, name)
		delete(d.pending, name)
	}
	sort.Strings(ready)
	return ready
}
