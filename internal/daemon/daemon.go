package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"torrdrop/internal/archive"
	"torrdrop/internal/config"
	"torrdrop/internal/inbox"
	"torrdrop/internal/ingest"
	"torrdrop/internal/logging"
	"torrdrop/internal/notifications"
)

// Engine is the subset of the RPC client the daemon needs for its startup
// reachability probe.
type Engine interface {
	Ping(ctx context.Context) error
}

// Daemon coordinates the ingestion loop and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *inbox.Store
	loop     *ingest.Loop
	engine   Engine
	notifier notifications.Service
	logPath  string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Loop         ingest.StatusSummary
	Counts       map[inbox.Status]int
	InboxDBPath  string
	LockFilePath string
	PID          int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *inbox.Store, logger *slog.Logger, loop *ingest.Loop, engine Engine, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || store == nil || loop == nil || engine == nil {
		return nil, errors.New("daemon requires config, store, loop, and engine client")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "torrdrop.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    store,
		loop:     loop,
		engine:   engine,
		notifier: notifier,
		logPath:  filepath.Join(cfg.Paths.LogDir, "torrdrop.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, probes the download engine, and launches
// the ingestion loop. A failed probe is fatal so misconfiguration surfaces
// at startup instead of quarantining every file.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another torrdrop daemon instance is already running")
	}

	probeCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout())
	err = d.engine.Ping(probeCtx)
	cancel()
	if err != nil {
		_ = d.lock.Unlock()
		_ = d.notifier.Publish(ctx, notifications.EventEngineProbe, notifications.Payload{
			"url":   d.cfg.RPCURL(),
			"error": err.Error(),
		})
		return fmt.Errorf("download engine unreachable at %s: %w", d.cfg.RPCURL(), err)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	if err := d.loop.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancelRun()
		return fmt.Errorf("start ingestion loop: %w", err)
	}
	d.cancel = cancelRun

	d.running.Store(true)
	d.logger.Info("torrdrop daemon started",
		logging.String("lock", d.lockPath),
		logging.String("watched_dir", d.cfg.Paths.WatchedDir),
		logging.String("engine_url", d.cfg.RPCURL()),
	)
	_ = d.notifier.Publish(ctx, notifications.EventDaemonStart, notifications.Payload{
		"dir": d.cfg.Paths.WatchedDir,
	})
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.loop.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("torrdrop daemon stopped")
	_ = d.notifier.Publish(context.Background(), notifications.EventDaemonStop, nil)
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ListInbox returns tracked items filtered by optional statuses.
func (d *Daemon) ListInbox(ctx context.Context, statuses []inbox.Status) ([]*inbox.Item, error) {
	return d.store.List(ctx, statuses...)
}

// GetItem fetches a single tracked item by identifier.
func (d *Daemon) GetItem(ctx context.Context, id int64) (*inbox.Item, error) {
	return d.store.GetByID(ctx, id)
}

// Retry moves a quarantined descriptor back into the watched directory and
// resets its record so the next poll cycle picks it up from scratch.
func (d *Daemon) Retry(ctx context.Context, id int64) (*inbox.Item, error) {
	item, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("inbox item %d not found", id)
	}
	if item.Status != inbox.StatusQuarantined {
		return nil, fmt.Errorf("inbox item %d has status %s, only quarantined items can be retried", id, item.Status)
	}

	newPath := item.Path
	if item.ArchivedPath != "" {
		if _, err := os.Stat(item.ArchivedPath); err != nil {
			return nil, fmt.Errorf("quarantined file unavailable: %w", err)
		}
		restored, err := archive.New(d.cfg.Paths.WatchedDir).Move(item.ArchivedPath)
		if err != nil {
			return nil, fmt.Errorf("restore file to watched directory: %w", err)
		}
		newPath = restored
	}

	item.ResetForRetry(newPath, time.Now().UTC())
	if err := d.store.Update(ctx, item); err != nil {
		return nil, err
	}
	d.logger.Info("quarantined file queued for retry",
		logging.String(logging.FieldPath, newPath),
	)
	return item, nil
}

// PruneArchived removes records for files that completed the workflow.
// Quarantined records stay so their history remains inspectable.
func (d *Daemon) PruneArchived(ctx context.Context) (int64, error) {
	return d.store.PruneArchived(ctx)
}

// TestNotification sends a probe message through the configured channel.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.Publish(ctx, notifications.EventDaemonStart, notifications.Payload{
		"message": "test notification",
	})
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	counts, err := d.store.Counts(ctx)
	if err != nil {
		d.logger.Warn("failed to read inbox counts", logging.Error(err))
		counts = map[inbox.Status]int{}
	}
	return Status{
		Running:      d.running.Load(),
		Loop:         d.loop.Status(),
		Counts:       counts,
		InboxDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		PID:          os.Getpid(),
	}
}
