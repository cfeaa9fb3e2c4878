package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"torrdrop/internal/archive"
	"torrdrop/internal/config"
	"torrdrop/internal/inbox"
	"torrdrop/internal/logging"
	"torrdrop/internal/notifications"
	"torrdrop/internal/stability"
)

// Submitter is the boundary contract for the remote download engine. The
// returned identifier is opaque; errors carry the services taxonomy so the
// loop can choose retry or quarantine.
type Submitter interface {
	Submit(ctx context.Context, metainfo []byte, downloadDir string) (string, error)
}

// Loop owns the poll-wait-process cycle over the watched directory. It is
// the only writer of the tracking store.
type Loop struct {
	cfg        *config.Config
	store      *inbox.Store
	logger     *slog.Logger
	submitter  Submitter
	detector   *stability.Detector
	archiver   *archive.Archiver
	quarantine *archive.Archiver
	notifier   notifications.Service

	pollInterval time.Duration

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastError error
	lastCycle time.Time

	// now is swappable in tests so stability windows don't need sleeps.
	now func() time.Time
}

// StatusSummary exposes loop health to the daemon and IPC layer.
type StatusSummary struct {
	Running     bool
	LastCycleAt time.Time
	LastError   string
}

// New builds an ingestion loop from configuration and collaborators.
func New(cfg *config.Config, store *inbox.Store, logger *slog.Logger, submitter Submitter, notifier notifications.Service) *Loop {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Loop{
		cfg:          cfg,
		store:        store,
		logger:       logger.With(logging.String(logging.FieldComponent, "ingest")),
		submitter:    submitter,
		detector:     stability.NewDetector(cfg.StabilityInterval()),
		archiver:     archive.New(cfg.Paths.ArchiveDir),
		quarantine:   archive.New(cfg.Paths.QuarantineDir),
		notifier:     notifier,
		pollInterval: cfg.PollInterval(),
		now:          time.Now,
	}
}

// Start begins background processing.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return errors.New("ingestion loop already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running = true

	l.wg.Add(1)
	go l.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the in-flight step to
// finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	cancel := l.cancel
	l.running = false
	l.cancel = nil
	l.mu.Unlock()

	cancel()
	l.wg.Wait()
}

// Status reports loop health.
func (l *Loop) Status() StatusSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	summary := StatusSummary{
		Running:     l.running,
		LastCycleAt: l.lastCycle,
	}
	if l.lastError != nil {
		summary.LastError = l.lastError.Error()
	}
	return summary
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := l.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.setLastError(err)
			l.logger.Error("poll cycle failed", logging.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.pollInterval):
		}
	}
}

func (l *Loop) setLastError(err error) {
	l.mu.Lock()
	l.lastError = err
	l.mu.Unlock()
}

func (l *Loop) markCycle() {
	l.mu.Lock()
	l.lastCycle = l.now()
	l.mu.Unlock()
}
