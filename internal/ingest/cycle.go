package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"torrdrop/internal/inbox"
	"torrdrop/internal/logging"
	"torrdrop/internal/notifications"
	"torrdrop/internal/services"
)

// RunCycle performs one poll cycle: discover, stabilize, submit, archive.
// One file's failure never aborts the cycle for the others.
func (l *Loop) RunCycle(ctx context.Context) error {
	defer l.markCycle()

	present, err := l.scan(ctx)
	if err != nil {
		return err
	}

	items, err := l.store.List(ctx,
		inbox.StatusDiscovered,
		inbox.StatusStable,
		inbox.StatusSubmitting,
		inbox.StatusSubmitted,
	)
	if err != nil {
		return fmt.Errorf("list tracked items: %w", err)
	}

	cycleLogger := l.logger.With(logging.String(logging.FieldCycleID, uuid.NewString()))
	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logger := cycleLogger.With(logging.String(logging.FieldPath, item.Path))

		if _, ok := present[item.Path]; !ok {
			l.dropVanished(ctx, logger, item)
			continue
		}

		if err := l.processItem(ctx, logger, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			l.setLastError(err)
			logger.Error("file processing failed",
				logging.Int(logging.FieldAttempt, item.AttemptCount),
				logging.Error(err),
			)
		}
	}
	return nil
}

// scan lists the watched directory, registers unseen descriptor files, and
// returns the set of present paths.
func (l *Loop) scan(ctx context.Context) (map[string]struct{}, error) {
	entries, err := os.ReadDir(l.cfg.Paths.WatchedDir)
	if err != nil {
		return nil, fmt.Errorf("list watched directory: %w", err)
	}

	present := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isDescriptor(entry.Name()) {
			continue
		}
		path := filepath.Join(l.cfg.Paths.WatchedDir, entry.Name())
		present[path] = struct{}{}

		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				delete(present, path)
				continue
			}
			return nil, fmt.Errorf("stat %q: %w", path, err)
		}

		existing, err := l.store.GetByPath(ctx, path)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}
		item, err := l.store.Register(ctx, path, info.Size())
		if err != nil {
			return nil, err
		}
		l.logger.Info("file discovered",
			logging.String(logging.FieldEvent, "discovered"),
			logging.String(logging.FieldPath, item.Path),
			logging.Int64("size", item.LastSize),
		)
	}
	return present, nil
}

func isDescriptor(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".torrent")
}

// dropVanished removes the tracking record for a file that disappeared
// between discovery and processing. A filesystem race, not a failure.
func (l *Loop) dropVanished(ctx context.Context, logger *slog.Logger, item *inbox.Item) {
	logger.Info("file vanished from watched directory, dropping tracking entry",
		logging.String(logging.FieldEvent, "vanished"),
		logging.String("status", string(item.Status)),
	)
	if err := l.store.Delete(ctx, item.ID); err != nil {
		l.setLastError(err)
	}
}

func (l *Loop) processItem(ctx context.Context, logger *slog.Logger, item *inbox.Item) error {
	switch item.Status {
	case inbox.StatusDiscovered:
		promoted, err := l.checkStability(ctx, logger, item)
		if err != nil || !promoted {
			return err
		}
		return l.submit(ctx, logger, item, false)
	case inbox.StatusStable:
		return l.submit(ctx, logger, item, false)
	case inbox.StatusSubmitting:
		// A record stuck in submitting means a previous run crashed with an
		// RPC in flight. Resubmit; the engine's duplicate detection tells us
		// whether the first call landed.
		return l.submit(ctx, logger, item, true)
	case inbox.StatusSubmitted:
		return l.archive(ctx, logger, item)
	default:
		return nil
	}
}

// checkStability records a size observation and promotes the item when the
// size has held for the configured window. Returns whether the item is now
// stable.
func (l *Loop) checkStability(ctx context.Context, logger *slog.Logger, item *inbox.Item) (bool, error) {
	info, err := os.Stat(item.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.dropVanished(ctx, logger, item)
			return false, nil
		}
		return false, fmt.Errorf("stat %q: %w", item.Path, err)
	}

	now := l.now()
	item.ObserveSize(info.Size(), now)
	if !l.detector.Stable(item.LastSize, item.LastSizeAt, now) {
		return false, l.store.Update(ctx, item)
	}

	item.Status = inbox.StatusStable
	if err := l.store.Update(ctx, item); err != nil {
		return false, err
	}
	logger.Info("file stabilized",
		logging.String(logging.FieldEvent, "stabilized"),
		logging.Int64("size", item.LastSize),
	)
	return true, nil
}

// submit reads the descriptor and sends it to the engine. recovering marks
// a submitting record found after a crash, where a duplicate answer from
// the engine means the earlier call succeeded.
func (l *Loop) submit(ctx context.Context, logger *slog.Logger, item *inbox.Item, recovering bool) error {
	data, err := os.ReadFile(item.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.dropVanished(ctx, logger, item)
			return nil
		}
		return fmt.Errorf("read %q: %w", item.Path, err)
	}

	if !recovering {
		item.Status = inbox.StatusSubmitting
		if err := l.store.Update(ctx, item); err != nil {
			return err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, l.cfg.RequestTimeout())
	jobID, err := l.submitter.Submit(callCtx, data, l.cfg.Transmission.DownloadDir)
	cancel()

	switch {
	case err == nil:
		item.Status = inbox.StatusSubmitted
		item.JobID = jobID
		item.ErrorMessage = ""
		if err := l.store.Update(ctx, item); err != nil {
			return err
		}
		logger.Info("file submitted to engine",
			logging.String(logging.FieldEvent, "submitted"),
			logging.String(logging.FieldJobID, jobID),
			logging.Int(logging.FieldAttempt, item.AttemptCount+1),
		)
		l.publish(ctx, notifications.EventSubmitted, notifications.Payload{"name": filepath.Base(item.Path)})
		return l.archive(ctx, logger, item)

	case errors.Is(err, context.Canceled):
		// Shutdown mid-call; leave the submitting record for crash recovery.
		return err

	case recovering && errors.Is(err, services.ErrAlreadyExists):
		item.Status = inbox.StatusSubmitted
		item.ErrorMessage = ""
		if err := l.store.Update(ctx, item); err != nil {
			return err
		}
		logger.Info("engine already holds this torrent from the interrupted run",
			logging.String(logging.FieldEvent, "submitted"),
		)
		return l.archive(ctx, logger, item)

	case services.IsPermanent(err):
		return l.quarantineItem(ctx, logger, item, err.Error())

	default:
		item.AttemptCount++
		if item.AttemptCount >= l.cfg.Workflow.MaxAttempts {
			reason := fmt.Sprintf("retry budget exhausted after %d attempts: %v", item.AttemptCount, err)
			return l.quarantineItem(ctx, logger, item, reason)
		}
		item.Status = inbox.StatusStable
		item.ErrorMessage = err.Error()
		if updateErr := l.store.Update(ctx, item); updateErr != nil {
			return updateErr
		}
		logger.Warn("transient submission failure, will retry",
			logging.String(logging.FieldEvent, "retried"),
			logging.Int(logging.FieldAttempt, item.AttemptCount),
			logging.Error(err),
		)
		return nil
	}
}

// archive relocates a submitted descriptor. Failure keeps the item in
// submitted so only the move is retried; the job already exists remotely.
func (l *Loop) archive(ctx context.Context, logger *slog.Logger, item *inbox.Item) error {
	dest, err := l.archiver.Move(item.Path)
	if err != nil {
		logger.Warn("archive failed, will retry the move next cycle",
			logging.String(logging.FieldEvent, "archive_failed"),
			logging.Error(err),
		)
		return nil
	}

	item.Status = inbox.StatusArchived
	item.ArchivedPath = dest
	if err := l.store.Update(ctx, item); err != nil {
		return err
	}
	logger.Info("file archived",
		logging.String(logging.FieldEvent, "archived"),
		logging.String("archived_path", dest),
	)
	l.publish(ctx, notifications.EventArchived, notifications.Payload{"name": filepath.Base(item.Path)})
	return nil
}

func (l *Loop) quarantineItem(ctx context.Context, logger *slog.Logger, item *inbox.Item, reason string) error {
	dest, err := l.quarantine.Move(item.Path)
	if err != nil {
		logger.Warn("quarantine move failed, file remains in watched directory",
			logging.Error(err),
		)
	} else {
		item.ArchivedPath = dest
	}

	item.SetQuarantined(reason)
	if err := l.store.Update(ctx, item); err != nil {
		return err
	}
	logger.Warn("file quarantined",
		logging.String(logging.FieldEvent, "quarantined"),
		logging.Int(logging.FieldAttempt, item.AttemptCount),
		logging.String("reason", reason),
	)
	l.publish(ctx, notifications.EventQuarantined, notifications.Payload{
		"name":   filepath.Base(item.Path),
		"reason": reason,
	})
	return nil
}

func (l *Loop) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := l.notifier.Publish(ctx, event, payload); err != nil {
		l.logger.Debug("notification failed", logging.Error(err))
	}
}
