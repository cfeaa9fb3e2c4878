package logging

import (
	"log/slog"
	"time"
)

// Canonical attribute keys shared across components so log consumers can
// filter on stable field names.
const (
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldPath      = "path"
	FieldAttempt   = "attempt"
	FieldCycleID   = "cycle_id"
	FieldJobID     = "job_id"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}
