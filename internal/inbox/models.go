package inbox

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a tracked descriptor file.
type Status string

const (
	StatusDiscovered  Status = "discovered"
	StatusStable      Status = "stable"
	StatusSubmitting  Status = "submitting"
	StatusSubmitted   Status = "submitted"
	StatusArchived    Status = "archived"
	StatusQuarantined Status = "quarantined"
)

var allStatuses = []Status{
	StatusDiscovered,
	StatusStable,
	StatusSubmitting,
	StatusSubmitted,
	StatusArchived,
	StatusQuarantined,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// Item represents a tracked descriptor file persisted in SQLite. The
// durable status is what lets a restart distinguish "never submitted" from
// "submitted, awaiting archive".
type Item struct {
	ID            int64
	Path          string
	Status        Status
	FirstSeenAt   time.Time
	LastSize      int64
	LastSizeAt    time.Time
	AttemptCount  int
	JobID         string
	ArchivedPath  string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the status ends automatic processing.
func (s Status) IsTerminal() bool {
	return s == StatusArchived || s == StatusQuarantined
}

// AwaitingSubmission reports whether the item still needs a submit call.
func (i Item) AwaitingSubmission() bool {
	switch i.Status {
	case StatusDiscovered, StatusStable, StatusSubmitting:
		return true
	default:
		return false
	}
}

// ObserveSize records a size observation. The observation timestamp only
// advances when the size changed, so the stability window measures how long
// the size has stayed constant.
func (i *Item) ObserveSize(size int64, at time.Time) {
	if size != i.LastSize {
		i.LastSize = size
		i.LastSizeAt = at
	}
}

// SetQuarantined marks the item as permanently failed with the given reason.
func (i *Item) SetQuarantined(reason string) {
	i.Status = StatusQuarantined
	i.ErrorMessage = reason
}

// ResetForRetry returns a quarantined item to the start of the state
// machine after its file has been restored to the watched directory.
func (i *Item) ResetForRetry(path string, now time.Time) {
	i.Path = path
	i.Status = StatusDiscovered
	i.AttemptCount = 0
	i.ErrorMessage = ""
	i.JobID = ""
	i.ArchivedPath = ""
	i.LastSize = 0
	i.LastSizeAt = now
	i.FirstSeenAt = now
}
