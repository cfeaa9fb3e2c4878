package ipc

import (
	"time"

	"torrdrop/internal/inbox"
)

// InboxItem is the wire representation of a tracked descriptor.
type InboxItem struct {
	ID           int64     `json:"id"`
	Path         string    `json:"path"`
	Status       string    `json:"status"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
	LastSize     int64     `json:"last_size"`
	AttemptCount int       `json:"attempt_count"`
	JobID        string    `json:"job_id,omitempty"`
	ArchivedPath string    `json:"archived_path,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func fromInboxItem(item *inbox.Item) InboxItem {
	return InboxItem{
		ID:           item.ID,
		Path:         item.Path,
		Status:       string(item.Status),
		FirstSeenAt:  item.FirstSeenAt,
		LastSize:     item.LastSize,
		AttemptCount: item.AttemptCount,
		JobID:        item.JobID,
		ArchivedPath: item.ArchivedPath,
		ErrorMessage: item.ErrorMessage,
		UpdatedAt:    item.UpdatedAt,
	}
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and loop status information.
type StatusResponse struct {
	Running     bool           `json:"running"`
	Counts      map[string]int `json:"counts"`
	LastCycleAt time.Time      `json:"last_cycle_at"`
	LastError   string         `json:"last_error"`
	InboxDBPath string         `json:"inbox_db_path"`
	LockPath    string         `json:"lock_path"`
	PID         int            `json:"pid"`
}

// ListRequest filters inbox listing by status.
type ListRequest struct {
	Statuses []string `json:"statuses"`
}

// ListResponse contains inbox entries.
type ListResponse struct {
	Items []InboxItem `json:"items"`
}

// DescribeRequest fetches a single inbox item by id.
type DescribeRequest struct {
	ID int64 `json:"id"`
}

// DescribeResponse contains a single inbox entry.
type DescribeResponse struct {
	Item InboxItem `json:"item"`
}

// RetryRequest restores a quarantined descriptor for reprocessing.
type RetryRequest struct {
	ID int64 `json:"id"`
}

// RetryResponse contains the reset inbox entry.
type RetryResponse struct {
	Item InboxItem `json:"item"`
}

// PruneRequest removes records for archived descriptors.
type PruneRequest struct{}

// PruneResponse reports number of removed entries.
type PruneResponse struct {
	Removed int64 `json:"removed"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
