// Package tasks maintains the client's view of the user's tasks and
// reconciles it against the backend: every mutation is confirmed by the
// server before local state changes.
package tasks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Timestamp is a time.Time that tolerates the timestamp shapes the
// backend emits: RFC 3339 with or without fractional seconds, and ISO
// 8601 without a zone designator.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// Task is a single task record. The id and both timestamps are assigned
// by the backend, never by the client.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   Timestamp `json:"createdAt"`
	UpdatedAt   Timestamp `json:"updatedAt"`
	OwnerID     string    `json:"userId"`
}

// Filter selects tasks by completion state.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// ParseFilter validates a filter name.
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case FilterAll, "":
		return FilterAll, nil
	case FilterActive:
		return FilterActive, nil
	case FilterCompleted:
		return FilterCompleted, nil
	}
	return "", fmt.Errorf("unknown filter %q (want all, active, or completed)", s)
}

// Sort orders tasks by creation time.
type Sort string

const (
	SortNewest Sort = "newest"
	SortOldest Sort = "oldest"
)

// ParseSort validates a sort name.
func ParseSort(s string) (Sort, error) {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case SortNewest, "":
		return SortNewest, nil
	case SortOldest:
		return SortOldest, nil
	}
	return "", fmt.Errorf("unknown sort %q (want newest or oldest)", s)
}

// RecentActivity is one entry in the dashboard's activity feed.
type RecentActivity struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt Timestamp `json:"createdAt"`
	Type      string    `json:"type"`
}

// DashboardStats is the GET /tasks/stats payload.
type DashboardStats struct {
	TotalTasks     int              `json:"totalTasks"`
	CompletedTasks int              `json:"completedTasks"`
	PendingTasks   int              `json:"pendingTasks"`
	CompletionRate float64          `json:"completionRate"`
	RecentActivity []RecentActivity `json:"recentActivity"`
}
