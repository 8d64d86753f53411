package models

import "time"

// LogEvent is the canonical form of one CSV log row. Immutable once created.
type LogEvent struct {
	Timestamp time.Time `json:"@timestamp"`
	RawTime   string    `json:"timestamp"`
	Level     string    `json:"level"`
	Action    string    `json:"action"`
	Username  string    `json:"username"`
	IP        string    `json:"ip"`
	Country   string    `json:"country"`
	Resource  string    `json:"resource"`
	UserAgent string    `json:"user_agent"`
	Message   string    `json:"message"`
}

// PartitionDate returns the UTC calendar date the event is stored under.
func (e LogEvent) PartitionDate() string {
	return e.Timestamp.UTC().Format("2006-01-02")
}

// UploadRecord is the audit row written once per ingestion. It is never
// consulted by detection.
type UploadRecord struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
	Source     string    `json:"source"`
}

// Alert type and status values for the brute-force rule.
const (
	AlertTypeBruteForce = "BRUTE_FORCE_SUSPECT"
	AlertStatusActive   = "active"

	// WindowLabel is the descriptive window recorded on alerts. It is
	// intentionally distinct from the detection query's 30-day lookback.
	WindowLabel = "last_24h"
)

// Alert is a detection finding. Created once, written to both alert stores,
// never mutated afterwards.
type Alert struct {
	ID        int64     `json:"id,omitempty"`
	Type      string    `json:"type"`
	IP        string    `json:"ip"`
	Failures  int       `json:"failures"`
	Window    string    `json:"window"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

// SearchRequest carries the log search filters.
type SearchRequest struct {
	Query  string `json:"query"`
	Action string `json:"action"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// SearchHit is one log row returned by a search.
type SearchHit struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Action    string `json:"action"`
	Username  string `json:"username"`
	IP        string `json:"ip"`
	Country   string `json:"country"`
	Message   string `json:"message"`
}

// IngestResult summarizes one ingestion call.
type IngestResult struct {
	Filename string `json:"filename"`
	Indexed  int    `json:"indexed"`
	Skipped  int    `json:"skipped"`
}
