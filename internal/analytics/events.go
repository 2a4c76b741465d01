package analytics

import "time"

type EventType string

const (
	EventSearch EventType = "search"
	EventReload EventType = "index_reload"
)

// SearchEvent describes one answered search request.
type SearchEvent struct {
	Type         EventType `json:"type"`
	Query        string    `json:"query"`
	Terms        []string  `json:"terms"`
	TotalHits    int       `json:"total_hits"`
	Returned     int       `json:"returned"`
	LatencyMs    int64     `json:"latency_ms"`
	CacheHit     bool      `json:"cache_hit"`
	IndexVersion uint64    `json:"index_version"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
}

// ReloadEvent describes one published index snapshot.
type ReloadEvent struct {
	Type      EventType `json:"type"`
	Version   uint64    `json:"version"`
	Source    string    `json:"source"`
	Documents int       `json:"documents"`
	Terms     int       `json:"terms"`
	Tokens    int64     `json:"tokens"`
	Timestamp time.Time `json:"timestamp"`
}

type envelope struct {
	Type EventType `json:"type"`
}
