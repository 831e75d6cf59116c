package types

import (
	"time"
)

const (
	// DefaultExpiration tells Set to apply the engine's configured default TTL.
	DefaultExpiration time.Duration = 0

	// NoExpiration marks an entry that the expiry sweep never removes.
	NoExpiration time.Duration = -1
)

type CacheManager interface {
	LifecycleManager

	// Set persists an entry and returns its storage location.
	Set(params SetParams) (string, error)

	// Get returns the stored payload. Expiration is not checked on read:
	// an expired entry that has not been swept yet is still returned.
	Get(params GetParams) (interface{}, error)

	// InvalidateExpired deletes every expired entry and records a snapshot.
	InvalidateExpired() (*SweepReport, error)

	// FlushAll deletes every entry regardless of TTL state.
	FlushAll() (*FlushReport, error)

	// FlushByPattern deletes entries whose raw storage name matches both
	// patterns. An empty secondary pattern matches every name.
	FlushByPattern(orgPattern, pattern string) (*FlushReport, error)
}

type CacheManagerCreator func(config interface{}) (CacheManager, error)

type SetParams struct {
	Prefix  string        `json:"prefix,omitempty"`
	Name    string        `json:"name"`
	Payload interface{}   `json:"payload"`
	TTL     time.Duration `json:"ttl,omitempty"`
}

type GetParams struct {
	Prefix string `json:"prefix,omitempty"`
	Name   string `json:"name"`
}

// CacheEntry is the persisted unit, one JSON document per derived key.
// TTL is in milliseconds; zero means the entry never expires. Expiration
// is an absolute epoch-millisecond timestamp, nil for non-expiring entries.
type CacheEntry struct {
	Payload    interface{} `json:"payload"`
	TTL        int64       `json:"ttl"`
	Expiration *int64      `json:"expiration"`
}

// CacheCounters are monotonically increasing per-engine invocation counts.
type CacheCounters struct {
	Sweeps         uint64 `json:"sweeps"`
	FullFlushes    uint64 `json:"full_flushes"`
	PatternFlushes uint64 `json:"pattern_flushes"`
}

// EntryReport is the per-entry diagnostic record accumulated by a sweep.
// ExpiresIn is the remaining lifetime in seconds, nil for non-expiring
// entries, never negative.
type EntryReport struct {
	Name      string   `json:"name"`
	TTL       int64    `json:"ttl"`
	ExpiresIn *float64 `json:"expires_in"`
	Size      string   `json:"size"`
	SizeBytes int64    `json:"size_bytes"`
	Valid     bool     `json:"valid"`
}

// Snapshot records aggregate cache size and counters at the moment a sweep
// completed. ID is derived from the sweep timestamp.
type Snapshot struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	TotalBytes int64         `json:"total_bytes"`
	Counters   CacheCounters `json:"counters"`
}

type SweepReport struct {
	Counters   CacheCounters `json:"counters"`
	Deleted    int           `json:"deleted"`
	TotalBytes int64         `json:"total_bytes"`
	TotalMB    float64       `json:"total_mb"`
	TotalHuman string        `json:"total_human"`
	Entries    []EntryReport `json:"entries"`
	History    []Snapshot    `json:"history"`
}

// FlushReport carries the invocation counter of the flush flavor that
// produced it and the number of entries removed. Error is only populated by
// FlushByPattern, which reports filesystem failures instead of propagating
// them.
type FlushReport struct {
	Invocations uint64 `json:"invocations"`
	Deleted     int    `json:"deleted"`
	Error       string `json:"error,omitempty"`
}
