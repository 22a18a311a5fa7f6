// Package models defines the canonical records that move through the
// scrubbing pipeline: the normalized log, the queued envelope, and the
// persisted entry.
package models

import "time"

// SourceFormat identifies the wire format a log was submitted in.
type SourceFormat string

const (
	SourceJSON      SourceFormat = "json"
	SourcePlaintext SourceFormat = "plaintext"
)

// LogRecord is the canonical post-normalization form of a submitted log.
// TenantID is always non-empty once a record leaves the normalizer; LogID
// may still be empty until the envelope builder assigns one.
type LogRecord struct {
	TenantID     string       `json:"tenant_id"`
	LogID        string       `json:"log_id,omitempty"`
	OriginalText string       `json:"original_text"`
	SourceFormat SourceFormat `json:"source_format"`
}

// IngestEnvelope wraps a LogRecord with delivery metadata. It is owned by
// the pipeline between the gateway and the worker; the store never sees it.
type IngestEnvelope struct {
	LogRecord
	AttemptCount int       `json:"attempt_count"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// ProcessedLogEntry is the persisted result of one envelope. The composite
// key (TenantID, LogID) is unique; redelivery overwrites the same row.
type ProcessedLogEntry struct {
	TenantID     string `json:"tenant_id"`
	LogID        string `json:"log_id"`
	Source       string `json:"source"`
	OriginalText string `json:"original_text"`
	ModifiedText string `json:"modified_text"`
	ProcessedAt  string `json:"processed_at"`
}

// ProcessedAtFormat is the layout for ProcessedLogEntry.ProcessedAt,
// ISO-8601 in UTC.
const ProcessedAtFormat = time.RFC3339
