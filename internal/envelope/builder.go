// Package envelope turns normalized log records into queueable envelopes.
// This is the only place in the pipeline where log identifiers are
// synthesized.
package envelope

import (
	"time"

	"github.com/google/uuid"

	"github.com/scrublog-systems/scrublog/internal/models"
)

// Builder assembles ingest envelopes. The identifier generator and clock
// are injectable so tests can substitute fixed sequences.
type Builder struct {
	NewID func() string
	Now   func() time.Time
}

// NewBuilder returns a Builder using random UUIDs and the wall clock.
func NewBuilder() *Builder {
	return &Builder{
		NewID: uuid.NewString,
		Now:   time.Now,
	}
}

// Build wraps a record in an envelope, assigning a log ID when the caller
// supplied none. Every envelope leaves here with a non-empty log_id.
func (b *Builder) Build(rec models.LogRecord) models.IngestEnvelope {
	if rec.LogID == "" {
		rec.LogID = b.NewID()
	}

	return models.IngestEnvelope{
		LogRecord:    rec,
		AttemptCount: 0,
		EnqueuedAt:   b.Now().UTC(),
	}
}
