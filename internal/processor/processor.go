// Package processor consumes ingest envelopes, redacts their text, and
// performs an idempotent write into the store. Every operation here is
// written as if it may run more than once: redelivery of the same
// envelope, including to a different worker after a lease expiry, must
// leave exactly one entry behind.
package processor

import (
	"context"
	"time"

	"github.com/scrublog-systems/scrublog/internal/metrics"
	"github.com/scrublog-systems/scrublog/internal/models"
	"github.com/scrublog-systems/scrublog/internal/redactor"
	"github.com/scrublog-systems/scrublog/internal/store"
	"github.com/scrublog-systems/scrublog/pkg/logging"
)

// Outcome classifies the result of one processing attempt.
type Outcome int

const (
	// OutcomeAck means the entry is durably persisted; remove the
	// envelope from the pending set.
	OutcomeAck Outcome = iota

	// OutcomeRetry means a transient infrastructure failure; the queue
	// should redeliver within its attempt budget.
	OutcomeRetry

	// OutcomeDead means the envelope is corrupt and retrying cannot
	// help; route it to the dead letter stream without reprocessing.
	OutcomeDead
)

// Failure reasons carried into the dead letter stream.
const (
	ReasonMalformedEnvelope = "malformed_envelope"
	ReasonStoreUnavailable  = "store_unavailable"
)

// Result is the Ack/Nack signal handed back to the queue channel.
type Result struct {
	Outcome Outcome
	Reason  string
	Err     error
}

func ack() Result {
	return Result{Outcome: OutcomeAck}
}

func retry(reason string, err error) Result {
	return Result{Outcome: OutcomeRetry, Reason: reason, Err: err}
}

func dead(reason string, err error) Result {
	return Result{Outcome: OutcomeDead, Reason: reason, Err: err}
}

// Processor runs the redact-and-persist half of the pipeline.
type Processor struct {
	redactor *redactor.Redactor
	store    store.Store
	logger   *logging.Logger

	// now is injectable for deterministic processed_at in tests.
	now func() time.Time
}

// New constructs a Processor. A nil logger falls back to the default.
func New(r *redactor.Redactor, s store.Store, logger *logging.Logger) *Processor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Processor{
		redactor: r,
		store:    s,
		logger:   logger,
		now:      time.Now,
	}
}

// Process handles one envelope attempt. Partial work before the store
// write has no observable side effect and is safe to redo on redelivery.
func (p *Processor) Process(ctx context.Context, env *models.IngestEnvelope) Result {
	started := time.Now()
	defer func() {
		metrics.ProcessingDuration.Observe(time.Since(started).Seconds())
	}()

	// The envelope builder guarantees both identifiers; a violation here
	// means upstream corruption and retrying cannot repair it.
	if env.TenantID == "" || env.LogID == "" {
		metrics.ProcessedTotal.WithLabelValues("dead_lettered").Inc()
		return dead(ReasonMalformedEnvelope, nil)
	}

	modified, wasModified := p.redactor.Redact(env.OriginalText)
	if wasModified {
		metrics.RedactionsTotal.Inc()
	}

	entry := &models.ProcessedLogEntry{
		TenantID:     env.TenantID,
		LogID:        env.LogID,
		Source:       string(env.SourceFormat),
		OriginalText: env.OriginalText,
		ModifiedText: modified,
		ProcessedAt:  p.now().UTC().Format(models.ProcessedAtFormat),
	}

	writeStart := time.Now()
	err := p.store.Put(ctx, entry)
	metrics.StoreWriteDuration.Observe(time.Since(writeStart).Seconds())
	if err != nil {
		// Timeouts and unavailability look the same from here: both are
		// transient, and the upsert makes the redo harmless.
		metrics.StoreErrors.Inc()
		metrics.ProcessedTotal.WithLabelValues("retried").Inc()
		p.logger.WarnContext(ctx, "store write failed",
			logging.TenantID(env.TenantID),
			logging.LogID(env.LogID),
			logging.Attempt(env.AttemptCount),
			logging.Error(err),
		)
		return retry(ReasonStoreUnavailable, err)
	}

	metrics.ProcessedTotal.WithLabelValues("acked").Inc()
	p.logger.DebugContext(ctx, "envelope persisted",
		logging.TenantID(env.TenantID),
		logging.LogID(env.LogID),
	)
	return ack()
}
