package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/scrublog-systems/scrublog/internal/models"
	"github.com/scrublog-systems/scrublog/internal/processor"
	"github.com/scrublog-systems/scrublog/pkg/logging"
	natsclient "github.com/scrublog-systems/scrublog/pkg/messaging/nats"
)

// action is the consumer's disposition of one delivery.
type action int

const (
	actionAck action = iota
	actionNak
	actionDeadLetter
)

// decide maps a processing result and the current delivery attempt onto
// an ack action. A retriable failure on the final allowed attempt is
// dead-lettered instead of redelivered.
func decide(res processor.Result, attempt, maxDeliver int) action {
	switch res.Outcome {
	case processor.OutcomeAck:
		return actionAck
	case processor.OutcomeDead:
		return actionDeadLetter
	default:
		if attempt >= maxDeliver {
			return actionDeadLetter
		}
		return actionNak
	}
}

// Consumer pulls envelopes off the ingest stream, runs them through the
// processor, and acknowledges according to the result. The broker, not
// the consumer, enforces single in-flight delivery per message; the
// consumer only has to tolerate redelivery, which the processor's
// idempotent write already does.
type Consumer struct {
	js             *natsclient.JetStreamClient
	proc           *processor.Processor
	dlq            *DLQ
	opts           Options
	processTimeout time.Duration
	logger         *logging.Logger
}

// NewConsumer wires a Consumer. processTimeout bounds each attempt,
// including the store write; zero means no bound beyond AckWait.
func NewConsumer(js *natsclient.JetStreamClient, proc *processor.Processor, dlq *DLQ, opts Options, processTimeout time.Duration, logger *logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Consumer{
		js:             js,
		proc:           proc,
		dlq:            dlq,
		opts:           opts,
		processTimeout: processTimeout,
		logger:         logger,
	}
}

// Start creates the durable consumer and begins delivering messages.
// Returns a stop function that halts delivery; unacked messages stay
// pending and redeliver after AckWait.
func (c *Consumer) Start(ctx context.Context) (func(), error) {
	// The broker's delivery cap is left unlimited: the processing budget
	// is enforced by decide, and capping deliveries at the budget would
	// strand a message whose dead letter write failed on the final
	// attempt. With unlimited deliveries the unacked message comes back
	// after AckWait and the dead letter write is retried until it lands.
	_, err := c.js.CreateOrUpdateConsumer(ctx, c.opts.Stream, natsclient.ConsumerConfig{
		Name:          c.opts.Consumer,
		FilterSubject: c.opts.SubjectPrefix + ".>",
		AckWait:       c.opts.AckWait,
		MaxDeliver:    -1,
		MaxAckPending: c.opts.MaxAckPending,
	})
	if err != nil {
		return nil, err
	}

	return c.js.Consume(ctx, c.opts.Stream, c.opts.Consumer, func(msg jetstream.Msg) {
		c.handle(ctx, msg)
	})
}

func (c *Consumer) handle(ctx context.Context, msg jetstream.Msg) {
	attempt := 1
	if meta, err := msg.Metadata(); err == nil {
		attempt = int(meta.NumDelivered)
	}

	var env models.IngestEnvelope
	if err := json.Unmarshal(msg.Data(), &env); err != nil {
		// Opaque bytes that do not decode cannot be retried.
		if c.deadLetter(ctx, nil, attempt, processor.ReasonMalformedEnvelope, err) {
			c.terminate(msg)
		}
		return
	}
	env.AttemptCount = attempt

	procCtx := ctx
	if c.processTimeout > 0 {
		var cancel context.CancelFunc
		procCtx, cancel = context.WithTimeout(ctx, c.processTimeout)
		defer cancel()
	}

	res := c.proc.Process(procCtx, &env)

	switch decide(res, attempt, c.opts.MaxDeliver) {
	case actionAck:
		if err := msg.Ack(); err != nil {
			c.logger.WarnContext(ctx, "ack failed", logging.Error(err))
		}
	case actionNak:
		c.logger.InfoContext(ctx, "envelope redelivery requested",
			logging.TenantID(env.TenantID),
			logging.LogID(env.LogID),
			logging.Attempt(attempt),
			logging.Reason(res.Reason),
		)
		if err := msg.NakWithDelay(c.opts.NakDelay); err != nil {
			c.logger.WarnContext(ctx, "nak failed", logging.Error(err))
		}
	case actionDeadLetter:
		if c.deadLetter(ctx, &env, attempt, res.Reason, res.Err) {
			c.terminate(msg)
		}
	}
}

// deadLetter records the envelope on the dead letter stream and reports
// whether the write succeeded. On failure the message is left unacked so
// it redelivers: the envelope must not vanish without a dead letter entry.
func (c *Consumer) deadLetter(ctx context.Context, env *models.IngestEnvelope, attempts int, reason string, cause error) bool {
	if err := c.dlq.Write(ctx, env, attempts, reason, cause); err != nil {
		c.logger.ErrorContext(ctx, "dead letter write failed",
			logging.Reason(reason),
			logging.Error(err),
		)
		return false
	}

	c.logger.WarnContext(ctx, "envelope dead lettered",
		logging.Attempt(attempts),
		logging.Reason(reason),
	)
	return true
}

func (c *Consumer) terminate(msg jetstream.Msg) {
	if err := msg.Term(); err != nil {
		c.logger.Warn("term failed", logging.Error(err))
	}
}
