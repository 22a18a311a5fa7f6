// Package queue is the pipeline's at-least-once channel between the
// gateway and the worker, backed by NATS JetStream. A work-queue stream
// with explicit acks provides visibility semantics: an unacked message is
// redelivered after AckWait, up to MaxDeliver attempts, and is then
// routed to the dead letter stream.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/scrublog-systems/scrublog/internal/metrics"
	"github.com/scrublog-systems/scrublog/internal/models"
	natsclient "github.com/scrublog-systems/scrublog/pkg/messaging/nats"
)

// Options describe the streams and consumer the pipeline uses.
type Options struct {
	Stream        string
	SubjectPrefix string
	DLQStream     string
	DLQSubject    string
	Consumer      string
	MaxDeliver    int
	AckWait       time.Duration
	NakDelay      time.Duration
	MaxAckPending int
}

// Channel is the gateway's view of the queue: submit one envelope.
type Channel interface {
	Publish(ctx context.Context, env *models.IngestEnvelope) error
}

// jsPublisher is the slice of the JetStream client the queue needs for
// durable publishes. Narrowed to an interface so tests can fake it.
type jsPublisher interface {
	PublishSync(ctx context.Context, subject string, data []byte) (*jetstream.PubAck, error)
}

// Publisher submits envelopes to the ingest stream. Publish returns only
// after the broker acknowledges the write, so an accepted request really
// is durably queued.
type Publisher struct {
	js   jsPublisher
	opts Options
}

// NewPublisher wires a Publisher over a JetStream client.
func NewPublisher(js *natsclient.JetStreamClient, opts Options) *Publisher {
	return &Publisher{js: js, opts: opts}
}

// Publish serializes the envelope and writes it to the ingest stream.
func (p *Publisher) Publish(ctx context.Context, env *models.IngestEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	subject := ingestSubject(p.opts.SubjectPrefix, env.TenantID)
	if _, err := p.js.PublishSync(ctx, subject, data); err != nil {
		metrics.QueuePublishErrors.Inc()
		return fmt.Errorf("publish envelope: %w", err)
	}

	metrics.QueuePublishedTotal.Inc()
	return nil
}

// EnsureStreams creates or updates the ingest and dead letter streams.
// Called by both services on startup; CreateOrUpdate is idempotent.
func EnsureStreams(ctx context.Context, js *natsclient.JetStreamClient, opts Options) error {
	_, err := js.CreateOrUpdateStream(ctx, natsclient.StreamConfig{
		Name:      opts.Stream,
		Subjects:  []string{opts.SubjectPrefix + ".>"},
		MaxAge:    24 * time.Hour,
		MaxBytes:  1024 * 1024 * 1024,
		MaxMsgs:   1_000_000,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("ensure ingest stream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, natsclient.StreamConfig{
		Name:      opts.DLQStream,
		Subjects:  []string{opts.DLQSubject + ".>"},
		MaxAge:    7 * 24 * time.Hour,
		MaxBytes:  256 * 1024 * 1024,
		MaxMsgs:   100_000,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("ensure dlq stream: %w", err)
	}

	return nil
}
