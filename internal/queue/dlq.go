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

// DeadLetter is the dead letter stream entry: the final envelope plus the
// failure classification, for external manual inspection. Dead-lettered
// envelopes are never reprocessed by the pipeline.
type DeadLetter struct {
	Envelope  *models.IngestEnvelope `json:"envelope"`
	Reason    string                 `json:"reason"`
	Error     string                 `json:"error,omitempty"`
	Attempts  int                    `json:"attempts"`
	Timestamp time.Time              `json:"timestamp"`
}

// DLQ writes exhausted or corrupt envelopes to the dead letter stream.
type DLQ struct {
	js      jsPublisher
	subject string
}

// NewDLQ wires a DLQ writer over a JetStream client.
func NewDLQ(js *natsclient.JetStreamClient, opts Options) *DLQ {
	return &DLQ{js: js, subject: opts.DLQSubject}
}

// Write publishes one dead letter entry under logs.dlq.<reason>.
func (q *DLQ) Write(ctx context.Context, env *models.IngestEnvelope, attempts int, reason string, cause error) error {
	entry := DeadLetter{
		Envelope:  env,
		Reason:    reason,
		Attempts:  attempts,
		Timestamp: time.Now().UTC(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	if _, err := q.js.PublishSync(ctx, dlqSubject(q.subject, reason), data); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}

	metrics.DLQWrittenTotal.WithLabelValues(reason).Inc()
	return nil
}

// Inspector reads and purges the dead letter stream. Used by scrubctl,
// not by the pipeline itself.
type Inspector struct {
	stream jetstream.Stream
}

// NewInspector binds to an existing dead letter stream.
func NewInspector(ctx context.Context, js *natsclient.JetStreamClient, opts Options) (*Inspector, error) {
	stream, err := js.CreateOrUpdateStream(ctx, natsclient.StreamConfig{
		Name:      opts.DLQStream,
		Subjects:  []string{opts.DLQSubject + ".>"},
		MaxAge:    7 * 24 * time.Hour,
		MaxBytes:  256 * 1024 * 1024,
		MaxMsgs:   100_000,
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("bind dlq stream: %w", err)
	}
	return &Inspector{stream: stream}, nil
}

// List returns up to limit dead letter entries without consuming them.
func (i *Inspector) List(ctx context.Context, subjectPrefix string, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}

	consumer, err := i.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: subjectPrefix + ".>",
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		MaxDeliver:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("create list consumer: %w", err)
	}

	msgs, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	var entries []DeadLetter
	for msg := range msgs.Messages() {
		var entry DeadLetter
		if err := json.Unmarshal(msg.Data(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Purge removes all entries from the dead letter stream.
func (i *Inspector) Purge(ctx context.Context) error {
	if err := i.stream.Purge(ctx); err != nil {
		return fmt.Errorf("purge dlq stream: %w", err)
	}
	return nil
}
