// Package gateway accepts ingest requests, normalizes them, and submits
// envelopes to the queue channel. Gateway instances are stateless; any
// number may run concurrently.
package gateway

import (
	"context"
	"fmt"

	"github.com/scrublog-systems/scrublog/internal/envelope"
	"github.com/scrublog-systems/scrublog/internal/models"
	"github.com/scrublog-systems/scrublog/internal/queue"
	"github.com/scrublog-systems/scrublog/pkg/logging"
)

// Service turns normalized records into envelopes and submits them.
type Service struct {
	builder *envelope.Builder
	channel queue.Channel
	logger  *logging.Logger
}

// NewService wires a Service. A nil logger falls back to the default.
func NewService(builder *envelope.Builder, channel queue.Channel, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		builder: builder,
		channel: channel,
		logger:  logger,
	}
}

// Accept builds an envelope for the record and submits it to the queue
// channel exactly once. A returned error means submission failed and the
// caller must be told so it can retry; the request is never silently
// dropped. Success means "durably queued", not "processed".
func (s *Service) Accept(ctx context.Context, rec models.LogRecord) (models.IngestEnvelope, error) {
	env := s.builder.Build(rec)

	if err := s.channel.Publish(ctx, &env); err != nil {
		s.logger.ErrorContext(ctx, "queue submission failed",
			logging.TenantID(env.TenantID),
			logging.LogID(env.LogID),
			logging.Error(err),
		)
		return env, fmt.Errorf("submit envelope: %w", err)
	}

	s.logger.InfoContext(ctx, "envelope queued",
		logging.TenantID(env.TenantID),
		logging.LogID(env.LogID),
	)
	return env, nil
}
