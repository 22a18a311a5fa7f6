package gateway

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/scrublog-systems/scrublog/internal/metrics"
	"github.com/scrublog-systems/scrublog/internal/normalizer"
	"github.com/scrublog-systems/scrublog/internal/ratelimit"
	"github.com/scrublog-systems/scrublog/pkg/httputil"
	"github.com/scrublog-systems/scrublog/pkg/logging"
)

// Handler is the HTTP face of the intake gateway.
type Handler struct {
	service     *Service
	rateLimiter ratelimit.RateLimiter
	maxBodySize int64
}

// NewHandler constructs a Handler. A nil rate limiter disables limiting.
func NewHandler(service *Service, rateLimiter ratelimit.RateLimiter, maxBodySize int64) *Handler {
	if rateLimiter == nil {
		rateLimiter = &ratelimit.NoOpRateLimiter{}
	}
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		maxBodySize: maxBodySize,
	}
}

// HandleIngest accepts one log submission. Client-shaped validation
// failures map to 400, oversized bodies to 413, rate limiting to 429,
// and queue unavailability to 503 so the caller knows to retry.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		metrics.RequestsTotal.WithLabelValues(strconv.Itoa(http.StatusMethodNotAllowed)).Inc()
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	reader := r.Body
	if h.maxBodySize > 0 {
		reader = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.RejectionsTotal.WithLabelValues("body_too_large").Inc()
			metrics.RequestsTotal.WithLabelValues(strconv.Itoa(http.StatusRequestEntityTooLarge)).Inc()
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		metrics.RequestsTotal.WithLabelValues(strconv.Itoa(http.StatusBadRequest)).Inc()
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	rec, err := normalizer.Normalize(r.Header.Get("Content-Type"), r.Header, body)
	if err != nil {
		// Normalization failures are client errors by construction: the
		// normalizer does no I/O and can only report validation problems.
		metrics.RejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
		metrics.RequestsTotal.WithLabelValues(strconv.Itoa(http.StatusBadRequest)).Inc()
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	allowed, err := h.rateLimiter.Allow(r.Context(), rec.TenantID)
	if err != nil {
		// A broken limiter must not block intake; fail open.
		metrics.RateLimitErrors.Inc()
		slog.Warn("rate limiter check failed, failing open",
			logging.TenantID(rec.TenantID),
			logging.Error(err),
		)
		allowed = true
	}
	if !allowed {
		metrics.RejectionsTotal.WithLabelValues("rate_limited").Inc()
		metrics.RequestsTotal.WithLabelValues(strconv.Itoa(http.StatusTooManyRequests)).Inc()
		httputil.WriteError(w, http.StatusTooManyRequests, "tenant rate limit exceeded")
		return
	}

	env, err := h.service.Accept(r.Context(), *rec)
	if err != nil {
		metrics.RejectionsTotal.WithLabelValues("queue_unavailable").Inc()
		metrics.RequestsTotal.WithLabelValues(strconv.Itoa(http.StatusServiceUnavailable)).Inc()
		httputil.WriteError(w, http.StatusServiceUnavailable, "failed to queue log for processing")
		return
	}

	metrics.RequestsTotal.WithLabelValues(strconv.Itoa(http.StatusAccepted)).Inc()
	metrics.RequestBytesTotal.Add(float64(len(body)))
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"log_id": env.LogID,
	})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready reports readiness to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func rejectionReason(err error) string {
	var mf *normalizer.MissingFieldError
	switch {
	case errors.As(err, &mf):
		return "missing_field"
	case errors.Is(err, normalizer.ErrMissingTenant):
		return "missing_tenant"
	case errors.Is(err, normalizer.ErrMalformedBody):
		return "malformed_body"
	default:
		return "invalid"
	}
}
