// Package normalizer converts inbound requests of arbitrary content type
// into canonical log records. It is pure: no I/O, deterministic for
// identical input.
package normalizer

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/scrublog-systems/scrublog/internal/models"
)

// TenantHeader carries the tenant identifier for plaintext submissions.
const TenantHeader = "X-Tenant-ID"

var (
	// ErrMissingTenant is returned when a plaintext submission carries no
	// tenant header. The tenant is never inferred.
	ErrMissingTenant = errors.New("missing " + TenantHeader + " header")

	// ErrMalformedBody is returned when a structured body fails to parse.
	ErrMalformedBody = errors.New("malformed JSON body")
)

// MissingFieldError reports a required field absent from a structured body.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required field: " + e.Field
}

// ingestPayload is the structured ingest body. Text is a pointer so an
// absent field is distinguishable from an empty string: empty text is a
// valid log, absent text is a client error.
type ingestPayload struct {
	TenantID string  `json:"tenant_id"`
	LogID    string  `json:"log_id"`
	Text     *string `json:"text"`
}

// Normalize converts a request body into a canonical LogRecord.
//
// Structured bodies (application/json) must carry tenant_id and text;
// log_id is optional and filled later by the envelope builder. Anything
// else is treated as plaintext: the whole body becomes the original text
// and the tenant comes from the X-Tenant-ID header.
func Normalize(contentType string, header http.Header, body []byte) (*models.LogRecord, error) {
	mediaType := contentType
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = mt
	}

	if strings.EqualFold(mediaType, "application/json") {
		return normalizeJSON(body)
	}
	return normalizePlaintext(header, body)
}

func normalizeJSON(body []byte) (*models.LogRecord, error) {
	var payload ingestPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ErrMalformedBody
	}

	if payload.TenantID == "" {
		return nil, &MissingFieldError{Field: "tenant_id"}
	}
	if payload.Text == nil {
		return nil, &MissingFieldError{Field: "text"}
	}

	return &models.LogRecord{
		TenantID:     payload.TenantID,
		LogID:        payload.LogID,
		OriginalText: *payload.Text,
		SourceFormat: models.SourceJSON,
	}, nil
}

func normalizePlaintext(header http.Header, body []byte) (*models.LogRecord, error) {
	tenantID := header.Get(TenantHeader)
	if tenantID == "" {
		return nil, ErrMissingTenant
	}

	return &models.LogRecord{
		TenantID:     tenantID,
		OriginalText: string(body),
		SourceFormat: models.SourcePlaintext,
	}, nil
}

// IsClientError reports whether err is a validation failure the caller
// must fix, as opposed to an internal fault.
func IsClientError(err error) bool {
	var mf *MissingFieldError
	return errors.Is(err, ErrMissingTenant) ||
		errors.Is(err, ErrMalformedBody) ||
		errors.As(err, &mf)
}
