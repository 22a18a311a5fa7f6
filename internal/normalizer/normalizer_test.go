package normalizer

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrublog-systems/scrublog/internal/models"
)

func TestNormalize_JSON(t *testing.T) {
	body := []byte(`{"tenant_id":"tenant-1","log_id":"uuid-1234","text":"Customer 555-123-4567 logged in"}`)

	rec, err := Normalize("application/json", http.Header{}, body)
	require.NoError(t, err)

	assert.Equal(t, "tenant-1", rec.TenantID)
	assert.Equal(t, "uuid-1234", rec.LogID)
	assert.Equal(t, "Customer 555-123-4567 logged in", rec.OriginalText)
	assert.Equal(t, models.SourceJSON, rec.SourceFormat)
}

func TestNormalize_JSONTextPreservedExactly(t *testing.T) {
	tests := []string{
		"",
		"plain text",
		"unicode: héllo wörld ✓",
		"  leading and trailing  ",
		"line1\nline2\ttab",
	}

	for _, text := range tests {
		body := []byte(`{"tenant_id":"t1","text":` + jsonQuote(text) + `}`)
		rec, err := Normalize("application/json", http.Header{}, body)
		require.NoError(t, err)
		assert.Equal(t, text, rec.OriginalText)
	}
}

func jsonQuote(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for _, r := range s {
		switch r {
		case '"':
			out = append(out, '\\', '"')
		case '\\':
			out = append(out, '\\', '\\')
		case '\n':
			out = append(out, '\\', 'n')
		case '\t':
			out = append(out, '\\', 't')
		default:
			out = append(out, string(r)...)
		}
	}
	return string(append(out, '"'))
}

func TestNormalize_JSONOptionalLogID(t *testing.T) {
	body := []byte(`{"tenant_id":"tenant-1","text":"no id supplied"}`)

	rec, err := Normalize("application/json", http.Header{}, body)
	require.NoError(t, err)
	assert.Empty(t, rec.LogID)
}

func TestNormalize_JSONMissingTenant(t *testing.T) {
	body := []byte(`{"log_id":"x","text":"hello"}`)

	_, err := Normalize("application/json", http.Header{}, body)
	require.Error(t, err)

	var mf *MissingFieldError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, "tenant_id", mf.Field)
	assert.True(t, IsClientError(err))
}

func TestNormalize_JSONMissingText(t *testing.T) {
	body := []byte(`{"tenant_id":"tenant-1"}`)

	_, err := Normalize("application/json", http.Header{}, body)
	require.Error(t, err)

	var mf *MissingFieldError
	require.True(t, errors.As(err, &mf))
	assert.Equal(t, "text", mf.Field)
}

func TestNormalize_JSONEmptyTextIsValid(t *testing.T) {
	body := []byte(`{"tenant_id":"tenant-1","text":""}`)

	rec, err := Normalize("application/json", http.Header{}, body)
	require.NoError(t, err)
	assert.Equal(t, "", rec.OriginalText)
}

func TestNormalize_JSONMalformed(t *testing.T) {
	body := []byte(`{not valid json`)

	_, err := Normalize("application/json", http.Header{}, body)
	require.ErrorIs(t, err, ErrMalformedBody)
	assert.True(t, IsClientError(err))
}

func TestNormalize_JSONWithCharset(t *testing.T) {
	body := []byte(`{"tenant_id":"tenant-1","text":"hi"}`)

	rec, err := Normalize("application/json; charset=utf-8", http.Header{}, body)
	require.NoError(t, err)
	assert.Equal(t, models.SourceJSON, rec.SourceFormat)
}

func TestNormalize_Plaintext(t *testing.T) {
	header := http.Header{}
	header.Set(TenantHeader, "tenant-1")

	rec, err := Normalize("text/plain", header, []byte("Raw log text here"))
	require.NoError(t, err)

	assert.Equal(t, "tenant-1", rec.TenantID)
	assert.Empty(t, rec.LogID)
	assert.Equal(t, "Raw log text here", rec.OriginalText)
	assert.Equal(t, models.SourcePlaintext, rec.SourceFormat)
}

func TestNormalize_PlaintextEmptyBody(t *testing.T) {
	header := http.Header{}
	header.Set(TenantHeader, "tenant-1")

	rec, err := Normalize("text/plain", header, nil)
	require.NoError(t, err)
	assert.Equal(t, "", rec.OriginalText)
}

func TestNormalize_PlaintextMissingTenant(t *testing.T) {
	_, err := Normalize("text/plain", http.Header{}, []byte("body"))
	require.ErrorIs(t, err, ErrMissingTenant)
	assert.True(t, IsClientError(err))
}

func TestNormalize_UnrecognizedContentTypeTreatedAsPlaintext(t *testing.T) {
	header := http.Header{}
	header.Set(TenantHeader, "tenant-1")

	rec, err := Normalize("application/octet-stream", header, []byte("binary-ish"))
	require.NoError(t, err)
	assert.Equal(t, models.SourcePlaintext, rec.SourceFormat)
	assert.Equal(t, "binary-ish", rec.OriginalText)
}

func TestNormalize_EmptyContentTypeTreatedAsPlaintext(t *testing.T) {
	header := http.Header{}
	header.Set(TenantHeader, "tenant-1")

	rec, err := Normalize("", header, []byte("no content type"))
	require.NoError(t, err)
	assert.Equal(t, models.SourcePlaintext, rec.SourceFormat)
}

func TestNormalize_Deterministic(t *testing.T) {
	body := []byte(`{"tenant_id":"tenant-1","text":"same input"}`)

	first, err := Normalize("application/json", http.Header{}, body)
	require.NoError(t, err)
	second, err := Normalize("application/json", http.Header{}, body)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
