package logging

import "log/slog"

// Common field names for consistent logging across services.
const (
	FieldService  = "service"
	FieldTenantID = "tenant_id"
	FieldLogID    = "log_id"
	FieldAttempt  = "attempt"
	FieldReason   = "reason"
	FieldSubject  = "subject"
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldError    = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// TenantID returns a slog attribute for the tenant identifier.
func TenantID(id string) slog.Attr {
	return slog.String(FieldTenantID, id)
}

// LogID returns a slog attribute for the log identifier.
func LogID(id string) slog.Attr {
	return slog.String(FieldLogID, id)
}

// Attempt returns a slog attribute for a delivery attempt count.
func Attempt(n int) slog.Attr {
	return slog.Int(FieldAttempt, n)
}

// Reason returns a slog attribute for a failure classification.
func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

// Subject returns a slog attribute for a queue subject.
func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
