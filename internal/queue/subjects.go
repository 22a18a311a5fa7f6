package queue

import "strings"

// subjectToken sanitizes an identifier for use as a single NATS subject
// token. The envelope payload keeps the exact identifier; the subject
// token only routes.
func subjectToken(id string) string {
	if id == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n':
			return '_'
		}
		return r
	}, id)
}

// ingestSubject returns the subject an envelope is published to. One
// token per tenant keeps tenants separable for external observation
// without the core ever consuming per-tenant.
func ingestSubject(prefix, tenantID string) string {
	return prefix + "." + subjectToken(tenantID)
}

// dlqSubject returns the dead letter subject for a failure reason.
func dlqSubject(prefix, reason string) string {
	return prefix + "." + subjectToken(reason)
}
