// Package store persists processed log entries under strict per-tenant
// isolation. The tenant identifier is part of every operation's signature;
// omitting it is a compile-time error, not a runtime one. No operation
// here ever crosses tenants.
package store

import (
	"context"
	"errors"

	"github.com/scrublog-systems/scrublog/internal/models"
)

// ErrNotFound is returned by Get when no entry exists for the key.
var ErrNotFound = errors.New("entry not found")

// Store is a keyed put/get over the composite key (tenant_id, log_id).
// Put has idempotent overwrite semantics: writing the same key again
// replaces the row, it never creates a duplicate.
type Store interface {
	Put(ctx context.Context, entry *models.ProcessedLogEntry) error
	Get(ctx context.Context, tenantID, logID string) (*models.ProcessedLogEntry, error)
	Close()
}
