// Package database defines the persistence port for the export engine.
package database

import (
	"context"

	"github.com/rentledger/bureau/internal/domain/batch"
	"github.com/rentledger/bureau/internal/domain/consent"
	"github.com/rentledger/bureau/internal/domain/record"
)

// Store is the persistence interface. The postgres adapter implements it;
// services depend only on this interface.
type Store interface {
	// CreateBatch inserts a new batch in the generating state. It returns
	// domain.ErrConflict when another batch for the same month is already
	// generating.
	CreateBatch(ctx context.Context, req batch.CreateRequest) (*batch.Batch, error)
	GetBatch(ctx context.Context, id string) (*batch.Batch, error)
	ListBatches(ctx context.Context) ([]batch.Batch, error)

	// FinalizeBatch atomically inserts the batch's records and moves the
	// batch from generating to ready. Either everything is persisted or
	// nothing is.
	FinalizeBatch(ctx context.Context, id string, records []record.Record, result batch.Result) error
	// FailBatch moves the batch to failed with a human-readable reason.
	FailBatch(ctx context.Context, id, reason string) error

	// ListRecords returns a batch's records in position order.
	ListRecords(ctx context.Context, batchID string) ([]record.Record, error)

	// GetConsent looks up consent by raw owner id; returns
	// domain.ErrNotFound when no choice has been recorded.
	GetConsent(ctx context.Context, ownerID, scope string) (*consent.Consent, error)
	// GetConsentByRef looks up consent by its hashed partner-facing
	// reference.
	GetConsentByRef(ctx context.Context, hashedRef, scope string) (*consent.Consent, error)
	// UpsertConsent records a consent choice, preserving captured_at and
	// withdrawn_at history.
	UpsertConsent(ctx context.Context, ownerID, scope string, status consent.Status, hashedRef string) (*consent.Consent, error)
}
