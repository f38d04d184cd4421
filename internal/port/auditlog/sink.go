// Package auditlog defines the write-only audit sink port.
package auditlog

import (
	"context"
	"time"
)

// Audit actions emitted by the export engine.
const (
	ActionBatchCreated    = "batch.created"
	ActionBatchReady      = "batch.ready"
	ActionBatchFailed     = "batch.failed"
	ActionBatchDownloaded = "batch.downloaded"
	ActionConsentUpdated  = "consent.updated"
)

// Event is one audit entry. Subject identifies the affected entity (batch id
// or hashed consent ref — never a raw tenant identifier).
type Event struct {
	Action  string            `json:"action"`
	Actor   string            `json:"actor,omitempty"`
	Subject string            `json:"subject"`
	Detail  map[string]string `json:"detail,omitempty"`
	At      time.Time         `json:"at"`
}

// Sink receives audit events. Delivery failures must not fail the business
// operation that produced the event; callers log and continue.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}
