// Package batch defines the reporting batch domain model and its lifecycle states.
package batch

import "time"

// Status is the lifecycle state of a reporting batch.
// A batch is created in StatusGenerating and moves exactly once to
// StatusReady or StatusFailed; both are terminal.
type Status string

const (
	StatusGenerating Status = "generating"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Format selects the wire format of the exported file.
type Format string

const (
	FormatFixed Format = "fixed"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// Valid reports whether f is one of the supported export formats.
func (f Format) Valid() bool {
	switch f {
	case FormatFixed, FormatCSV, FormatJSON:
		return true
	}
	return false
}

// Options are the row filters applied during generation.
type Options struct {
	IncludeUnverified bool `json:"include_unverified"`
	OnlyConsented     bool `json:"only_consented"`
}

// Batch is one reporting export run. Batches are never deleted; failed runs
// stay visible for audit.
type Batch struct {
	ID             string    `json:"id"`
	Seq            int64     `json:"seq"`
	Month          string    `json:"month"` // YYYY-MM
	Format         Format    `json:"format"`
	Options        Options   `json:"options"`
	Status         Status    `json:"status"`
	RecordCount    int       `json:"record_count"`
	SourceCount    int       `json:"source_count"`
	RejectedCount  int       `json:"rejected_count"`
	ChecksumSHA256 string    `json:"checksum_sha256,omitempty"`
	FailedReason   string    `json:"failed_reason,omitempty"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Result carries the outcome of a successful generation run, applied to the
// batch row when it is finalized.
type Result struct {
	Checksum      string
	RecordCount   int
	SourceCount   int
	RejectedCount int
}

// CreateRequest holds the fields required to start a new batch generation.
type CreateRequest struct {
	Month             string `json:"month"`
	Format            Format `json:"format"`
	IncludeUnverified bool   `json:"include_unverified"`
	OnlyConsented     bool   `json:"only_consented"`
	ActorID           string `json:"-"`
}
