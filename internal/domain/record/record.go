// Package record defines the persisted reporting record model.
package record

import "time"

// Record is one exported row of a reporting batch. Records are immutable once
// persisted: downloads reassemble file content from these rows alone, never
// from live tenancy data.
//
// TenantRef and PropertyRef are keyed one-way hashes of the internal
// identifiers; the raw IDs never leave the generation run. DetailLine holds
// the fully encoded 300-byte bureau detail record so the fixed-width format
// replays byte-identically regardless of later codec changes.
type Record struct {
	ID                      string     `json:"id"`
	BatchID                 string     `json:"batch_id"`
	Position                int        `json:"position"`
	TenantRef               string     `json:"tenant_ref"`
	PropertyRef             string     `json:"property_ref"`
	PostcodeOutward         string     `json:"postcode_outward"`
	RentAmountPence         int64      `json:"rent_amount_pence"`
	OutstandingBalancePence int64      `json:"outstanding_balance_pence"`
	RentFrequency           string     `json:"rent_frequency"`
	PeriodStart             *time.Time `json:"period_start,omitempty"`
	PeriodEnd               *time.Time `json:"period_end,omitempty"`
	DueDate                 *time.Time `json:"due_date,omitempty"`
	PaidDate                *time.Time `json:"paid_date,omitempty"`
	PaymentStatus           string     `json:"payment_status"` // "0" settled, "1" in arrears
	VerificationStatus      string     `json:"verification_status"`
	VerificationMethod      string     `json:"verification_method,omitempty"`
	VerifiedAt              *time.Time `json:"verified_at,omitempty"`
	ConsentStatus           string     `json:"consent_status"`
	ConsentAt               *time.Time `json:"consent_at,omitempty"`
	AuditRef                string     `json:"audit_ref"`
	DetailLine              string     `json:"-"`
	CreatedAt               time.Time  `json:"created_at"`
}
