// Package consent defines the per-tenant data-sharing consent model.
package consent

import "time"

// Status is the consent state for one owner and scope.
type Status string

const (
	StatusConsented    Status = "consented"
	StatusWithdrawn    Status = "withdrawn"
	StatusNotConsented Status = "not_consented"
)

// Valid reports whether s is a recognised consent status.
func (s Status) Valid() bool {
	switch s {
	case StatusConsented, StatusWithdrawn, StatusNotConsented:
		return true
	}
	return false
}

// Consent is the consent state of one owner for one scope.
//
// CapturedAt is set the first time the status becomes consented and never
// reset. WithdrawnAt is set on withdrawal and preserved through any later
// re-consent, so the full history survives. HashedRef is the partner-facing
// pseudonym for the owner; the raw ID is never exposed externally.
type Consent struct {
	ID          string     `json:"id,omitempty"`
	OwnerID     string     `json:"-"`
	Scope       string     `json:"scope"`
	Status      Status     `json:"status"`
	HashedRef   string     `json:"hashed_ref"`
	CapturedAt  *time.Time `json:"captured_at,omitempty"`
	WithdrawnAt *time.Time `json:"withdrawn_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
}

// NotConsented returns the synthetic default consent for an owner that has
// never recorded a choice.
func NotConsented(ownerID, scope, hashedRef string) *Consent {
	return &Consent{
		OwnerID:   ownerID,
		Scope:     scope,
		Status:    StatusNotConsented,
		HashedRef: hashedRef,
	}
}

// UpdateRequest holds the fields of a consent mutation.
type UpdateRequest struct {
	Status Status `json:"status"`
}
