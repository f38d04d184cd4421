// Package source defines the strongly-typed source row supplied by the
// data-assembly collaborator, plus its validation rules.
package source

import (
	"strings"
	"time"
)

// Rent frequency values as supplied by the collaborator.
const (
	FrequencyWeekly      = "weekly"
	FrequencyFortnightly = "fortnightly"
	FrequencyMonthly     = "monthly"
)

// VerificationVerified is the profile verification status that passes the
// default (verified-only) batch filter.
const VerificationVerified = "verified"

// Row is one assembled tenancy/profile/person snapshot for a reporting month.
// It is read-only to this module: the collaborator owns assembly.
type Row struct {
	Tenancy Tenancy `json:"tenancy"`
	Profile Profile `json:"profile"`
	Person  Person  `json:"person"`
}

// Tenancy carries the tenancy and payment fields for the reporting month.
// Monetary amounts arrive as 2-decimal strings and are converted to integer
// pence at this boundary, never carried as floats.
type Tenancy struct {
	Ref                string     `json:"ref"`
	TenantID           string     `json:"tenant_id"`
	PropertyID         string     `json:"property_id"`
	MonthlyRent        string     `json:"monthly_rent"`
	OutstandingBalance string     `json:"outstanding_balance"`
	Frequency          string     `json:"frequency"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	PeriodStart        *time.Time `json:"period_start,omitempty"`
	PeriodEnd          *time.Time `json:"period_end,omitempty"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	PaidDate           *time.Time `json:"paid_date,omitempty"`
}

// Profile carries the tenant profile fields used by the bureau layout and
// the batch filters.
type Profile struct {
	DateOfBirth        *time.Time `json:"date_of_birth,omitempty"`
	AddressLine1       string     `json:"address_line_1"`
	AddressLine2       string     `json:"address_line_2"`
	AddressLine3       string     `json:"address_line_3"`
	AddressLine4       string     `json:"address_line_4"`
	Postcode           string     `json:"postcode"`
	GoneAway           bool       `json:"gone_away"`
	ArrangementToPay   bool       `json:"arrangement_to_pay"`
	Query              bool       `json:"query"`
	Deceased           bool       `json:"deceased"`
	ThirdPartyPaid     bool       `json:"third_party_paid"`
	EvictionFlag       bool       `json:"eviction_flag"`
	EvictionDate       *time.Time `json:"eviction_date,omitempty"`
	OptOutReporting    bool       `json:"opt_out_reporting"`
	VerificationStatus string     `json:"verification_status"`
	VerificationMethod string     `json:"verification_method,omitempty"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
}

// Person carries the tenant name fields.
type Person struct {
	Surname    string `json:"surname"`
	Forename   string `json:"forename"`
	MiddleName string `json:"middle_name"`
}

// FrequencyCode maps a collaborator frequency value to its single-character
// bureau code. Unknown values map to empty.
func FrequencyCode(frequency string) string {
	switch strings.ToLower(strings.TrimSpace(frequency)) {
	case FrequencyWeekly:
		return "W"
	case FrequencyFortnightly:
		return "F"
	case FrequencyMonthly:
		return "M"
	}
	return ""
}

// PostcodeOutward returns the outward (district) part of a UK postcode:
// everything before the space, or all but the final three characters when
// the space is missing.
func PostcodeOutward(postcode string) string {
	pc := strings.ToUpper(strings.TrimSpace(postcode))
	if pc == "" {
		return ""
	}
	if i := strings.IndexByte(pc, ' '); i > 0 {
		return pc[:i]
	}
	if len(pc) > 3 {
		return pc[:len(pc)-3]
	}
	return pc
}
