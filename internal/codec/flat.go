package codec

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rentledger/bureau/internal/domain/record"
)

// exportRow is the stable projection of a persisted record used by the CSV
// and JSON formats. Only immutable record fields appear, formatted
// explicitly, so regenerated content is byte-identical across reads.
type exportRow struct {
	Position                int    `json:"position"`
	TenantRef               string `json:"tenant_ref"`
	PropertyRef             string `json:"property_ref"`
	PostcodeOutward         string `json:"postcode_outward"`
	RentAmountPence         int64  `json:"rent_amount_pence"`
	OutstandingBalancePence int64  `json:"outstanding_balance_pence"`
	RentFrequency           string `json:"rent_frequency"`
	PeriodStart             string `json:"period_start,omitempty"`
	PeriodEnd               string `json:"period_end,omitempty"`
	DueDate                 string `json:"due_date,omitempty"`
	PaidDate                string `json:"paid_date,omitempty"`
	PaymentStatus           string `json:"payment_status"`
	VerificationStatus      string `json:"verification_status"`
	VerificationMethod      string `json:"verification_method,omitempty"`
	VerifiedAt              string `json:"verified_at,omitempty"`
	ConsentStatus           string `json:"consent_status"`
	ConsentAt               string `json:"consent_at,omitempty"`
	AuditRef                string `json:"audit_ref"`
}

func isoDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func isoTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func projectRow(r record.Record) exportRow {
	return exportRow{
		Position:                r.Position,
		TenantRef:               r.TenantRef,
		PropertyRef:             r.PropertyRef,
		PostcodeOutward:         r.PostcodeOutward,
		RentAmountPence:         r.RentAmountPence,
		OutstandingBalancePence: r.OutstandingBalancePence,
		RentFrequency:           r.RentFrequency,
		PeriodStart:             isoDate(r.PeriodStart),
		PeriodEnd:               isoDate(r.PeriodEnd),
		DueDate:                 isoDate(r.DueDate),
		PaidDate:                isoDate(r.PaidDate),
		PaymentStatus:           r.PaymentStatus,
		VerificationStatus:      r.VerificationStatus,
		VerificationMethod:      r.VerificationMethod,
		VerifiedAt:              isoTime(r.VerifiedAt),
		ConsentStatus:           r.ConsentStatus,
		ConsentAt:               isoTime(r.ConsentAt),
		AuditRef:                r.AuditRef,
	}
}

var csvColumns = []string{
	"position", "tenant_ref", "property_ref", "postcode_outward",
	"rent_amount_pence", "outstanding_balance_pence", "rent_frequency",
	"period_start", "period_end", "due_date", "paid_date", "payment_status",
	"verification_status", "verification_method", "verified_at",
	"consent_status", "consent_at", "audit_ref",
}

// EncodeCSV renders the records as the CSV convenience format: a fixed
// header row then one row per record in position order, CRLF-terminated.
func EncodeCSV(records []record.Record) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	if err := w.Write(csvColumns); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := projectRow(r)
		err := w.Write([]string{
			fmt.Sprintf("%d", row.Position),
			row.TenantRef,
			row.PropertyRef,
			row.PostcodeOutward,
			fmt.Sprintf("%d", row.RentAmountPence),
			fmt.Sprintf("%d", row.OutstandingBalancePence),
			row.RentFrequency,
			row.PeriodStart,
			row.PeriodEnd,
			row.DueDate,
			row.PaidDate,
			row.PaymentStatus,
			row.VerificationStatus,
			row.VerificationMethod,
			row.VerifiedAt,
			row.ConsentStatus,
			row.ConsentAt,
			row.AuditRef,
		})
		if err != nil {
			return "", fmt.Errorf("write csv row %d: %w", row.Position, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}

// EncodeJSON renders the records as a JSON array in position order.
func EncodeJSON(records []record.Record) (string, error) {
	rows := make([]exportRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, projectRow(r))
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json export: %w", err)
	}
	return string(data) + "\n", nil
}
