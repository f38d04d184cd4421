package postgres

import (
	"context"
	"fmt"

	"github.com/rentledger/bureau/internal/domain/record"
)

// ListRecords returns a batch's records in position order, which is the
// order the file content is assembled in.
func (s *Store) ListRecords(ctx context.Context, batchID string) ([]record.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, batch_id, position, tenant_ref, property_ref, postcode_outward,
		        rent_amount_pence, outstanding_balance_pence, rent_frequency,
		        period_start, period_end, due_date, paid_date, payment_status,
		        verification_status, verification_method, verified_at,
		        consent_status, consent_at, audit_ref, detail_line, created_at
		 FROM reporting_records WHERE batch_id = $1 ORDER BY position ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list records for batch %s: %w", batchID, err)
	}
	defer rows.Close()

	var records []record.Record
	for rows.Next() {
		var r record.Record
		err := rows.Scan(
			&r.ID, &r.BatchID, &r.Position, &r.TenantRef, &r.PropertyRef, &r.PostcodeOutward,
			&r.RentAmountPence, &r.OutstandingBalancePence, &r.RentFrequency,
			&r.PeriodStart, &r.PeriodEnd, &r.DueDate, &r.PaidDate, &r.PaymentStatus,
			&r.VerificationStatus, &r.VerificationMethod, &r.VerifiedAt,
			&r.ConsentStatus, &r.ConsentAt, &r.AuditRef, &r.DetailLine, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
