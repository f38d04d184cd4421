package postgres

import (
	"context"
	"fmt"

	"github.com/rentledger/bureau/internal/domain"
	"github.com/rentledger/bureau/internal/domain/batch"
	"github.com/rentledger/bureau/internal/domain/record"
)

const batchColumns = `id, seq, month, format, include_unverified, only_consented,
	status, record_count, source_count, rejected_count,
	checksum_sha256, failed_reason, created_by, created_at, updated_at`

func scanBatch(row rowScanner) (*batch.Batch, error) {
	var b batch.Batch
	var checksum, failedReason *string
	err := row.Scan(
		&b.ID, &b.Seq, &b.Month, &b.Format,
		&b.Options.IncludeUnverified, &b.Options.OnlyConsented,
		&b.Status, &b.RecordCount, &b.SourceCount, &b.RejectedCount,
		&checksum, &failedReason, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if checksum != nil {
		b.ChecksumSHA256 = *checksum
	}
	if failedReason != nil {
		b.FailedReason = *failedReason
	}
	return &b, nil
}

func (s *Store) CreateBatch(ctx context.Context, req batch.CreateRequest) (*batch.Batch, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO reporting_batches (month, format, include_unverified, only_consented, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+batchColumns,
		req.Month, req.Format, req.IncludeUnverified, req.OnlyConsented, req.ActorID)
	b, err := scanBatch(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create batch for %s: generation already in flight: %w",
				req.Month, domain.ErrConflict)
		}
		return nil, fmt.Errorf("create batch: %w", err)
	}
	return b, nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (*batch.Batch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM reporting_batches WHERE id = $1`, id)
	b, err := scanBatch(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("get batch %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get batch %s: %w", id, err)
	}
	return b, nil
}

func (s *Store) ListBatches(ctx context.Context) ([]batch.Batch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM reporting_batches ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []batch.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

// FinalizeBatch inserts the run's records and flips the batch to ready in a
// single transaction, so a mid-run failure leaves no partial records behind.
func (s *Store) FinalizeBatch(ctx context.Context, id string, records []record.Record, result batch.Result) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("finalize batch %s: begin: %w", id, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, r := range records {
		_, err := tx.Exec(ctx,
			`INSERT INTO reporting_records (
				batch_id, position, tenant_ref, property_ref, postcode_outward,
				rent_amount_pence, outstanding_balance_pence, rent_frequency,
				period_start, period_end, due_date, paid_date, payment_status,
				verification_status, verification_method, verified_at,
				consent_status, consent_at, audit_ref, detail_line)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
			id, r.Position, r.TenantRef, r.PropertyRef, r.PostcodeOutward,
			r.RentAmountPence, r.OutstandingBalancePence, r.RentFrequency,
			r.PeriodStart, r.PeriodEnd, r.DueDate, r.PaidDate, r.PaymentStatus,
			r.VerificationStatus, r.VerificationMethod, r.VerifiedAt,
			r.ConsentStatus, r.ConsentAt, r.AuditRef, r.DetailLine)
		if err != nil {
			return fmt.Errorf("finalize batch %s: insert record %d: %w", id, r.Position, err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE reporting_batches
		 SET status = $2, record_count = $3, source_count = $4, rejected_count = $5,
		     checksum_sha256 = $6, updated_at = now()
		 WHERE id = $1 AND status = $7`,
		id, batch.StatusReady, result.RecordCount, result.SourceCount,
		result.RejectedCount, result.Checksum, batch.StatusGenerating)
	if err != nil {
		return fmt.Errorf("finalize batch %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finalize batch %s: not in generating state: %w", id, domain.ErrConflict)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("finalize batch %s: commit: %w", id, err)
	}
	return nil
}

func (s *Store) FailBatch(ctx context.Context, id, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reporting_batches
		 SET status = $2, failed_reason = $3, updated_at = now()
		 WHERE id = $1 AND status = $4`,
		id, batch.StatusFailed, reason, batch.StatusGenerating)
	if err != nil {
		return fmt.Errorf("fail batch %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fail batch %s: not in generating state: %w", id, domain.ErrConflict)
	}
	return nil
}
