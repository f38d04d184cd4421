package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentledger/bureau/internal/domain/source"
)

// SourceProvider implements sourcedata.Provider against the
// reporting_source_rows view, which the host application owns and keeps
// up to date with assembled tenancy/profile/person snapshots. This module
// only ever reads it.
type SourceProvider struct {
	pool *pgxpool.Pool
}

// NewSourceProvider creates a SourceProvider backed by the given pool.
func NewSourceProvider(pool *pgxpool.Pool) *SourceProvider {
	return &SourceProvider{pool: pool}
}

// FetchRows returns the source rows whose payment due date falls within the
// given calendar month.
func (p *SourceProvider) FetchRows(ctx context.Context, month string) ([]source.Row, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("fetch source rows: bad month %q: %w", month, err)
	}
	end := start.AddDate(0, 1, 0)

	rows, err := p.pool.Query(ctx,
		`SELECT tenancy_ref, tenant_id, property_id, monthly_rent, outstanding_balance,
		        frequency, start_date, end_date, period_start, period_end, due_date, paid_date,
		        date_of_birth, address_line_1, address_line_2, address_line_3, address_line_4,
		        postcode, gone_away, arrangement_to_pay, query, deceased, third_party_paid,
		        eviction_flag, eviction_date, opt_out_reporting,
		        verification_status, verification_method, verified_at,
		        surname, forename, middle_name
		 FROM reporting_source_rows
		 WHERE due_date >= $1 AND due_date < $2
		 ORDER BY tenancy_ref ASC`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch source rows for %s: %w", month, err)
	}
	defer rows.Close()

	var out []source.Row
	for rows.Next() {
		var r source.Row
		err := rows.Scan(
			&r.Tenancy.Ref, &r.Tenancy.TenantID, &r.Tenancy.PropertyID,
			&r.Tenancy.MonthlyRent, &r.Tenancy.OutstandingBalance,
			&r.Tenancy.Frequency, &r.Tenancy.StartDate, &r.Tenancy.EndDate,
			&r.Tenancy.PeriodStart, &r.Tenancy.PeriodEnd,
			&r.Tenancy.DueDate, &r.Tenancy.PaidDate,
			&r.Profile.DateOfBirth, &r.Profile.AddressLine1, &r.Profile.AddressLine2,
			&r.Profile.AddressLine3, &r.Profile.AddressLine4, &r.Profile.Postcode,
			&r.Profile.GoneAway, &r.Profile.ArrangementToPay, &r.Profile.Query,
			&r.Profile.Deceased, &r.Profile.ThirdPartyPaid,
			&r.Profile.EvictionFlag, &r.Profile.EvictionDate, &r.Profile.OptOutReporting,
			&r.Profile.VerificationStatus, &r.Profile.VerificationMethod, &r.Profile.VerifiedAt,
			&r.Person.Surname, &r.Person.Forename, &r.Person.MiddleName)
		if err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
