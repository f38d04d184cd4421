package postgres

import (
	"context"
	"fmt"

	"github.com/rentledger/bureau/internal/domain"
	"github.com/rentledger/bureau/internal/domain/consent"
)

const consentColumns = `id, owner_id, scope, status, hashed_ref,
	captured_at, withdrawn_at, created_at, updated_at`

func scanConsent(row rowScanner) (*consent.Consent, error) {
	var c consent.Consent
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Scope, &c.Status, &c.HashedRef,
		&c.CapturedAt, &c.WithdrawnAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetConsent(ctx context.Context, ownerID, scope string) (*consent.Consent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+consentColumns+` FROM consents WHERE owner_id = $1 AND scope = $2`,
		ownerID, scope)
	c, err := scanConsent(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("get consent: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get consent: %w", err)
	}
	return c, nil
}

func (s *Store) GetConsentByRef(ctx context.Context, hashedRef, scope string) (*consent.Consent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+consentColumns+` FROM consents WHERE hashed_ref = $1 AND scope = $2`,
		hashedRef, scope)
	c, err := scanConsent(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("get consent by ref: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get consent by ref: %w", err)
	}
	return c, nil
}

// UpsertConsent records a consent choice. captured_at is set only on the
// first transition to consented; withdrawn_at is set on withdrawal and kept
// through any later re-consent, so history is never erased.
func (s *Store) UpsertConsent(ctx context.Context, ownerID, scope string, status consent.Status, hashedRef string) (*consent.Consent, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO consents (owner_id, scope, status, hashed_ref, captured_at, withdrawn_at)
		 VALUES ($1, $2, $3, $4,
		         CASE WHEN $3 = 'consented' THEN now() END,
		         CASE WHEN $3 = 'withdrawn' THEN now() END)
		 ON CONFLICT (owner_id, scope) DO UPDATE SET
		     status = EXCLUDED.status,
		     hashed_ref = EXCLUDED.hashed_ref,
		     captured_at = COALESCE(consents.captured_at,
		         CASE WHEN EXCLUDED.status = 'consented' THEN now() END),
		     withdrawn_at = CASE WHEN EXCLUDED.status = 'withdrawn' THEN now()
		         ELSE consents.withdrawn_at END,
		     updated_at = now()
		 RETURNING `+consentColumns,
		ownerID, scope, status, hashedRef)
	c, err := scanConsent(row)
	if err != nil {
		return nil, fmt.Errorf("upsert consent: %w", err)
	}
	return c, nil
}
