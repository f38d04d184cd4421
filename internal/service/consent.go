package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rentledger/bureau/internal/domain"
	"github.com/rentledger/bureau/internal/domain/consent"
	"github.com/rentledger/bureau/internal/port/auditlog"
	"github.com/rentledger/bureau/internal/port/database"
	"github.com/rentledger/bureau/internal/pseudonym"
)

// ConsentService manages per-tenant reporting consent. The partner-facing
// surface addresses consent only by hashed reference; raw tenant identifiers
// stay internal.
type ConsentService struct {
	store  database.Store
	hasher *pseudonym.Hasher
	audit  auditlog.Sink
	scope  string
}

// NewConsentService creates a ConsentService for the configured scope.
func NewConsentService(store database.Store, hasher *pseudonym.Hasher, audit auditlog.Sink, scope string) *ConsentService {
	return &ConsentService{
		store:  store,
		hasher: hasher,
		audit:  audit,
		scope:  scope,
	}
}

// Get returns the consent state for a raw tenant id, defaulting to
// not_consented when no choice has ever been recorded.
func (s *ConsentService) Get(ctx context.Context, ownerID string) (*consent.Consent, error) {
	c, err := s.store.GetConsent(ctx, ownerID, s.scope)
	if errors.Is(err, domain.ErrNotFound) {
		return consent.NotConsented(ownerID, s.scope, s.hasher.Hash(ownerID)), nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetByRef returns the consent state for a hashed partner-facing reference.
// Unknown references are domain.ErrNotFound: the partner learns nothing
// about whether a tenant exists.
func (s *ConsentService) GetByRef(ctx context.Context, hashedRef string) (*consent.Consent, error) {
	return s.store.GetConsentByRef(ctx, hashedRef, s.scope)
}

// Update records a consent choice for a raw tenant id.
func (s *ConsentService) Update(ctx context.Context, ownerID string, status consent.Status) (*consent.Consent, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown consent status %q: %w", status, domain.ErrValidation)
	}

	c, err := s.store.UpsertConsent(ctx, ownerID, s.scope, status, s.hasher.Hash(ownerID))
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, c)
	return c, nil
}

// UpdateByRef records a consent choice addressed by hashed reference. The
// reference must already be known; this surface cannot enrol new tenants.
func (s *ConsentService) UpdateByRef(ctx context.Context, hashedRef string, status consent.Status) (*consent.Consent, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown consent status %q: %w", status, domain.ErrValidation)
	}

	existing, err := s.store.GetConsentByRef(ctx, hashedRef, s.scope)
	if err != nil {
		return nil, err
	}

	c, err := s.store.UpsertConsent(ctx, existing.OwnerID, s.scope, status, hashedRef)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, c)
	return c, nil
}

func (s *ConsentService) recordAudit(ctx context.Context, c *consent.Consent) {
	ev := auditlog.Event{
		Action:  auditlog.ActionConsentUpdated,
		Subject: c.HashedRef,
		Detail:  map[string]string{"scope": c.Scope, "status": string(c.Status)},
		At:      time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, ev); err != nil {
		slog.Error("audit event not delivered", "action", ev.Action, "error", err)
	}
}
