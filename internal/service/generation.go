// Package service contains the application services of the export engine:
// batch generation, the export surface, and consent management.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rentledger/bureau/internal/codec"
	"github.com/rentledger/bureau/internal/config"
	"github.com/rentledger/bureau/internal/domain"
	"github.com/rentledger/bureau/internal/domain/batch"
	"github.com/rentledger/bureau/internal/domain/consent"
	"github.com/rentledger/bureau/internal/domain/record"
	"github.com/rentledger/bureau/internal/domain/source"
	"github.com/rentledger/bureau/internal/port/auditlog"
	"github.com/rentledger/bureau/internal/port/database"
	"github.com/rentledger/bureau/internal/port/sourcedata"
	"github.com/rentledger/bureau/internal/pseudonym"
)

// GenerationService drives the batch lifecycle: generating -> ready|failed.
type GenerationService struct {
	store  database.Store
	source sourcedata.Provider
	hasher *pseudonym.Hasher
	audit  auditlog.Sink
	cfg    config.Bureau
}

// NewGenerationService creates a GenerationService.
func NewGenerationService(store database.Store, provider sourcedata.Provider, hasher *pseudonym.Hasher, audit auditlog.Sink, cfg config.Bureau) *GenerationService {
	return &GenerationService{
		store:  store,
		source: provider,
		hasher: hasher,
		audit:  audit,
		cfg:    cfg,
	}
}

// validMonth reports whether month is a well-formed YYYY-MM value.
func validMonth(month string) bool {
	if len(month) != 7 {
		return false
	}
	_, err := time.Parse("2006-01", month)
	return err == nil
}

// Start validates the request, persists a new generating batch, and launches
// the run in the background under the configured generation timeout. The
// returned batch is in the generating state.
func (s *GenerationService) Start(ctx context.Context, req batch.CreateRequest) (*batch.Batch, error) {
	if !validMonth(req.Month) {
		return nil, fmt.Errorf("month must be YYYY-MM: %w", domain.ErrValidation)
	}
	if req.Format == "" {
		req.Format = batch.FormatFixed
	}
	if !req.Format.Valid() {
		return nil, fmt.Errorf("unknown format %q: %w", req.Format, domain.ErrValidation)
	}

	b, err := s.store.CreateBatch(ctx, req)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, auditlog.Event{
		Action:  auditlog.ActionBatchCreated,
		Actor:   req.ActorID,
		Subject: b.ID,
		Detail:  map[string]string{"month": b.Month, "format": string(b.Format)},
		At:      time.Now().UTC(),
	})

	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GenerationTimeout)
		defer cancel()
		s.Run(runCtx, b)
	}()

	return b, nil
}

// Run executes the generation pipeline for a batch in the generating state.
// On success the batch becomes ready; on any failure it becomes failed with
// the reason captured, and no records from the attempt are left behind.
func (s *GenerationService) Run(ctx context.Context, b *batch.Batch) {
	log := slog.With("batch_id", b.ID, "month", b.Month)

	result, err := s.run(ctx, b)
	if err != nil {
		log.Error("batch generation failed", "error", err)
		// The run context may already be cancelled or timed out; the
		// failure must still be recorded.
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if failErr := s.store.FailBatch(failCtx, b.ID, err.Error()); failErr != nil {
			log.Error("could not mark batch failed", "error", failErr)
		}
		s.recordAudit(failCtx, auditlog.Event{
			Action:  auditlog.ActionBatchFailed,
			Subject: b.ID,
			Detail:  map[string]string{"reason": err.Error()},
			At:      time.Now().UTC(),
		})
		return
	}

	log.Info("batch ready",
		"records", result.RecordCount,
		"source_rows", result.SourceCount,
		"rejected", result.RejectedCount,
		"checksum", result.Checksum,
	)
	s.recordAudit(ctx, auditlog.Event{
		Action:  auditlog.ActionBatchReady,
		Subject: b.ID,
		Detail: map[string]string{
			"records":  fmt.Sprintf("%d", result.RecordCount),
			"checksum": result.Checksum,
		},
		At: time.Now().UTC(),
	})
}

func (s *GenerationService) run(ctx context.Context, b *batch.Batch) (*batch.Result, error) {
	rows, err := s.source.FetchRows(ctx, b.Month)
	if err != nil {
		return nil, fmt.Errorf("fetch source rows: %w", err)
	}

	var records []record.Record
	rejected := 0

	for _, row := range rows {
		outcome, err := s.classify(ctx, row, b.Options)
		if err != nil {
			return nil, err
		}
		if !outcome.Included {
			rejected++
			if outcome.Findings.HasErrors() {
				slog.Debug("source row rejected",
					"batch_id", b.ID,
					"tenancy_ref", row.Tenancy.Ref,
					"errors", len(outcome.Findings.Errors()),
				)
			}
			continue
		}

		rec, err := s.buildRecord(b, row, outcome.Consent, len(records))
		if err != nil {
			var fieldErr *codec.FieldError
			if errors.As(err, &fieldErr) {
				// Over-width data is a row-level failure, not a batch
				// failure, and is never silently truncated.
				rejected++
				slog.Warn("source row not encodable",
					"batch_id", b.ID,
					"tenancy_ref", row.Tenancy.Ref,
					"field", fieldErr.Field,
					"reason", fieldErr.Reason,
				)
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}

	content, err := assembleContent(b, s.cfg, records)
	if err != nil {
		return nil, err
	}

	result := batch.Result{
		Checksum:      codec.Checksum(content),
		RecordCount:   len(records),
		SourceCount:   len(rows),
		RejectedCount: rejected,
	}

	if err := s.store.FinalizeBatch(ctx, b.ID, records, result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Outcome is the classification of one source row against the validator and
// the batch filters.
type Outcome struct {
	Included       bool             `json:"included"`
	ExcludedReason string           `json:"excluded_reason,omitempty"`
	Findings       source.Findings  `json:"findings,omitempty"`
	Consent        *consent.Consent `json:"-"`
}

// classify runs validation and the batch filters for one row. A consent
// lookup failure (as opposed to an absent consent) is returned as an error
// and fails the batch.
func (s *GenerationService) classify(ctx context.Context, row source.Row, opts batch.Options) (*Outcome, error) {
	out := &Outcome{Findings: source.Validate(row)}

	c, err := s.store.GetConsent(ctx, row.Tenancy.TenantID, s.cfg.ConsentScope)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c = consent.NotConsented(row.Tenancy.TenantID, s.cfg.ConsentScope,
			s.hasher.Hash(row.Tenancy.TenantID))
	case err != nil:
		return nil, fmt.Errorf("consent lookup for tenancy %s: %w", row.Tenancy.Ref, err)
	}
	out.Consent = c

	switch {
	case out.Findings.HasErrors():
		out.ExcludedReason = "validation errors"
	case row.Profile.OptOutReporting:
		out.ExcludedReason = "tenant opted out of reporting"
	case !opts.IncludeUnverified && row.Profile.VerificationStatus != source.VerificationVerified:
		out.ExcludedReason = "tenant not verified"
	case opts.OnlyConsented && c.Status != consent.StatusConsented:
		out.ExcludedReason = "consent not given"
	default:
		out.Included = true
	}
	return out, nil
}

// buildRecord maps a surviving source row to its immutable reporting record,
// encoding the fixed-width detail line and hashing the internal identifiers.
func (s *GenerationService) buildRecord(b *batch.Batch, row source.Row, c *consent.Consent, position int) (record.Record, error) {
	rentPence, err := source.Pence(row.Tenancy.MonthlyRent)
	if err != nil {
		return record.Record{}, fmt.Errorf("tenancy %s: %w", row.Tenancy.Ref, err)
	}
	balancePence, err := source.Pence(row.Tenancy.OutstandingBalance)
	if err != nil {
		return record.Record{}, fmt.Errorf("tenancy %s: %w", row.Tenancy.Ref, err)
	}

	detail := codec.Detail{
		Surname:          row.Person.Surname,
		Forename:         row.Person.Forename,
		MiddleName:       row.Person.MiddleName,
		DateOfBirth:      row.Profile.DateOfBirth,
		AddressLine1:     row.Profile.AddressLine1,
		AddressLine2:     row.Profile.AddressLine2,
		AddressLine3:     row.Profile.AddressLine3,
		AddressLine4:     row.Profile.AddressLine4,
		Postcode:         row.Profile.Postcode,
		TenancyStart:     row.Tenancy.StartDate,
		TenancyEnd:       row.Tenancy.EndDate,
		RentPence:        rentPence,
		FrequencyCode:    source.FrequencyCode(row.Tenancy.Frequency),
		BalancePence:     balancePence,
		GoneAway:         row.Profile.GoneAway,
		ArrangementToPay: row.Profile.ArrangementToPay,
		Query:            row.Profile.Query,
		Deceased:         row.Profile.Deceased,
		ThirdPartyPaid:   row.Profile.ThirdPartyPaid,
		Evicted:          row.Profile.EvictionFlag,
		EvictionDate:     row.Profile.EvictionDate,
		TenancyRef:       row.Tenancy.Ref,
	}
	line, err := detail.Encode()
	if err != nil {
		return record.Record{}, err
	}

	return record.Record{
		BatchID:                 b.ID,
		Position:                position,
		TenantRef:               s.hasher.Hash(row.Tenancy.TenantID),
		PropertyRef:             s.hasher.Hash(row.Tenancy.PropertyID),
		PostcodeOutward:         source.PostcodeOutward(row.Profile.Postcode),
		RentAmountPence:         rentPence,
		OutstandingBalancePence: balancePence,
		RentFrequency:           detail.FrequencyCode,
		PeriodStart:             row.Tenancy.PeriodStart,
		PeriodEnd:               row.Tenancy.PeriodEnd,
		DueDate:                 row.Tenancy.DueDate,
		PaidDate:                row.Tenancy.PaidDate,
		PaymentStatus:           detail.PaymentStatusDigit(),
		VerificationStatus:      row.Profile.VerificationStatus,
		VerificationMethod:      row.Profile.VerificationMethod,
		VerifiedAt:              row.Profile.VerifiedAt,
		ConsentStatus:           string(c.Status),
		ConsentAt:               consentTimestamp(c),
		AuditRef:                uuid.NewString(),
		DetailLine:              line,
	}, nil
}

// consentTimestamp is the timestamp of the consent state the record was
// generated under: withdrawal time for withdrawn, capture time otherwise.
func consentTimestamp(c *consent.Consent) *time.Time {
	if c.Status == consent.StatusWithdrawn {
		return c.WithdrawnAt
	}
	return c.CapturedAt
}

// PreviewRow is one source row with its validation findings and filter
// outcome, exposed for operator preview before a batch is generated.
type PreviewRow struct {
	TenancyRef string          `json:"tenancy_ref"`
	Surname    string          `json:"surname"`
	Postcode   string          `json:"postcode"`
	Included   bool            `json:"included"`
	Reason     string          `json:"excluded_reason,omitempty"`
	Findings   source.Findings `json:"findings,omitempty"`
}

// Preview runs fetch, validation, and filtering for a month without
// persisting anything. Rows with validation errors are listed alongside
// included rows.
func (s *GenerationService) Preview(ctx context.Context, month string, opts batch.Options) ([]PreviewRow, error) {
	if !validMonth(month) {
		return nil, fmt.Errorf("month must be YYYY-MM: %w", domain.ErrValidation)
	}

	rows, err := s.source.FetchRows(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("fetch source rows: %w", err)
	}

	preview := make([]PreviewRow, 0, len(rows))
	for _, row := range rows {
		outcome, err := s.classify(ctx, row, opts)
		if err != nil {
			return nil, err
		}
		preview = append(preview, PreviewRow{
			TenancyRef: row.Tenancy.Ref,
			Surname:    row.Person.Surname,
			Postcode:   row.Profile.Postcode,
			Included:   outcome.Included,
			Reason:     outcome.ExcludedReason,
			Findings:   outcome.Findings,
		})
	}
	return preview, nil
}

// recordAudit delivers an audit event, logging failures without propagating
// them: audit delivery never fails a business operation.
func (s *GenerationService) recordAudit(ctx context.Context, ev auditlog.Event) {
	if err := s.audit.Record(ctx, ev); err != nil {
		slog.Error("audit event not delivered", "action", ev.Action, "error", err)
	}
}

// assembleContent builds the full file content for a batch from its records,
// in the batch's format. Content is a pure function of the batch row and its
// records, so regeneration is byte-identical.
func assembleContent(b *batch.Batch, cfg config.Bureau, records []record.Record) (string, error) {
	switch b.Format {
	case batch.FormatCSV:
		return codec.EncodeCSV(records)
	case batch.FormatJSON:
		return codec.EncodeJSON(records)
	}

	header, err := codec.Header{
		OrgID:     cfg.OrgID,
		OrgName:   cfg.OrgName,
		CreatedAt: b.CreatedAt.UTC(),
		Sequence:  b.Seq,
	}.Encode()
	if err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}

	details := make([]string, 0, len(records))
	var totalBalance int64
	for _, r := range records {
		if len(r.DetailLine) != codec.DetailLength {
			return "", &codec.InvariantError{
				Record: "detail",
				Got:    len(r.DetailLine),
				Want:   codec.DetailLength,
			}
		}
		details = append(details, r.DetailLine)
		totalBalance += r.OutstandingBalancePence
	}

	trailer, err := codec.Trailer{
		OrgID:             cfg.OrgID,
		RecordCount:       len(records),
		TotalBalancePence: totalBalance,
	}.Encode()
	if err != nil {
		return "", fmt.Errorf("encode trailer: %w", err)
	}

	return codec.Assemble(header, details, trailer), nil
}
