package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rentledger/bureau/internal/config"
	"github.com/rentledger/bureau/internal/domain"
	"github.com/rentledger/bureau/internal/domain/batch"
	"github.com/rentledger/bureau/internal/domain/consent"
	"github.com/rentledger/bureau/internal/domain/record"
	"github.com/rentledger/bureau/internal/domain/source"
	"github.com/rentledger/bureau/internal/port/auditlog"
	"github.com/rentledger/bureau/internal/pseudonym"
)

func testBureauConfig() config.Bureau {
	return config.Bureau{
		OrgID:             "RENTLEDGER",
		OrgName:           "RentLedger Ltd",
		FilePrefix:        "rentledger",
		ConsentScope:      "reporting_to_partners",
		SecretEnv:         "BUREAU_HASH_SECRET",
		GenerationTimeout: time.Minute,
	}
}

func testHasher() *pseudonym.Hasher {
	h, err := pseudonym.New("unit-test-secret")
	if err != nil {
		panic(err)
	}
	return h
}

// mockStore is an in-memory database.Store.
type mockStore struct {
	mu           sync.Mutex
	nextSeq      int64
	batches      map[string]*batch.Batch
	records      map[string][]record.Record
	consents     map[string]*consent.Consent // owner|scope
	failFinalize error
	failConsent  error
}

func newMockStore() *mockStore {
	return &mockStore{
		batches:  make(map[string]*batch.Batch),
		records:  make(map[string][]record.Record),
		consents: make(map[string]*consent.Consent),
	}
}

func (m *mockStore) CreateBatch(_ context.Context, req batch.CreateRequest) (*batch.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.batches {
		if b.Month == req.Month && b.Status == batch.StatusGenerating {
			return nil, fmt.Errorf("generation already in flight: %w", domain.ErrConflict)
		}
	}

	m.nextSeq++
	b := &batch.Batch{
		ID:     fmt.Sprintf("0000000%d-0000-0000-0000-000000000000", m.nextSeq),
		Seq:    m.nextSeq,
		Month:  req.Month,
		Format: req.Format,
		Options: batch.Options{
			IncludeUnverified: req.IncludeUnverified,
			OnlyConsented:     req.OnlyConsented,
		},
		Status:    batch.StatusGenerating,
		CreatedBy: req.ActorID,
		CreatedAt: time.Date(2023, time.December, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2023, time.December, 1, 9, 0, 0, 0, time.UTC),
	}
	m.batches[b.ID] = b
	copied := *b
	return &copied, nil
}

func (m *mockStore) GetBatch(_ context.Context, id string) (*batch.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, fmt.Errorf("get batch %s: %w", id, domain.ErrNotFound)
	}
	copied := *b
	return &copied, nil
}

func (m *mockStore) ListBatches(_ context.Context) ([]batch.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]batch.Batch, 0, len(m.batches))
	for _, b := range m.batches {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out, nil
}

func (m *mockStore) FinalizeBatch(_ context.Context, id string, records []record.Record, result batch.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failFinalize != nil {
		return m.failFinalize
	}
	b, ok := m.batches[id]
	if !ok {
		return fmt.Errorf("finalize batch %s: %w", id, domain.ErrNotFound)
	}
	if b.Status != batch.StatusGenerating {
		return fmt.Errorf("finalize batch %s: %w", id, domain.ErrConflict)
	}

	m.records[id] = append([]record.Record(nil), records...)
	b.Status = batch.StatusReady
	b.RecordCount = result.RecordCount
	b.SourceCount = result.SourceCount
	b.RejectedCount = result.RejectedCount
	b.ChecksumSHA256 = result.Checksum
	return nil
}

func (m *mockStore) FailBatch(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return fmt.Errorf("fail batch %s: %w", id, domain.ErrNotFound)
	}
	b.Status = batch.StatusFailed
	b.FailedReason = reason
	return nil
}

func (m *mockStore) ListRecords(_ context.Context, batchID string) ([]record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]record.Record(nil), m.records[batchID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func consentKey(ownerID, scope string) string { return ownerID + "|" + scope }

func (m *mockStore) GetConsent(_ context.Context, ownerID, scope string) (*consent.Consent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failConsent != nil {
		return nil, m.failConsent
	}
	c, ok := m.consents[consentKey(ownerID, scope)]
	if !ok {
		return nil, fmt.Errorf("get consent: %w", domain.ErrNotFound)
	}
	copied := *c
	return &copied, nil
}

func (m *mockStore) GetConsentByRef(_ context.Context, hashedRef, scope string) (*consent.Consent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.consents {
		if c.HashedRef == hashedRef && c.Scope == scope {
			copied := *c
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("get consent by ref: %w", domain.ErrNotFound)
}

func (m *mockStore) UpsertConsent(_ context.Context, ownerID, scope string, status consent.Status, hashedRef string) (*consent.Consent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	key := consentKey(ownerID, scope)
	c, ok := m.consents[key]
	if !ok {
		c = &consent.Consent{
			ID:        fmt.Sprintf("consent-%d", len(m.consents)+1),
			OwnerID:   ownerID,
			Scope:     scope,
			CreatedAt: now,
		}
		m.consents[key] = c
	}
	c.Status = status
	c.HashedRef = hashedRef
	c.UpdatedAt = now
	// Mirrors the SQL upsert: captured_at set once, withdrawn_at preserved.
	if status == consent.StatusConsented && c.CapturedAt == nil {
		c.CapturedAt = &now
	}
	if status == consent.StatusWithdrawn {
		c.WithdrawnAt = &now
	}
	copied := *c
	return &copied, nil
}

// mockProvider is an in-memory sourcedata.Provider.
type mockProvider struct {
	rows []source.Row
	err  error
}

func (m *mockProvider) FetchRows(_ context.Context, _ string) ([]source.Row, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rows, nil
}

// mockSink collects audit events.
type mockSink struct {
	mu     sync.Mutex
	events []auditlog.Event
}

func (m *mockSink) Record(_ context.Context, ev auditlog.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockSink) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Action)
	}
	return out
}

// mockCache is an in-memory cache.Cache that counts hits.
type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if ok {
		m.hits++
	}
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Source row fixtures ---

func datePtr(y int, mo time.Month, d int) *time.Time {
	t := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func testSourceRow(ref, tenantID string) source.Row {
	return source.Row{
		Tenancy: source.Tenancy{
			Ref:                ref,
			TenantID:           tenantID,
			PropertyID:         "property-" + tenantID,
			MonthlyRent:        "500.00",
			OutstandingBalance: "0.00",
			Frequency:          source.FrequencyMonthly,
			StartDate:          datePtr(2022, time.January, 1),
			PeriodStart:        datePtr(2023, time.December, 1),
			PeriodEnd:          datePtr(2023, time.December, 31),
			DueDate:            datePtr(2023, time.December, 1),
		},
		Profile: source.Profile{
			DateOfBirth:        datePtr(1990, time.April, 12),
			AddressLine1:       "1 High Street",
			Postcode:           "NW1 8QP",
			VerificationStatus: source.VerificationVerified,
			VerificationMethod: "open_banking",
			VerifiedAt:         datePtr(2023, time.June, 1),
		},
		Person: source.Person{
			Surname:  "Smith",
			Forename: "Alice",
		},
	}
}
