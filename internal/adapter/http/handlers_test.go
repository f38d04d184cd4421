package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rentledger/bureau/internal/config"
	"github.com/rentledger/bureau/internal/domain"
	"github.com/rentledger/bureau/internal/domain/batch"
	"github.com/rentledger/bureau/internal/domain/consent"
	"github.com/rentledger/bureau/internal/domain/record"
	"github.com/rentledger/bureau/internal/domain/source"
	"github.com/rentledger/bureau/internal/port/auditlog"
	"github.com/rentledger/bureau/internal/pseudonym"
	"github.com/rentledger/bureau/internal/service"
)

// stubStore is the minimal in-memory store the handler tests need.
type stubStore struct {
	mu       sync.Mutex
	nextSeq  int64
	batches  map[string]*batch.Batch
	records  map[string][]record.Record
	consents map[string]*consent.Consent
}

func newStubStore() *stubStore {
	return &stubStore{
		batches:  make(map[string]*batch.Batch),
		records:  make(map[string][]record.Record),
		consents: make(map[string]*consent.Consent),
	}
}

func (s *stubStore) CreateBatch(_ context.Context, req batch.CreateRequest) (*batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.batches {
		if b.Month == req.Month && b.Status == batch.StatusGenerating {
			return nil, fmt.Errorf("generation already in flight: %w", domain.ErrConflict)
		}
	}
	s.nextSeq++
	b := &batch.Batch{
		ID:        fmt.Sprintf("batch-%d", s.nextSeq),
		Seq:       s.nextSeq,
		Month:     req.Month,
		Format:    req.Format,
		Status:    batch.StatusGenerating,
		CreatedBy: req.ActorID,
		CreatedAt: time.Now().UTC(),
	}
	s.batches[b.ID] = b
	copied := *b
	return &copied, nil
}

func (s *stubStore) GetBatch(_ context.Context, id string) (*batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, fmt.Errorf("get batch %s: %w", id, domain.ErrNotFound)
	}
	copied := *b
	return &copied, nil
}

func (s *stubStore) ListBatches(_ context.Context) ([]batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]batch.Batch, 0, len(s.batches))
	for _, b := range s.batches {
		out = append(out, *b)
	}
	return out, nil
}

func (s *stubStore) FinalizeBatch(_ context.Context, id string, records []record.Record, result batch.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("finalize batch %s: %w", id, domain.ErrNotFound)
	}
	s.records[id] = records
	b.Status = batch.StatusReady
	b.RecordCount = result.RecordCount
	b.ChecksumSHA256 = result.Checksum
	return nil
}

func (s *stubStore) FailBatch(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.batches[id]; ok {
		b.Status = batch.StatusFailed
		b.FailedReason = reason
	}
	return nil
}

func (s *stubStore) ListRecords(_ context.Context, batchID string) ([]record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]record.Record(nil), s.records[batchID]...), nil
}

func (s *stubStore) GetConsent(_ context.Context, ownerID, scope string) (*consent.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consents[ownerID+"|"+scope]
	if !ok {
		return nil, fmt.Errorf("get consent: %w", domain.ErrNotFound)
	}
	copied := *c
	return &copied, nil
}

func (s *stubStore) GetConsentByRef(_ context.Context, hashedRef, scope string) (*consent.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.consents {
		if c.HashedRef == hashedRef && c.Scope == scope {
			copied := *c
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("get consent by ref: %w", domain.ErrNotFound)
}

func (s *stubStore) UpsertConsent(_ context.Context, ownerID, scope string, status consent.Status, hashedRef string) (*consent.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	key := ownerID + "|" + scope
	c, ok := s.consents[key]
	if !ok {
		c = &consent.Consent{ID: key, OwnerID: ownerID, Scope: scope, CreatedAt: now}
		s.consents[key] = c
	}
	c.Status = status
	c.HashedRef = hashedRef
	if status == consent.StatusConsented && c.CapturedAt == nil {
		c.CapturedAt = &now
	}
	copied := *c
	return &copied, nil
}

type stubProvider struct{ rows []source.Row }

func (p *stubProvider) FetchRows(_ context.Context, _ string) ([]source.Row, error) {
	return p.rows, nil
}

type stubSink struct{}

func (stubSink) Record(context.Context, auditlog.Event) error { return nil }

type stubCache struct{}

func (stubCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (stubCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (stubCache) Delete(context.Context, string) error { return nil }

func newTestRouter(t *testing.T) (chi.Router, *stubStore) {
	t.Helper()
	store := newStubStore()
	hasher, err := pseudonym.New("handler-test-secret")
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	cfg := config.Bureau{
		OrgID:             "RENTLEDGER",
		OrgName:           "RentLedger Ltd",
		FilePrefix:        "rentledger",
		ConsentScope:      "reporting_to_partners",
		GenerationTimeout: time.Minute,
	}

	h := &Handlers{
		Generation: service.NewGenerationService(store, &stubProvider{}, hasher, stubSink{}, cfg),
		Export:     service.NewExportService(store, stubCache{}, stubSink{}, cfg, time.Minute),
		Consents:   service.NewConsentService(store, hasher, stubSink{}, cfg.ConsentScope),
	}

	r := chi.NewRouter()
	MountRoutes(r, h)
	return r, store
}

func doRequest(router chi.Router, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateBatch(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/api/reporting/batches", `{"month":"2023-12"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var b batch.Batch
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if b.Month != "2023-12" || b.Format != batch.FormatFixed {
		t.Errorf("batch = %+v, want month 2023-12 and default fixed format", b)
	}
	if b.Status != batch.StatusGenerating {
		t.Errorf("status = %q, want generating", b.Status)
	}
}

func TestCreateBatchBadMonth(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, body := range []string{`{"month":"2023-13"}`, `{"month":"december"}`, `{}`, `not json`} {
		rec := doRequest(router, http.MethodPost, "/api/reporting/batches", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestCreateBatchConflict(t *testing.T) {
	router, store := newTestRouter(t)

	if _, err := store.CreateBatch(context.Background(), batch.CreateRequest{Month: "2023-12", Format: batch.FormatFixed}); err != nil {
		t.Fatalf("seed batch: %v", err)
	}

	rec := doRequest(router, http.MethodPost, "/api/reporting/batches", `{"month":"2023-12"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestListBatchesEmpty(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/api/reporting/batches", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestGetBatchNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/api/reporting/batches/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDownloadNotReadyBatch(t *testing.T) {
	router, store := newTestRouter(t)

	b, err := store.CreateBatch(context.Background(), batch.CreateRequest{Month: "2023-12", Format: batch.FormatFixed})
	if err != nil {
		t.Fatalf("seed batch: %v", err)
	}

	rec := doRequest(router, http.MethodGet, "/api/reporting/batches/"+b.ID+"/download", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not ready") {
		t.Errorf("body = %q, want a not-ready message", rec.Body.String())
	}
}

func TestPreviewBadMonth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/api/reporting/preview?month=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPreviewEmptyMonth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/api/reporting/preview?month=2023-12", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestConsentByRefUnknown(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/api/consents/deadbeef", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get status = %d, want 404", rec.Code)
	}

	rec = doRequest(router, http.MethodPut, "/api/consents/deadbeef", `{"status":"consented"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("put status = %d, want 404", rec.Code)
	}
}

func TestTenantConsentRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	// Never-seen tenant defaults to not_consented.
	rec := doRequest(router, http.MethodGet, "/api/tenants/tenant-1/consent", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("default get status = %d", rec.Code)
	}
	var c consent.Consent
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode default consent: %v", err)
	}
	if c.Status != consent.StatusNotConsented {
		t.Errorf("default status = %q, want not_consented", c.Status)
	}

	rec = doRequest(router, http.MethodPut, "/api/tenants/tenant-1/consent", `{"status":"consented"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode updated consent: %v", err)
	}
	if c.Status != consent.StatusConsented || c.HashedRef == "" {
		t.Errorf("consent = %+v, want consented with hashed ref", c)
	}

	// The partner surface can now address the same consent by ref.
	rec = doRequest(router, http.MethodGet, "/api/consents/"+c.HashedRef, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get by ref status = %d", rec.Code)
	}

	rec = doRequest(router, http.MethodPut, "/api/tenants/tenant-1/consent", `{"status":"sometimes"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid status put = %d, want 400", rec.Code)
	}
}
