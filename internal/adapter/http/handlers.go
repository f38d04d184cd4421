package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rentledger/bureau/internal/domain/batch"
	"github.com/rentledger/bureau/internal/domain/consent"
	"github.com/rentledger/bureau/internal/service"
)

const headerActorID = "X-Actor-ID"

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Generation *service.GenerationService
	Export     *service.ExportService
	Consents   *service.ConsentService
}

// actor identifies the caller for audit purposes. Authentication is the host
// application's concern; it forwards the acting user in a header.
func actor(r *http.Request) string {
	if id := r.Header.Get(headerActorID); id != "" {
		return id
	}
	return "system"
}

// --- Batches ---

// handleCreateBatch starts a new generation run.
// POST /api/reporting/batches
func (h *Handlers) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[batch.CreateRequest](w, r)
	if !ok {
		return
	}
	req.ActorID = actor(r)

	b, err := h.Generation.Start(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "batch not created")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// handleListBatches lists all batches, newest first.
// GET /api/reporting/batches
func (h *Handlers) handleListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.Export.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "batches not listed")
		return
	}
	if batches == nil {
		batches = []batch.Batch{}
	}
	writeJSON(w, http.StatusOK, batches)
}

// handleGetBatch returns one batch by id.
// GET /api/reporting/batches/{batchID}
func (h *Handlers) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	b, err := h.Export.Get(r.Context(), urlParam(r, "batchID"))
	if err != nil {
		writeDomainError(w, err, "batch not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleDownloadBatch serves a ready batch's regenerated file content.
// GET /api/reporting/batches/{batchID}/download
func (h *Handlers) handleDownloadBatch(w http.ResponseWriter, r *http.Request) {
	dl, err := h.Export.Download(r.Context(), urlParam(r, "batchID"), actor(r))
	if err != nil {
		writeDomainError(w, err, "batch not found")
		return
	}

	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Content)
}

// handlePreview returns the per-row validation and filter outcome for a
// month without generating anything.
// GET /api/reporting/preview?month=YYYY-MM&include_unverified=&only_consented=
func (h *Handlers) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := batch.Options{
		IncludeUnverified: q.Get("include_unverified") == "true",
		OnlyConsented:     q.Get("only_consented") == "true",
	}

	rows, err := h.Generation.Preview(r.Context(), q.Get("month"), opts)
	if err != nil {
		writeDomainError(w, err, "preview failed")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// --- Consents ---

// handleGetConsentByRef returns consent state for a hashed tenant reference.
// GET /api/consents/{ref}
func (h *Handlers) handleGetConsentByRef(w http.ResponseWriter, r *http.Request) {
	c, err := h.Consents.GetByRef(r.Context(), urlParam(r, "ref"))
	if err != nil {
		writeDomainError(w, err, "consent not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handlePutConsentByRef records a consent choice for a known hashed
// reference.
// PUT /api/consents/{ref}
func (h *Handlers) handlePutConsentByRef(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[consent.UpdateRequest](w, r)
	if !ok {
		return
	}

	c, err := h.Consents.UpdateByRef(r.Context(), urlParam(r, "ref"), req.Status)
	if err != nil {
		writeDomainError(w, err, "consent not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handlePutTenantConsent records a consent choice by raw tenant id. This is
// the internal surface used by the host application; it is never exposed to
// the partner.
// PUT /api/tenants/{tenantID}/consent
func (h *Handlers) handlePutTenantConsent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[consent.UpdateRequest](w, r)
	if !ok {
		return
	}

	c, err := h.Consents.Update(r.Context(), urlParam(r, "tenantID"), req.Status)
	if err != nil {
		writeDomainError(w, err, "consent not updated")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleGetTenantConsent returns consent state by raw tenant id, defaulting
// to not_consented.
// GET /api/tenants/{tenantID}/consent
func (h *Handlers) handleGetTenantConsent(w http.ResponseWriter, r *http.Request) {
	c, err := h.Consents.Get(r.Context(), urlParam(r, "tenantID"))
	if err != nil {
		writeDomainError(w, err, "consent not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}
