package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rentledger/bureau/internal/codec"
	"github.com/rentledger/bureau/internal/config"
	"github.com/rentledger/bureau/internal/domain"
	"github.com/rentledger/bureau/internal/domain/batch"
	"github.com/rentledger/bureau/internal/port/auditlog"
	"github.com/rentledger/bureau/internal/port/cache"
	"github.com/rentledger/bureau/internal/port/database"
)

// ExportService is the read-only surface over finished batches: listing,
// detail, and deterministic re-download. Downloads rebuild content from
// persisted records only and verify it against the stored checksum before
// serving a single byte.
type ExportService struct {
	store    database.Store
	cache    cache.Cache
	audit    auditlog.Sink
	cfg      config.Bureau
	cacheTTL time.Duration
	group    singleflight.Group
}

// NewExportService creates an ExportService.
func NewExportService(store database.Store, contentCache cache.Cache, audit auditlog.Sink, cfg config.Bureau, cacheTTL time.Duration) *ExportService {
	return &ExportService{
		store:    store,
		cache:    contentCache,
		audit:    audit,
		cfg:      cfg,
		cacheTTL: cacheTTL,
	}
}

// List returns all batches, newest first.
func (s *ExportService) List(ctx context.Context) ([]batch.Batch, error) {
	return s.store.ListBatches(ctx)
}

// Get returns one batch by id.
func (s *ExportService) Get(ctx context.Context, id string) (*batch.Batch, error) {
	return s.store.GetBatch(ctx, id)
}

// Download is the result of a batch content download.
type Download struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Download regenerates a ready batch's file content. A batch that is still
// generating or has failed returns domain.ErrNotReady; partial content is
// never served.
func (s *ExportService) Download(ctx context.Context, id, actor string) (*Download, error) {
	b, err := s.store.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != batch.StatusReady {
		return nil, fmt.Errorf("batch %s is %s: %w", id, b.Status, domain.ErrNotReady)
	}

	content, err := s.content(ctx, b)
	if err != nil {
		return nil, err
	}

	ev := auditlog.Event{
		Action:  auditlog.ActionBatchDownloaded,
		Actor:   actor,
		Subject: b.ID,
		Detail:  map[string]string{"month": b.Month, "checksum": b.ChecksumSHA256},
		At:      time.Now().UTC(),
	}
	if err := s.audit.Record(ctx, ev); err != nil {
		slog.Error("audit event not delivered", "action", ev.Action, "error", err)
	}

	return &Download{
		Filename:    filename(s.cfg.FilePrefix, b),
		ContentType: contentType(b.Format),
		Content:     content,
	}, nil
}

// content returns the batch's regenerated bytes, deduplicating concurrent
// regenerations of the same batch and caching the result. The cache key
// includes the checksum, so stale entries can never be served.
func (s *ExportService) content(ctx context.Context, b *batch.Batch) ([]byte, error) {
	key := b.ID + ":" + b.ChecksumSHA256

	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return cached, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		records, err := s.store.ListRecords(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		content, err := assembleContent(b, s.cfg, records)
		if err != nil {
			return nil, err
		}
		if got := codec.Checksum(content); got != b.ChecksumSHA256 {
			return nil, fmt.Errorf("batch %s: regenerated checksum %s does not match stored %s",
				b.ID, got, b.ChecksumSHA256)
		}
		data := []byte(content)
		if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
			slog.Warn("content cache set failed", "batch_id", b.ID, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// filename follows the partner convention <prefix>-<month>-<shortBatchId>.<ext>.
func filename(prefix string, b *batch.Batch) string {
	short := b.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%s-%s.%s", prefix, b.Month, short, extension(b.Format))
}

func extension(f batch.Format) string {
	switch f {
	case batch.FormatCSV:
		return "csv"
	case batch.FormatJSON:
		return "json"
	}
	return "txt"
}

func contentType(f batch.Format) string {
	switch f {
	case batch.FormatCSV:
		return "text/csv; charset=utf-8"
	case batch.FormatJSON:
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}
