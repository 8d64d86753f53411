// Package service orchestrates one ingestion call: normalize the CSV batch,
// route events into the store, record the upload, bump the counter.
package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/vigil-systems/vigil/internal/counter"
	"github.com/vigil-systems/vigil/internal/metrics"
	"github.com/vigil-systems/vigil/internal/models"
	"github.com/vigil-systems/vigil/internal/normalizer"
	"github.com/vigil-systems/vigil/internal/repository"
)

// EventRouter writes a validated batch into the event store.
type EventRouter interface {
	BulkIndex(ctx context.Context, events []models.LogEvent) (int, error)
}

type Ingestor struct {
	router    EventRouter
	repo      repository.Repository
	counter   *counter.Counter
	sourceTag string
}

func NewIngestor(router EventRouter, repo repository.Repository, ct *counter.Counter, sourceTag string) *Ingestor {
	return &Ingestor{
		router:    router,
		repo:      repo,
		counter:   ct,
		sourceTag: sourceTag,
	}
}

// IngestCSV runs one ingestion call as a single synchronous unit of work.
// The stream is consumed exactly once. A store write failure surfaces as an
// error; the counter is best-effort and never affects the outcome.
func (s *Ingestor) IngestCSV(ctx context.Context, r io.Reader, filename, savedPath string, size int64) (*models.IngestResult, error) {
	start := time.Now()
	defer func() {
		metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	record := &models.UploadRecord{
		Filename:   filename,
		Path:       savedPath,
		Size:       size,
		UploadedAt: time.Now().UTC(),
		Source:     s.sourceTag,
	}
	if err := s.repo.InsertUpload(ctx, record); err != nil {
		return nil, fmt.Errorf("record upload: %w", err)
	}

	parsed, err := normalizer.Normalize(r)
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	metrics.EventsSkippedTotal.Add(float64(parsed.Skipped))

	indexed, err := s.router.BulkIndex(ctx, parsed.Events)
	if err != nil {
		metrics.StorageErrors.Inc()
		return nil, fmt.Errorf("index events: %w", err)
	}
	metrics.EventsIndexedTotal.Add(float64(indexed))
	metrics.UploadBytesTotal.Add(float64(size))

	s.counter.IncrUploads(ctx)

	log.Printf("Ingested %s: %d events indexed, %d rows skipped", filename, indexed, parsed.Skipped)
	return &models.IngestResult{
		Filename: filename,
		Indexed:  indexed,
		Skipped:  parsed.Skipped,
	}, nil
}
