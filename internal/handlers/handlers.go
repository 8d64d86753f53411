// Package handlers exposes the HTTP API: CSV upload, log search, detection
// runs, alert and upload listings, stats, and health probes.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vigil-systems/vigil/internal/config"
	"github.com/vigil-systems/vigil/internal/counter"
	"github.com/vigil-systems/vigil/internal/detect"
	"github.com/vigil-systems/vigil/internal/httputil"
	"github.com/vigil-systems/vigil/internal/models"
	"github.com/vigil-systems/vigil/internal/repository"
)

// Ingestor runs one CSV ingestion call.
type Ingestor interface {
	IngestCSV(ctx context.Context, r io.Reader, filename, savedPath string, size int64) (*models.IngestResult, error)
}

// LogSearcher queries the event store for log rows.
type LogSearcher interface {
	Search(ctx context.Context, req models.SearchRequest) ([]models.SearchHit, error)
}

// Detector executes one detection pass.
type Detector interface {
	Run(ctx context.Context) (*detect.RunResult, error)
}

// Pinger reports reachability of a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type APIHandler struct {
	ingestor Ingestor
	searcher LogSearcher
	detector Detector
	repo     repository.Repository
	counter  *counter.Counter
	search   Pinger
	ingest   config.IngestConfig
}

func NewAPIHandler(
	ingestor Ingestor,
	searcher LogSearcher,
	detector Detector,
	repo repository.Repository,
	ct *counter.Counter,
	search Pinger,
	ingest config.IngestConfig,
) *APIHandler {
	return &APIHandler{
		ingestor: ingestor,
		searcher: searcher,
		detector: detector,
		repo:     repo,
		counter:  ct,
		search:   search,
		ingest:   ingest,
	}
}

// Upload accepts a multipart CSV upload, saves it to the upload directory
// and runs the ingestion pipeline over it in a single pass.
func (h *APIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	maxBytes := h.ingest.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("missing file field: %v", err))
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "." || filename == "/" || filename == "" {
		httputil.WriteError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		httputil.WriteError(w, http.StatusBadRequest, "only .csv files are accepted")
		return
	}

	savedPath := filepath.Join(h.ingest.UploadDir, filename)
	dst, err := os.Create(savedPath)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save upload: %v", err))
		return
	}
	defer dst.Close()

	size, err := io.Copy(dst, file)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("failed to read upload: %v", err))
		return
	}
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("failed to rewind upload: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	result, err := h.ingestor.IngestCSV(ctx, dst, filename, savedPath, size)
	if err != nil {
		log.Printf("ERROR: ingestion of %s failed: %v", filename, err)
		httputil.WriteError(w, http.StatusBadGateway, fmt.Sprintf("ingestion failed: %v", err))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// Search runs a filtered query over stored log events.
func (h *APIHandler) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	hits, err := h.searcher.Search(ctx, req)
	if err != nil {
		log.Printf("ERROR: search failed: %v", err)
		httputil.WriteError(w, http.StatusBadGateway, "search unavailable")
		return
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"hits":  hits,
		"count": len(hits),
	})
}

// RunDetection triggers one synchronous detection pass.
func (h *APIHandler) RunDetection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	result, err := h.detector.Run(ctx)
	if err != nil {
		log.Printf("ERROR: detection run failed: %v", err)
		httputil.WriteError(w, http.StatusBadGateway, "detection run failed")
		return
	}

	alerts := result.Candidates
	if alerts == nil {
		alerts = []models.Alert{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"created": result.Created,
		"alerts":  alerts,
	})
}

// ListAlerts returns the alert ledger, newest first.
func (h *APIHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	alerts, err := h.repo.ListAlerts(ctx)
	if err != nil {
		log.Printf("ERROR: listing alerts failed: %v", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

// ListUploads returns the upload history, newest first.
func (h *APIHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	uploads, err := h.repo.ListUploads(ctx)
	if err != nil {
		log.Printf("ERROR: listing uploads failed: %v", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list uploads")
		return
	}
	if uploads == nil {
		uploads = []models.UploadRecord{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"uploads": uploads})
}

// Stats reports the global upload counter. The count reads -1 when the
// counter backend is unreachable; the endpoint itself still returns 200.
func (h *APIHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"uploads": h.counter.Uploads(ctx),
	})
}

func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports readiness of all backing stores. Any unreachable store
// yields 503 with the failing component named.
func (h *APIHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.search.Ping(ctx); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": "opensearch unavailable"})
		return
	}
	if err := h.repo.Ping(ctx); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": "database unavailable"})
		return
	}
	if err := h.counter.Ping(ctx); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": "redis unavailable"})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
