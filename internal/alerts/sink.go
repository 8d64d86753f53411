// Package alerts persists detection findings. Every candidate is written to
// two stores: a searchable alert index and the durable Postgres ledger. The
// index holds a denormalized copy; the ledger owns the canonical history.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vigil-systems/vigil/internal/client"
	"github.com/vigil-systems/vigil/internal/models"
	"github.com/vigil-systems/vigil/internal/repository"
)

type Sink struct {
	client *client.OpenSearchClient
	index  string
	repo   repository.Repository
}

func NewSink(osClient *client.OpenSearchClient, index string, repo repository.Repository) *Sink {
	return &Sink{
		client: osClient,
		index:  index,
		repo:   repo,
	}
}

// Store writes one alert to both stores. Both writes are attempted
// unconditionally, with no existence pre-check and no cross-store rollback;
// a failure in either surfaces as an error for this candidate only.
func (s *Sink) Store(ctx context.Context, alert *models.Alert) error {
	indexErr := s.indexAlert(ctx, alert)
	ledgerErr := s.repo.InsertAlert(ctx, alert)
	if ledgerErr != nil {
		ledgerErr = fmt.Errorf("alert ledger write: %w", ledgerErr)
	}
	return errors.Join(indexErr, ledgerErr)
}

func (s *Sink) indexAlert(ctx context.Context, alert *models.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	osc := s.client.Client()
	res, err := osc.Index(
		s.index,
		bytes.NewReader(data),
		osc.Index.WithContext(ctx),
		osc.Index.WithDocumentID(uuid.New().String()),
	)
	if err != nil {
		return fmt.Errorf("alert index write: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("alert index write: %s", res.Status())
	}
	return nil
}
