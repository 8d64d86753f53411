package repository

import (
	"context"

	"github.com/vigil-systems/vigil/internal/models"
)

// Repository defines the interface for the durable alert and upload ledgers.
type Repository interface {
	// Alert ledger
	InsertAlert(ctx context.Context, a *models.Alert) error
	ListAlerts(ctx context.Context) ([]models.Alert, error)

	// Upload history
	InsertUpload(ctx context.Context, u *models.UploadRecord) error
	ListUploads(ctx context.Context) ([]models.UploadRecord, error)

	// Utility
	Ping(ctx context.Context) error
	Close() error
}
