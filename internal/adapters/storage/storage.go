package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ammerola/erp-admin/internal/core/ports"
	"github.com/ammerola/erp-admin/internal/pkg/config"
)

// Driver names accepted in STORAGE_DRIVER
const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// New builds the object storage selected by cfg.Driver
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (ports.ObjectStorage, error) {
	switch cfg.Driver {
	case DriverS3:
		return NewS3Storage(ctx, &S3Config{
			Region:          cfg.Region,
			Bucket:          cfg.Bucket,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Endpoint:        cfg.Endpoint,
			UsePathStyle:    cfg.UsePathStyle,
		}, logger)
	case DriverLocal, "":
		return NewLocalStorage(cfg.LocalPath, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
