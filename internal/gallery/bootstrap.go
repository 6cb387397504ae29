package gallery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourorg/vision-showcase/internal/config"
	"github.com/yourorg/vision-showcase/internal/db"
	"github.com/yourorg/vision-showcase/internal/documents"
	"github.com/yourorg/vision-showcase/internal/storage"
)

// Bootstrap builds the process-wide storage and document clients once. It
// never fails: on error the returned Service is unavailable and reports the
// cause on every call. The cleanup func releases whatever was opened.
func Bootstrap(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Service, func()) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	svc, err := bootstrap(ctx, cfg, log, &closers)
	if err != nil {
		log.Error("failed to initialize backend services; every request will fail until restart",
			zap.Error(err))
		return NewUnavailable(err, log), cleanup
	}

	log.Warn("gallery is public: any client can list, overwrite or probe any filename",
		zap.String("bucket", cfg.Storage.Bucket),
		zap.Int("gallery_limit", cfg.Gallery.Limit))
	return svc, cleanup
}

func bootstrap(ctx context.Context, cfg *config.Config, log *zap.Logger, closers *[]func()) (*Service, error) {
	signer, err := storage.NewS3(ctx, storage.Options{
		Bucket:       cfg.Storage.Bucket,
		Region:       cfg.Storage.Region,
		Endpoint:     cfg.Storage.Endpoint,
		UsePathStyle: cfg.Storage.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}

	docs, err := OpenDocuments(ctx, cfg.Documents, log, closers)
	if err != nil {
		return nil, fmt.Errorf("document store: %w", err)
	}

	log.Info("backend services initialized",
		zap.String("bucket", cfg.Storage.Bucket),
		zap.String("docstore", cfg.Documents.Driver))

	return New(signer, docs, Config{
		Limit:        cfg.Gallery.Limit,
		UploadTTL:    cfg.Gallery.UploadTTL,
		ReadTTL:      cfg.Gallery.ReadTTL,
		AllowedTypes: cfg.Gallery.AllowedTypes,
	}, log), nil
}

// OpenDocuments opens the configured document store and appends its release
// funcs to closers. Shared with the importer.
func OpenDocuments(ctx context.Context, cfg config.DocumentsConfig, log *zap.Logger, closers *[]func()) (documents.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		*closers = append(*closers, pool.Close)
		return documents.NewPostgres(ctx, pool)
	case config.DriverBadger:
		store, err := documents.OpenBadger(cfg.BadgerDir, log)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, func() {
			if err := store.Close(); err != nil {
				log.Warn("close badger", zap.Error(err))
			}
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}
