package upload

import (
	"context"
	"errors"
	"log/slog"

	"checkproof/internal/config"
	"checkproof/internal/logging"
	"checkproof/internal/services/catalog"
	"checkproof/internal/services/eventbus"
	"checkproof/internal/services/objectstore"
)

// Backend is a Client bound to real services plus their teardown.
type Backend struct {
	Client *Client
	close  []func()
}

// Close releases backend connections.
func (b *Backend) Close() {
	if b == nil {
		return
	}
	for i := len(b.close) - 1; i >= 0; i-- {
		b.close[i]()
	}
	b.close = nil
}

// OpenBackend wires the object store, catalog and optional event producer from
// configuration. When no backend is configured the returned client fails every
// upload with ErrNotConfigured so captures stay queued.
func OpenBackend(ctx context.Context, cfg *config.Config, sess SessionSource, logger *slog.Logger) (*Backend, error) {
	backend := &Backend{}
	if !cfg.UploadsConfigured() {
		logging.WarnWithContext(logger, "upload backend not configured", "upload_unconfigured",
			logging.String(logging.FieldErrorHint, "set object_store.endpoint and catalog.database_url"),
			logging.String(logging.FieldImpact, "captures stay queued locally"),
		)
		backend.Client = New(nil, nil, sess, WithLogger(logger))
		return backend, nil
	}

	objects, err := objectstore.New(cfg.ObjectStore)
	if err != nil {
		return nil, err
	}
	if cfg.Catalog.Migrate {
		if err := catalog.Migrate(cfg.Catalog.DatabaseURL); err != nil {
			// Offline at startup is normal; inserts fail until the database is reachable.
			logging.WarnWithContext(logger, "catalog migrations not applied", "catalog_migrate_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check catalog.database_url and network"),
				logging.String(logging.FieldImpact, "uploads fail until the schema exists"),
			)
		}
	}
	records, err := catalog.Open(ctx, cfg.Catalog)
	if err != nil {
		return nil, err
	}
	backend.close = append(backend.close, records.Close)

	opts := []Option{WithLogger(logger)}
	producer, err := eventbus.New(cfg.Events)
	switch {
	case err == nil:
		backend.close = append(backend.close, func() { _ = producer.Close() })
		opts = append(opts, WithPublisher(producer))
	case errors.Is(err, eventbus.ErrDisabled):
	default:
		backend.Close()
		return nil, err
	}

	backend.Client = New(objects, records, sess, opts...)
	return backend, nil
}
