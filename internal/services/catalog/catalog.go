package catalog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"checkproof/internal/config"
	"checkproof/internal/evidence"
	"checkproof/internal/services"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrNotConfigured is returned when no database URL is configured.
var ErrNotConfigured = errors.New("catalog database not configured")

// Record is one row of the evidence catalog.
type Record struct {
	CaptureID     string
	TenantID      string
	OwnerUID      string
	OperatorLabel string
	Path          string
	Address       string
	Coords        *evidence.Coords
	MapsURL       string
	Brand         string
	DeviceTS      time.Time
	ClientAgent   string
}

// NewRecord builds the catalog row for an uploaded capture stored at path.
func NewRecord(capture evidence.Capture, path, clientAgent string) Record {
	meta := capture.Metadata
	return Record{
		CaptureID:     capture.ID,
		TenantID:      meta.TenantID,
		OwnerUID:      meta.OwnerUID,
		OperatorLabel: meta.OperatorLabel,
		Path:          path,
		Address:       meta.Address,
		Coords:        meta.Coords,
		MapsURL:       meta.MapsURL,
		Brand:         meta.Brand,
		DeviceTS:      meta.DeviceTS,
		ClientAgent:   clientAgent,
	}
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Catalog writes evidence records to PostgreSQL.
type Catalog struct {
	db    execer
	close func()
}

// Open connects a pool to the configured database, running migrations first
// when enabled. The pool is created lazily by pgx so an unreachable database
// does not fail startup; errors surface on the first Insert.
func Open(ctx context.Context, cfg config.Catalog) (*Catalog, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, ErrNotConfigured
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "parse url", "invalid database url", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "create pool", "", err)
	}
	return &Catalog{db: pool, close: pool.Close}, nil
}

// Close releases the pool.
func (c *Catalog) Close() {
	if c != nil && c.close != nil {
		c.close()
	}
}

// Migrate applies pending up-migrations. Already-applied migrations are skipped.
func Migrate(databaseURL string) error {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, migrationURL(databaseURL))
	if err != nil {
		return services.Wrap(services.ErrTransient, "catalog", "migrate", "create migrator", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return services.Wrap(services.ErrTransient, "catalog", "migrate", "run migrations", err)
	}
	return nil
}

// migrationURL rewrites a postgres URL to the pgx/v5 driver scheme.
func migrationURL(databaseURL string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(databaseURL, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

const insertSQL = `
	INSERT INTO evidence
		(capture_id, tenant_id, owner_uid, operator_label, path, address,
		 latitude, longitude, maps_url, brand, device_ts, client_agent)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	ON CONFLICT (capture_id) DO NOTHING`

// Insert records an uploaded capture. Inserting the same capture id again is
// a no-op and reports inserted=false.
func (c *Catalog) Insert(ctx context.Context, rec Record) (bool, error) {
	if strings.TrimSpace(rec.CaptureID) == "" {
		return false, services.Wrap(services.ErrValidation, "catalog", "insert", "capture id is empty", nil)
	}
	var lat, lon *float64
	if rec.Coords != nil {
		lat, lon = &rec.Coords.Latitude, &rec.Coords.Longitude
	}
	tag, err := c.db.Exec(ctx, insertSQL,
		rec.CaptureID, rec.TenantID, rec.OwnerUID, rec.OperatorLabel, rec.Path, rec.Address,
		lat, lon, rec.MapsURL, rec.Brand, rec.DeviceTS.UTC(), rec.ClientAgent,
	)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "catalog", "insert", rec.CaptureID, err)
	}
	return tag.RowsAffected() > 0, nil
}
