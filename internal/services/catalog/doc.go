// Package catalog records uploaded evidence in PostgreSQL.
//
// The schema is shipped as embedded golang-migrate migrations and applied
// through the pgx/v5 driver. Inserts are keyed by capture id so re-uploading a
// capture after a partial failure never produces a duplicate record.
package catalog
