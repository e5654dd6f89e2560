// Package config loads, normalizes, and validates CheckProof configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DATABASE_URL and CHECKPROOF_S3_ACCESS_KEY. The Config type centralizes every
// knob the daemon and CLI need, so the queue database, session file, backend
// credentials and connectivity probe are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
