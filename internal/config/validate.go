package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateGeocode(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateObjectStore(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateTimings(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return errors.New("capture.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateGeocode() error {
	if !c.Geocode.Enabled {
		return nil
	}
	if err := validateHTTPURL("geocode.base_url", c.Geocode.BaseURL); err != nil {
		return err
	}
	if c.Geocode.RequestsPerSecond <= 0 {
		return errors.New("geocode.requests_per_second must be positive")
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.PanelURL == "" {
		return nil
	}
	return validateHTTPURL("session.panel_url", c.Session.PanelURL)
}

func (c *Config) validateObjectStore() error {
	if c.ObjectStore.Endpoint == "" {
		return nil
	}
	if strings.Contains(c.ObjectStore.Endpoint, "://") {
		return errors.New("object_store.endpoint must be host[:port] without a scheme (use object_store.use_ssl)")
	}
	if c.ObjectStore.AccessKey == "" || c.ObjectStore.SecretKey == "" {
		return errors.New("object_store.access_key and object_store.secret_key must be set when object_store.endpoint is set (or export CHECKPROOF_S3_ACCESS_KEY/CHECKPROOF_S3_SECRET_KEY)")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.DatabaseURL == "" {
		return nil
	}
	if !strings.HasPrefix(c.Catalog.DatabaseURL, "postgres://") && !strings.HasPrefix(c.Catalog.DatabaseURL, "postgresql://") {
		return errors.New("catalog.database_url must start with postgres:// or postgresql://")
	}
	if c.Catalog.MinConns > c.Catalog.MaxConns {
		return errors.New("catalog.min_conns must not exceed catalog.max_conns")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if len(c.Events.Brokers) == 0 {
		return errors.New("events.brokers must be set when events.enabled is true (or export KAFKA_BROKERS)")
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	switch c.Connectivity.Mode {
	case ConnectivityModeProbe:
		return validateHTTPURL("connectivity.probe_url", c.Connectivity.ProbeURL)
	case ConnectivityModeOnline, ConnectivityModeOffline:
		return nil
	default:
		return fmt.Errorf("connectivity.mode: unsupported value %q (want probe, online, or offline)", c.Connectivity.Mode)
	}
}

func (c *Config) validateTimings() error {
	if err := ensurePositiveMap(map[string]int{
		"geocode.timeout_seconds":             c.Geocode.TimeoutSeconds,
		"session.timeout_seconds":             c.Session.TimeoutSeconds,
		"connectivity.probe_interval_seconds": c.Connectivity.ProbeIntervalSeconds,
		"connectivity.probe_timeout_seconds":  c.Connectivity.ProbeTimeoutSeconds,
		"queue.retry_interval_seconds":        c.Queue.RetryIntervalSeconds,
		"notifications.request_timeout":       c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Connectivity.ProbeTimeoutSeconds > c.Connectivity.ProbeIntervalSeconds {
		return errors.New("connectivity.probe_timeout_seconds must not exceed connectivity.probe_interval_seconds")
	}
	if c.Queue.MinFreeMiB < 0 {
		return errors.New("queue.min_free_mib must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", field)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}
