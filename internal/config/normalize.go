package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCapture()
	c.normalizeGeocode()
	c.normalizeSession()
	c.normalizeObjectStore()
	c.normalizeCatalog()
	c.normalizeEvents()
	c.normalizeConnectivity()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CHECKPROOF_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.Brand = strings.TrimSpace(c.Capture.Brand)
	if c.Capture.Brand == "" {
		c.Capture.Brand = defaultBrand
	}
	if c.Capture.JPEGQuality == 0 {
		c.Capture.JPEGQuality = defaultJPEGQuality
	}
}

func (c *Config) normalizeGeocode() {
	c.Geocode.BaseURL = strings.TrimRight(strings.TrimSpace(c.Geocode.BaseURL), "/")
	if c.Geocode.BaseURL == "" {
		c.Geocode.BaseURL = defaultGeocodeBaseURL
	}
	c.Geocode.Language = strings.TrimSpace(c.Geocode.Language)
	if c.Geocode.Language == "" {
		c.Geocode.Language = defaultGeocodeLanguage
	}
	c.Geocode.UserAgent = strings.TrimSpace(c.Geocode.UserAgent)
	if c.Geocode.UserAgent == "" {
		c.Geocode.UserAgent = defaultGeocodeUserAgent
	}
}

func (c *Config) normalizeSession() {
	if value, ok := os.LookupEnv("CHECKPROOF_PANEL_URL"); ok && strings.TrimSpace(value) != "" {
		if strings.TrimSpace(c.Session.PanelURL) == "" || c.Session.PanelURL == defaultSessionPanelURL {
			c.Session.PanelURL = value
		}
	}
	c.Session.PanelURL = strings.TrimRight(strings.TrimSpace(c.Session.PanelURL), "/")
}

func (c *Config) normalizeObjectStore() {
	c.ObjectStore.Endpoint = strings.TrimSpace(c.ObjectStore.Endpoint)
	c.ObjectStore.Bucket = strings.TrimSpace(c.ObjectStore.Bucket)
	if c.ObjectStore.Bucket == "" {
		c.ObjectStore.Bucket = defaultObjectStoreBucket
	}
	c.ObjectStore.AccessKey = strings.TrimSpace(c.ObjectStore.AccessKey)
	if c.ObjectStore.AccessKey == "" {
		if value, ok := os.LookupEnv("CHECKPROOF_S3_ACCESS_KEY"); ok {
			c.ObjectStore.AccessKey = strings.TrimSpace(value)
		}
	}
	c.ObjectStore.SecretKey = strings.TrimSpace(c.ObjectStore.SecretKey)
	if c.ObjectStore.SecretKey == "" {
		if value, ok := os.LookupEnv("CHECKPROOF_S3_SECRET_KEY"); ok {
			c.ObjectStore.SecretKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeCatalog() {
	c.Catalog.DatabaseURL = strings.TrimSpace(c.Catalog.DatabaseURL)
	if c.Catalog.DatabaseURL == "" {
		if value, ok := os.LookupEnv("DATABASE_URL"); ok {
			c.Catalog.DatabaseURL = strings.TrimSpace(value)
		}
	}
	if c.Catalog.MaxConns <= 0 {
		c.Catalog.MaxConns = defaultCatalogMaxConns
	}
	if c.Catalog.MinConns < 0 {
		c.Catalog.MinConns = 0
	}
}

func (c *Config) normalizeEvents() {
	if len(c.Events.Brokers) == 0 {
		if value, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
			c.Events.Brokers = strings.Split(value, ",")
		}
	}
	brokers := make([]string, 0, len(c.Events.Brokers))
	seen := make(map[string]struct{}, len(c.Events.Brokers))
	for _, broker := range c.Events.Brokers {
		trimmed := strings.TrimSpace(broker)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		brokers = append(brokers, trimmed)
	}
	c.Events.Brokers = brokers
	c.Events.Topic = strings.TrimSpace(c.Events.Topic)
	if c.Events.Topic == "" {
		c.Events.Topic = defaultEventsTopic
	}
}

func (c *Config) normalizeConnectivity() {
	c.Connectivity.Mode = strings.ToLower(strings.TrimSpace(c.Connectivity.Mode))
	if c.Connectivity.Mode == "" {
		c.Connectivity.Mode = defaultConnectivityMode
	}
	c.Connectivity.ProbeURL = strings.TrimSpace(c.Connectivity.ProbeURL)
	if c.Connectivity.ProbeURL == "" {
		c.Connectivity.ProbeURL = defaultConnectivityProbeURL
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
