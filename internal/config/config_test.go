package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"checkproof/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "checkproof")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.QueueDBPath() != filepath.Join(wantData, "queue.db") {
		t.Fatalf("unexpected queue db path: %q", cfg.QueueDBPath())
	}
	if cfg.SessionPath() != filepath.Join(wantData, "session.json") {
		t.Fatalf("unexpected session path: %q", cfg.SessionPath())
	}
	if cfg.Paths.APIBind != "127.0.0.1:7489" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Capture.JPEGQuality != 92 {
		t.Fatalf("expected jpeg quality 92, got %d", cfg.Capture.JPEGQuality)
	}
	if cfg.Capture.Brand != "CheckProof" {
		t.Fatalf("unexpected brand %q", cfg.Capture.Brand)
	}
	if cfg.Connectivity.Mode != config.ConnectivityModeProbe {
		t.Fatalf("expected probe mode, got %q", cfg.Connectivity.Mode)
	}
	if cfg.UploadsConfigured() {
		t.Fatal("expected uploads to be unconfigured by default")
	}
	if cfg.Events.Enabled {
		t.Fatal("expected events disabled by default")
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "checkproof.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Capture struct {
			Brand       string `toml:"brand"`
			JPEGQuality int    `toml:"jpeg_quality"`
		} `toml:"capture"`
		Connectivity struct {
			Mode string `toml:"mode"`
		} `toml:"connectivity"`
		Queue struct {
			RetryIntervalSeconds int `toml:"retry_interval_seconds"`
		} `toml:"queue"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Capture.Brand = "Acme Seguridad"
	custom.Capture.JPEGQuality = 80
	custom.Connectivity.Mode = "OFFLINE"
	custom.Queue.RetryIntervalSeconds = 60
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.DataDir != filepath.Join(tempDir, "data") {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
	if cfg.Capture.Brand != "Acme Seguridad" {
		t.Fatalf("expected brand from file, got %q", cfg.Capture.Brand)
	}
	if cfg.Capture.JPEGQuality != 80 {
		t.Fatalf("expected jpeg quality 80, got %d", cfg.Capture.JPEGQuality)
	}
	if cfg.Connectivity.Mode != config.ConnectivityModeOffline {
		t.Fatalf("expected mode to be lowercased, got %q", cfg.Connectivity.Mode)
	}
	if cfg.Queue.RetryIntervalSeconds != 60 {
		t.Fatalf("expected retry interval 60, got %d", cfg.Queue.RetryIntervalSeconds)
	}
	if !cfg.Capture.Watermark {
		t.Fatal("expected watermark default to survive partial file")
	}
}

func TestEnvFallbacksFillBackendSettings(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CHECKPROOF_PANEL_URL", "https://panel.example.com/")
	t.Setenv("CHECKPROOF_S3_ACCESS_KEY", "env-access")
	t.Setenv("CHECKPROOF_S3_SECRET_KEY", "env-secret")
	t.Setenv("DATABASE_URL", "postgres://checkproof@localhost:5432/evidence")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,kafka-1:9092")
	t.Setenv("CHECKPROOF_API_TOKEN", "env-token")

	configPath := filepath.Join(t.TempDir(), "checkproof.toml")
	contents := "[object_store]\nendpoint = \"minio.local:9000\"\n\n[events]\nenabled = true\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Session.PanelURL != "https://panel.example.com" {
		t.Errorf("expected panel url from env without trailing slash, got %q", cfg.Session.PanelURL)
	}
	if cfg.ObjectStore.AccessKey != "env-access" || cfg.ObjectStore.SecretKey != "env-secret" {
		t.Errorf("expected object store keys from env, got %q/%q", cfg.ObjectStore.AccessKey, cfg.ObjectStore.SecretKey)
	}
	if cfg.Catalog.DatabaseURL != "postgres://checkproof@localhost:5432/evidence" {
		t.Errorf("expected database url from env, got %q", cfg.Catalog.DatabaseURL)
	}
	if got := strings.Join(cfg.Events.Brokers, ","); got != "kafka-1:9092,kafka-2:9092" {
		t.Errorf("expected deduplicated brokers, got %q", got)
	}
	if cfg.Paths.APIToken != "env-token" {
		t.Errorf("expected api token from env, got %q", cfg.Paths.APIToken)
	}
	if !cfg.UploadsConfigured() {
		t.Error("expected uploads to be configured")
	}
}

func TestFileValuesWinOverEnvFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://env@localhost/evidence")
	configPath := filepath.Join(t.TempDir(), "checkproof.toml")
	contents := "[catalog]\ndatabase_url = \"postgres://file@localhost/evidence\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Catalog.DatabaseURL != "postgres://file@localhost/evidence" {
		t.Fatalf("expected file database url, got %q", cfg.Catalog.DatabaseURL)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[object_store]") {
		t.Fatalf("sample config missing object_store section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "checkproof") {
		t.Fatalf("expected data dir to contain checkproof, got %q", cfg.Paths.DataDir)
	}
	if cfg.Capture.JPEGQuality != config.Default().Capture.JPEGQuality {
		t.Fatalf("sample jpeg quality drifted from default: %d", cfg.Capture.JPEGQuality)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"jpeg quality too high", func(c *config.Config) { c.Capture.JPEGQuality = 101 }},
		{"jpeg quality zero", func(c *config.Config) { c.Capture.JPEGQuality = 0 }},
		{"unknown connectivity mode", func(c *config.Config) { c.Connectivity.Mode = "sometimes" }},
		{"probe url scheme", func(c *config.Config) { c.Connectivity.ProbeURL = "ftp://example.com" }},
		{"probe timeout exceeds interval", func(c *config.Config) { c.Connectivity.ProbeTimeoutSeconds = 30 }},
		{"retry interval zero", func(c *config.Config) { c.Queue.RetryIntervalSeconds = 0 }},
		{"negative free space", func(c *config.Config) { c.Queue.MinFreeMiB = -1 }},
		{"geocode rate zero", func(c *config.Config) { c.Geocode.RequestsPerSecond = 0 }},
		{"endpoint with scheme", func(c *config.Config) {
			c.ObjectStore.Endpoint = "http://minio:9000"
			c.ObjectStore.AccessKey = "a"
			c.ObjectStore.SecretKey = "b"
		}},
		{"endpoint without keys", func(c *config.Config) { c.ObjectStore.Endpoint = "minio:9000" }},
		{"database url scheme", func(c *config.Config) { c.Catalog.DatabaseURL = "mysql://db" }},
		{"min conns above max", func(c *config.Config) {
			c.Catalog.DatabaseURL = "postgres://db/evidence"
			c.Catalog.MinConns = 10
		}},
		{"events without brokers", func(c *config.Config) { c.Events.Enabled = true }},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"log level", func(c *config.Config) { c.Logging.Level = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	cfg.Geocode.Enabled = false
	cfg.Geocode.RequestsPerSecond = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled geocoder should skip its checks: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "data", "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q, err=%v", dir, err)
		}
	}
}
