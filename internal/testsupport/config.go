package testsupport

import (
	"path/filepath"
	"testing"

	"checkproof/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Network collaborators are disabled: connectivity is forced online, the
// geocoder is off, and no free-space floor is enforced.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Geocode.Enabled = false
	cfgVal.Connectivity.Mode = config.ConnectivityModeOnline
	cfgVal.Connectivity.Netlink = false
	cfgVal.Queue.MinFreeMiB = 0

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithConnectivityMode overrides connectivity.mode.
func WithConnectivityMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Connectivity.Mode = mode
	}
}

// WithPanelURL points the session exchange at a test server.
func WithPanelURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.PanelURL = url
	}
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
