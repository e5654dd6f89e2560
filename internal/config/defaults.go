package config

const (
	defaultConfigPath                 = "~/.config/checkproof/config.toml"
	defaultDataDir                    = "~/.local/share/checkproof"
	defaultLogDir                     = "~/.local/share/checkproof/logs"
	defaultAPIBind                    = "127.0.0.1:7489"
	defaultBrand                      = "CheckProof"
	defaultJPEGQuality                = 92
	defaultGeocodeBaseURL             = "https://nominatim.openstreetmap.org"
	defaultGeocodeLanguage            = "es-AR"
	defaultGeocodeUserAgent           = "CheckProof/dev (+https://checkproof.app)"
	defaultGeocodeRequestsPerSecond   = 1.0
	defaultGeocodeTimeoutSeconds      = 10
	defaultSessionPanelURL            = "http://localhost:3000"
	defaultSessionTimeoutSeconds      = 15
	defaultObjectStoreBucket          = "checkproof-evidence"
	defaultCatalogMaxConns            = 4
	defaultCatalogMinConns            = 1
	defaultEventsTopic                = "evidence.uploaded"
	defaultConnectivityMode           = ConnectivityModeProbe
	defaultConnectivityProbeURL       = "https://clients3.google.com/generate_204"
	defaultConnectivityProbeInterval  = 15
	defaultConnectivityProbeTimeout   = 5
	defaultQueueRetryIntervalSeconds  = 300
	defaultQueueMinFreeMiB            = 64
	defaultNotifyRequestTimeout       = 10
	defaultLogFormat                  = "console"
	defaultLogLevel                   = "info"
	defaultLogRetentionDays           = 30
	defaultCatalogMigrate             = true
	defaultConnectivityNetlinkEnabled = true
)

// Connectivity modes accepted by connectivity.mode.
const (
	ConnectivityModeProbe   = "probe"
	ConnectivityModeOnline  = "online"
	ConnectivityModeOffline = "offline"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Capture: Capture{
			Brand:       defaultBrand,
			Watermark:   true,
			MapQR:       true,
			JPEGQuality: defaultJPEGQuality,
		},
		Geocode: Geocode{
			Enabled:           true,
			BaseURL:           defaultGeocodeBaseURL,
			Language:          defaultGeocodeLanguage,
			UserAgent:         defaultGeocodeUserAgent,
			RequestsPerSecond: defaultGeocodeRequestsPerSecond,
			TimeoutSeconds:    defaultGeocodeTimeoutSeconds,
		},
		Session: Session{
			PanelURL:       defaultSessionPanelURL,
			TimeoutSeconds: defaultSessionTimeoutSeconds,
		},
		ObjectStore: ObjectStore{
			Bucket: defaultObjectStoreBucket,
		},
		Catalog: Catalog{
			MaxConns: defaultCatalogMaxConns,
			MinConns: defaultCatalogMinConns,
			Migrate:  defaultCatalogMigrate,
		},
		Events: Events{
			Topic: defaultEventsTopic,
		},
		Connectivity: Connectivity{
			Mode:                 defaultConnectivityMode,
			ProbeURL:             defaultConnectivityProbeURL,
			ProbeIntervalSeconds: defaultConnectivityProbeInterval,
			ProbeTimeoutSeconds:  defaultConnectivityProbeTimeout,
			Netlink:              defaultConnectivityNetlinkEnabled,
		},
		Queue: Queue{
			RetryIntervalSeconds: defaultQueueRetryIntervalSeconds,
			MinFreeMiB:           defaultQueueMinFreeMiB,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Queued:         true,
			Retry:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
