package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"checkproof/internal/capture"
	"checkproof/internal/config"
	"checkproof/internal/connectivity"
	"checkproof/internal/daemon"
	"checkproof/internal/ipc"
	"checkproof/internal/logging"
	"checkproof/internal/manager"
	"checkproof/internal/metrics"
	"checkproof/internal/notifications"
	"checkproof/internal/queue"
	"checkproof/internal/services/nominatim"
	"checkproof/internal/session"
	"checkproof/internal/upload"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// SocketPath overrides the configured IPC socket location.
	SocketPath string
	LogLevel   string
}

// Run starts the checkproof daemon and blocks until a signal or an IPC stop
// request ends it.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}

	signalCtx, stopSignals := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	runCtx, cancel := context.WithCancel(signalCtx)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	logger, logPath, err := logging.NewFromConfig(cfg, "checkproof")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "checkproof-*.log", logPath)
	logBackendSnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	sess, err := session.NewManager(cfg, session.WithLogger(logging.NewComponentLogger(logger, "session")))
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("load session: %w", err)
	}

	oracle := connectivity.New(cfg.Connectivity,
		connectivity.WithLogger(logging.NewComponentLogger(logger, "connectivity")))

	producerOpts := []capture.Option{
		capture.WithSession(sess),
		capture.WithLogger(logging.NewComponentLogger(logger, "capture")),
	}
	if cfg.Geocode.Enabled {
		geocoder := nominatim.New(cfg.Geocode,
			nominatim.WithLogger(logging.NewComponentLogger(logger, "nominatim")))
		producerOpts = append(producerOpts, capture.WithGeocoder(geocoder))
	}
	producer, err := capture.NewProducer(cfg.Capture, producerOpts...)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("build capture producer: %w", err)
	}

	backend, err := upload.OpenBackend(runCtx, cfg, sess, logging.NewComponentLogger(logger, "upload"))
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("open upload backend: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	notifier := notifications.NewService(cfg)
	mgr := manager.New(store, backend.Client, oracle,
		manager.WithLogger(logging.NewComponentLogger(logger, "manager")),
		manager.WithNotifier(notifier),
		manager.WithMetrics(m.ManagerHooks()),
		manager.WithRetryInterval(time.Duration(cfg.Queue.RetryIntervalSeconds)*time.Second),
	)

	d, err := daemon.New(cfg, daemon.Dependencies{
		Store:    store,
		Manager:  mgr,
		Oracle:   oracle,
		Session:  sess,
		Producer: producer,
		Notifier: notifier,
		Gatherer: registry,
		Closers:  []func(){backend.Close},
	}, logger)
	if err != nil {
		backend.Close()
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(runCtx, socketPath, d, logger, ipc.WithShutdown(cancel))
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(runCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check the lock file and queue database access"),
			logging.String(logging.FieldImpact, "captures are not uploaded until the daemon starts"),
		)
	}

	<-runCtx.Done()
	logger.Info("checkproof daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// logBackendSnapshot records which collaborators this run will talk to.
func logBackendSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("backend snapshot",
		logging.String(logging.FieldEventType, "backend_snapshot"),
		logging.Bool("uploads_configured", cfg.UploadsConfigured()),
		logging.String("object_store_endpoint", cfg.ObjectStore.Endpoint),
		logging.String("object_store_bucket", cfg.ObjectStore.Bucket),
		logging.Bool("events_enabled", cfg.Events.Enabled),
		logging.Bool("geocode_enabled", cfg.Geocode.Enabled),
		logging.String("connectivity_mode", cfg.Connectivity.Mode),
		logging.Bool("netlink", cfg.Connectivity.Netlink),
		logging.Bool("panel_url_present", strings.TrimSpace(cfg.Session.PanelURL) != ""),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.String("api_bind", cfg.Paths.APIBind),
	)
}
