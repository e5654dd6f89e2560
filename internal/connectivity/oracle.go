package connectivity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"checkproof/internal/config"
	"checkproof/internal/logging"
)

// Kind is the direction of a connectivity change.
type Kind string

const (
	KindOnline  Kind = "online"
	KindOffline Kind = "offline"
)

// Source names what observed a change.
type Source string

const (
	SourceProbe   Source = "probe"
	SourceNetlink Source = "netlink"
	SourceManual  Source = "manual"
)

// Event is one edge of the online/offline signal.
type Event struct {
	Kind   Kind      `json:"kind"`
	Source Source    `json:"source"`
	At     time.Time `json:"at"`
}

const subscriberBuffer = 8

// HTTPDoer performs probe requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customizes an Oracle.
type Option func(*Oracle)

// WithHTTPClient overrides the probe client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(o *Oracle) {
		if doer != nil {
			o.client = doer
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Oracle) {
		o.logger = logging.NewComponentLogger(logger, "connectivity")
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) {
		if now != nil {
			o.now = now
		}
	}
}

// Oracle tracks whether the backend is reachable and notifies subscribers on
// every change. Events are edge-triggered: repeated observations of the same
// state produce nothing.
type Oracle struct {
	mode     string
	probeURL string
	interval time.Duration
	timeout  time.Duration
	netlink  bool
	client   HTTPDoer
	logger   *slog.Logger
	now      func() time.Time

	trigger chan struct{}

	mu            sync.Mutex
	online        bool
	subs          map[int]chan Event
	nextID        int
	triggerSource Source
}

// New creates an Oracle. In online or offline mode the state is fixed at
// construction and only Set changes it.
func New(cfg config.Connectivity, opts ...Option) *Oracle {
	o := &Oracle{
		mode:     cfg.Mode,
		probeURL: cfg.ProbeURL,
		interval: time.Duration(cfg.ProbeIntervalSeconds) * time.Second,
		timeout:  time.Duration(cfg.ProbeTimeoutSeconds) * time.Second,
		netlink:  cfg.Netlink,
		client:   http.DefaultClient,
		logger:   logging.NewComponentLogger(nil, "connectivity"),
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
		subs:     make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.interval <= 0 {
		o.interval = 15 * time.Second
	}
	if o.timeout <= 0 || o.timeout > o.interval {
		o.timeout = o.interval
	}
	o.online = o.mode == config.ConnectivityModeOnline
	return o
}

// Mode returns the configured detection mode.
func (o *Oracle) Mode() string { return o.mode }

// Online reports the current state.
func (o *Oracle) Online() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.online
}

// Subscribe returns a channel of future changes and a function that ends the
// subscription. Slow subscribers lose the oldest pending event, never the
// newest.
func (o *Oracle) Subscribe() (<-chan Event, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	ch := make(chan Event, subscriberBuffer)
	o.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if sub, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(sub)
			}
		})
	}
}

// Set records an observation. Subscribers hear about it only when the state
// actually changes. It reports whether a change happened.
func (o *Oracle) Set(online bool, source Source) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.online == online {
		return false
	}
	o.online = online
	event := Event{Kind: KindOffline, Source: source, At: o.now().UTC()}
	if online {
		event.Kind = KindOnline
	}
	for _, ch := range o.subs {
		deliver(ch, event)
	}
	o.logger.Info("connectivity changed",
		logging.String("state", string(event.Kind)),
		logging.String("source", string(source)),
		logging.String(logging.FieldEventType, "connectivity_"+string(event.Kind)),
	)
	return true
}

func deliver(ch chan Event, event Event) {
	for {
		select {
		case ch <- event:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Trigger requests an immediate probe. Calls while one is pending coalesce.
func (o *Oracle) Trigger() {
	select {
	case o.trigger <- struct{}{}:
	default:
	}
}

// Probe checks reachability once and records the result.
func (o *Oracle) Probe(ctx context.Context, source Source) bool {
	online := o.probe(ctx) == nil
	o.Set(online, source)
	return online
}

func (o *Oracle) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.probeURL, nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		o.logger.Debug("probe failed", logging.Error(err))
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		o.logger.Debug("probe returned non-success status", logging.Int("status", resp.StatusCode))
		return fmt.Errorf("probe status %d", resp.StatusCode)
	}
	return nil
}

// Run drives detection until ctx is cancelled. In probe mode it probes
// immediately, then every interval and whenever Trigger is called or a
// network interface uevent arrives.
func (o *Oracle) Run(ctx context.Context) error {
	if o.mode != config.ConnectivityModeProbe {
		o.logger.Info("connectivity fixed by configuration",
			logging.String("mode", o.mode),
			logging.String(logging.FieldEventType, "connectivity_fixed"),
		)
		<-ctx.Done()
		return nil
	}

	if o.netlink {
		monitor := newNetlinkMonitor(o.logger, func() { o.pending(SourceNetlink) })
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	o.Probe(ctx, SourceProbe)
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			o.Probe(ctx, SourceProbe)
		case <-o.trigger:
			source := o.takeSource()
			o.Probe(ctx, source)
		}
	}
}

// pending marks the source of the next triggered probe.
func (o *Oracle) pending(source Source) {
	o.mu.Lock()
	o.triggerSource = source
	o.mu.Unlock()
	o.Trigger()
}

func (o *Oracle) takeSource() Source {
	o.mu.Lock()
	defer o.mu.Unlock()
	source := o.triggerSource
	o.triggerSource = ""
	if source == "" {
		source = SourceProbe
	}
	return source
}
