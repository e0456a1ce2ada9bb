package platform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/abode-bridge/internal/abode"
	"github.com/nerrad567/abode-bridge/internal/device"
	"github.com/nerrad567/abode-bridge/internal/events"
)

// Logger defines the logging interface used by the platform.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Host is an accessory host the platform publishes devices to.
type Host interface {
	// Name identifies the host in logs.
	Name() string

	// Register adds an accessory for a newly discovered device.
	Register(m device.Model) error

	// Update pushes refreshed device state.
	Update(state device.State)
}

// Config holds everything Init needs.
type Config struct {
	Email       string
	Password    string
	HostVersion string

	BaseURL   string
	SocketURL string

	RenewInterval   time.Duration
	RequestTimeout  time.Duration
	WatchdogTimeout time.Duration
	DebounceWindow  time.Duration
}

// Status is a snapshot of the bridge core's health.
type Status struct {
	Auth             string    `json:"auth"`
	SocketConnected  bool      `json:"socket_connected"`
	Devices          int       `json:"devices"`
	LastRenewal      time.Time `json:"last_renewal,omitzero"`
	OAuthExpiresAt   time.Time `json:"oauth_expires_at,omitzero"`
	WatchdogFailures int       `json:"watchdog_failures"`
}

// Authenticated reports whether the session is currently usable.
func (s Status) Authenticated() bool {
	return s.Auth == abode.StateAuthenticated.String()
}

// Platform wires the Abode client, realtime channel, reconciler and hosts.
type Platform struct {
	cfg    Config
	logger Logger

	session    *abode.Session
	client     *abode.Client
	auth       *abode.Authenticator
	socket     *abode.Socket
	bus        *events.Bus
	reconciler *device.Reconciler
	watchdog   *Watchdog

	mu          sync.Mutex
	hosts       []Host
	initialised bool
	unsubs      []func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New builds a platform. Nothing touches the network until Init.
func New(cfg Config, logger Logger) *Platform {
	if logger == nil {
		logger = noopLogger{}
	}
	if cfg.DebounceWindow == 0 {
		cfg.DebounceWindow = device.DefaultDebounceWindow
	}

	session := abode.NewSession()
	session.SetCredentials(cfg.Email, cfg.Password)

	client := abode.NewClient(session, abode.ClientConfig{
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.RequestTimeout,
		HostVersion: cfg.HostVersion,
	})
	client.SetLogger(logger)

	auth := abode.NewAuthenticator(client, cfg.RenewInterval)
	auth.SetLogger(logger)

	bus := events.NewBus()
	bus.SetLogger(logger)

	socket := abode.NewSocket(session, bus, abode.SocketConfig{
		URL:         cfg.SocketURL,
		HostVersion: cfg.HostVersion,
	})
	socket.SetLogger(logger)

	reconciler := device.NewReconciler(client, bus, cfg.DebounceWindow)
	reconciler.SetLogger(logger)

	return &Platform{
		cfg:        cfg,
		logger:     logger,
		session:    session,
		client:     client,
		auth:       auth,
		socket:     socket,
		bus:        bus,
		reconciler: reconciler,
		watchdog:   NewWatchdog(cfg.WatchdogTimeout, logger),
	}
}

// AddHost attaches an accessory host. Hosts added after Init only receive
// devices discovered later.
func (p *Platform) AddHost(h Host) {
	p.mu.Lock()
	p.hosts = append(p.hosts, h)
	p.mu.Unlock()
}

// Init signs in, opens the realtime channel, starts renewal and discovers
// devices. An authentication failure aborts Init before discovery; a
// discovery failure is logged and leaves the platform running.
func (p *Platform) Init(ctx context.Context) error {
	p.mu.Lock()
	if p.initialised {
		p.mu.Unlock()
		return ErrAlreadyInitialised
	}
	p.mu.Unlock()

	if !p.session.Credentials().Valid() {
		return fmt.Errorf("%w: email and password are required", abode.ErrConfiguration)
	}

	p.logger.Info("initialising abode platform", "user_agent", abode.UserAgent(p.cfg.HostVersion))

	if err := p.auth.Authenticate(ctx); err != nil {
		p.logger.Error("abode authentication failed, skipping discovery", "error", err)
		return fmt.Errorf("authenticating: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	p.mu.Lock()
	p.initialised = true
	p.cancel = cancel
	p.unsubs = append(p.unsubs,
		p.bus.Subscribe(p.onConnection, events.Connected, events.Disconnected),
		p.bus.Subscribe(func(ev events.Event) { p.onDeviceUpdated(runCtx, ev) }, events.DeviceUpdated),
		p.bus.Subscribe(p.onDeviceRefreshed, events.DeviceRefreshed),
	)
	p.mu.Unlock()

	// Armed until the first namespace connect.
	p.watchdog.Disconnected()

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.socket.Run(runCtx)
	}()
	go func() {
		defer p.wg.Done()
		p.auth.Run(runCtx)
	}()

	// Devices missed here are picked up by a later Discover.
	if _, err := p.Discover(ctx); err != nil {
		p.logger.Error("failed to discover devices", "error", err)
	}
	return nil
}

// Discover lists devices and registers new supported models with every host.
func (p *Platform) Discover(ctx context.Context) ([]device.Model, error) {
	added, err := p.reconciler.Discover(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range added {
		for _, h := range p.hostsSnapshot() {
			if err := h.Register(m); err != nil {
				p.logger.Warn("registering device with host",
					"host", h.Name(),
					"id", m.ID(),
					"error", err,
				)
			}
		}
	}

	p.logger.Info("device discovery complete",
		"new", len(added),
		"total", p.reconciler.Registry().Len(),
	)
	return added, nil
}

// ListDevices fetches every device record on the account.
func (p *Platform) ListDevices(ctx context.Context) ([]abode.Device, error) {
	return p.reconciler.ListDevices(ctx)
}

// Devices returns the state of every registered device.
func (p *Platform) Devices() []device.State {
	return p.reconciler.Registry().States()
}

// Device returns the state of one registered device.
func (p *Platform) Device(id string) (device.State, bool) {
	m, ok := p.reconciler.Registry().Get(id)
	if !ok {
		return device.State{}, false
	}
	return m.State(), true
}

// Model returns the model for id.
func (p *Platform) Model(id string) (device.Model, bool) {
	return p.reconciler.Registry().Get(id)
}

// ApplyLocalCommand applies a host-initiated command. On success the new
// state is pushed to every host.
func (p *Platform) ApplyLocalCommand(ctx context.Context, id string, cmd device.Command) error {
	if !p.isInitialised() {
		return ErrNotInitialised
	}
	if err := p.reconciler.ApplyLocalCommand(ctx, id, cmd); err != nil {
		return err
	}
	if st, ok := p.Device(id); ok {
		p.pushState(st)
	}
	return nil
}

// Subscribe registers handler on the platform's event bus.
func (p *Platform) Subscribe(handler events.Handler, kinds ...events.Kind) (unsubscribe func()) {
	return p.bus.Subscribe(handler, kinds...)
}

// Status returns a health snapshot.
func (p *Platform) Status() Status {
	return Status{
		Auth:             p.auth.State().String(),
		SocketConnected:  p.socket.IsConnected(),
		Devices:          p.reconciler.Registry().Len(),
		LastRenewal:      p.auth.LastRenewal(),
		OAuthExpiresAt:   p.auth.TokenExpiresAt(),
		WatchdogFailures: p.watchdog.Failures(),
	}
}

// Close stops the realtime channel and renewal, unsubscribes from the bus
// and drops pending debounced commands.
func (p *Platform) Close() {
	p.mu.Lock()
	cancel := p.cancel
	unsubs := p.unsubs
	p.unsubs = nil
	p.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	p.watchdog.Stop()
	p.reconciler.Close()
}

func (p *Platform) isInitialised() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialised
}

func (p *Platform) hostsSnapshot() []Host {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Host(nil), p.hosts...)
}

func (p *Platform) onConnection(ev events.Event) {
	switch ev.Kind {
	case events.Connected:
		p.watchdog.Connected()
	case events.Disconnected:
		p.watchdog.Disconnected()
	}
}

// onDeviceUpdated runs the refresh off the socket's read goroutine.
func (p *Platform) onDeviceUpdated(ctx context.Context, ev events.Event) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.reconciler.OnRemoteUpdate(ctx, ev.DeviceID); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Warn("refreshing device after remote update", "id", ev.DeviceID, "error", err)
		}
	}()
}

func (p *Platform) onDeviceRefreshed(ev events.Event) {
	st, ok := p.Device(ev.DeviceID)
	if !ok {
		return
	}
	p.pushState(st)
}

func (p *Platform) pushState(st device.State) {
	for _, h := range p.hostsSnapshot() {
		h.Update(st)
	}
}
