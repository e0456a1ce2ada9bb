package homekit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"

	"github.com/nerrad567/abode-bridge/internal/device"
)

// Logger is the logging interface used by the host.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Config holds the HomeKit bridge settings.
type Config struct {
	Name        string
	Pin         string
	StoragePath string
	Port        int
	Version     string
}

// Host is the HomeKit accessory host.
type Host struct {
	cfg    Config
	ctl    Controller
	logger Logger
	bridge *accessory.Bridge

	mu       sync.RWMutex
	adapters map[string]*adapter
	serving  bool
}

// NewHost creates a host applying Home app writes through ctl.
func NewHost(cfg Config, ctl Controller) *Host {
	if cfg.Name == "" {
		cfg.Name = "Abode Bridge"
	}
	return &Host{
		cfg:    cfg,
		ctl:    ctl,
		logger: noopLogger{},
		bridge: accessory.NewBridge(accessory.Info{
			Name:         cfg.Name,
			Manufacturer: manufacturer,
			Model:        "abodebridge",
			Firmware:     cfg.Version,
		}),
		adapters: make(map[string]*adapter),
	}
}

// SetLogger sets the logger.
func (h *Host) SetLogger(logger Logger) {
	h.logger = logger
}

// Name identifies the host in logs.
func (h *Host) Name() string { return "homekit" }

// Register adds an accessory for m. Registering a known device refreshes
// its characteristics instead.
func (h *Host) Register(m device.Model) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ad, ok := h.adapters[m.ID()]; ok {
		ad.update(m.State())
		return nil
	}
	if h.serving {
		return fmt.Errorf("%w: %s", ErrServing, m.ID())
	}

	h.adapters[m.ID()] = newAdapter(m, h.ctl)
	return nil
}

// Update pushes refreshed state to the device's characteristics.
func (h *Host) Update(st device.State) {
	h.mu.RLock()
	ad, ok := h.adapters[st.ID]
	h.mu.RUnlock()

	if ok {
		ad.update(st)
	}
}

// Len returns the number of device accessories.
func (h *Host) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.adapters)
}

// accessories returns the device accessories ordered by accessory id.
func (h *Host) accessories() []*accessory.A {
	h.mu.RLock()
	defer h.mu.RUnlock()

	as := make([]*accessory.A, 0, len(h.adapters))
	for _, ad := range h.adapters {
		as = append(as, ad.a)
	}
	sort.Slice(as, func(i, j int) bool { return as[i].Id < as[j].Id })
	return as
}

// Serve publishes the bridge and blocks until ctx is cancelled.
func (h *Host) Serve(ctx context.Context) error {
	if !validPin(h.cfg.Pin) {
		return ErrInvalidPin
	}

	h.mu.Lock()
	h.serving = true
	h.mu.Unlock()

	server, err := hap.NewServer(hap.NewFsStore(h.cfg.StoragePath), h.bridge.A, h.accessories()...)
	if err != nil {
		return fmt.Errorf("creating homekit server: %w", err)
	}
	server.Pin = h.cfg.Pin
	if h.cfg.Port > 0 {
		server.Addr = fmt.Sprintf(":%d", h.cfg.Port)
	}

	if h.Len() == 0 {
		h.logger.Warn("homekit bridge has no device accessories")
	}
	h.logger.Info("homekit bridge serving", "name", h.cfg.Name, "accessories", h.Len())

	err = server.ListenAndServe(ctx)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("homekit server: %w", err)
}

func validPin(pin string) bool {
	if len(pin) != 8 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
