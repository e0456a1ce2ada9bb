package device

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/abode-bridge/internal/abode"
	"github.com/nerrad567/abode-bridge/internal/events"
)

// API is the vendor surface the reconciler needs. *abode.Client satisfies it.
type API interface {
	Controller
	ListDevices(ctx context.Context) ([]abode.Device, error)
	FetchDevice(ctx context.Context, id string) (abode.Device, error)
}

// Publisher receives DeviceRefreshed events. *events.Bus satisfies it.
type Publisher interface {
	Publish(events.Event)
}

// Logger defines the logging interface used by the reconciler.
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

// Reconciler keeps device models in step with the vendor and issues local
// commands.
type Reconciler struct {
	api       API
	registry  *Registry
	marker    *Marker
	debouncer *Debouncer
	publisher Publisher
	logger    Logger
}

// NewReconciler creates a reconciler. window is the bulb debounce window.
func NewReconciler(api API, publisher Publisher, window time.Duration) *Reconciler {
	return &Reconciler{
		api:       api,
		registry:  NewRegistry(),
		marker:    &Marker{},
		debouncer: NewDebouncer(window),
		publisher: publisher,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger.
func (r *Reconciler) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Registry returns the model registry.
func (r *Reconciler) Registry() *Registry {
	return r.registry
}

// Marker returns the last-updated marker.
func (r *Reconciler) Marker() *Marker {
	return r.marker
}

// ListDevices fetches every device record on the account.
func (r *Reconciler) ListDevices(ctx context.Context) ([]abode.Device, error) {
	return r.api.ListDevices(ctx)
}

// Discover lists devices and registers a model for each supported record.
// Known devices are refreshed in place. It returns the models created by
// this call.
func (r *Reconciler) Discover(ctx context.Context) ([]Model, error) {
	records, err := r.api.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering devices: %w", err)
	}

	var added []Model
	for _, rec := range records {
		if !IsSupported(rec) {
			r.logger.Debug("skipping unsupported device", "id", rec.ID, "type_tag", rec.TypeTag)
			continue
		}

		if existing, ok := r.registry.Get(rec.ID); ok {
			existing.Refresh(rec)
			continue
		}

		m, err := NewModel(rec)
		if err != nil {
			r.logger.Warn("building device model", "id", rec.ID, "error", err)
			continue
		}
		r.registry.Put(m)
		added = append(added, m)
		r.logger.Info("device discovered", "id", rec.ID, "name", rec.Name, "kind", m.Kind().String())
	}

	return added, nil
}

// ApplyLocalCommand applies cmd to the device's model and issues the control
// call. The marker is set immediately before the call goes out. A command
// that changes nothing returns nil without a call.
func (r *Reconciler) ApplyLocalCommand(ctx context.Context, id string, cmd Command) error {
	m, ok := r.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}

	call, err := m.plan(cmd)
	if err != nil {
		return err
	}
	if call == nil {
		r.logger.Debug("command is a no-op", "id", id, "command", cmd.String())
		return nil
	}

	send := func(ctx context.Context) error {
		r.marker.Set(id)
		return call.send(ctx, r.api)
	}

	if call.key != "" {
		err = r.debouncer.Do(ctx, call.key, send)
	} else {
		err = send(ctx)
	}
	if err != nil {
		r.logger.Error("control command failed", "id", id, "command", cmd.String(), "error", err)
		return fmt.Errorf("device %s: %w", id, err)
	}

	r.logger.Debug("control command sent", "id", id, "command", cmd.String())
	return nil
}

// OnRemoteUpdate handles a device-updated notification. An update for the
// last locally commanded device is an echo and is ignored. Otherwise the
// record is re-fetched, the model refreshed and DeviceRefreshed published.
func (r *Reconciler) OnRemoteUpdate(ctx context.Context, id string) error {
	if r.marker.Is(id) {
		r.logger.Debug("ignoring echo of local command", "id", id)
		return nil
	}

	rec, err := r.api.FetchDevice(ctx, id)
	if err != nil {
		return fmt.Errorf("refreshing device %s: %w", id, err)
	}
	if rec.IsEmpty() {
		r.logger.Warn("device not found", "id", id)
		return nil
	}

	m, ok := r.registry.Get(id)
	if !ok {
		r.logger.Debug("update for unregistered device", "id", id, "type_tag", rec.TypeTag)
		return nil
	}

	m.Refresh(rec)
	r.publisher.Publish(events.Event{Kind: events.DeviceRefreshed, DeviceID: id})
	return nil
}

// Close drops pending debounced calls.
func (r *Reconciler) Close() {
	r.debouncer.Close()
}
