package device

import (
	"context"
	"fmt"

	"github.com/nerrad567/abode-bridge/internal/abode"
)

// Controller issues control calls to the vendor. *abode.Client satisfies it.
type Controller interface {
	ControlSwitch(ctx context.Context, id string, status int) error
	ControlLight(ctx context.Context, id string, body abode.LightControl) error
	ControlBulb(ctx context.Context, controlID string, action abode.BulbAction) error
}

// State is a point-in-time view of a device model for hosts.
// Optional fields are nil when the kind does not support them.
type State struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Kind             Kind     `json:"kind"`
	Version          string   `json:"version,omitempty"`
	On               bool     `json:"on"`
	Brightness       *int     `json:"brightness,omitempty"`
	Hue              *float64 `json:"hue,omitempty"`
	Saturation       *float64 `json:"saturation,omitempty"`
	ColorTemperature *int     `json:"color_temperature,omitempty"`
}

// Model is the internal view of one supported device.
// The set of implementations is closed: Switch, Dimmer and Bulb.
type Model interface {
	ID() string
	Kind() Kind
	Record() abode.Device
	State() State

	// Refresh re-derives the model from a new record for the same device.
	Refresh(rec abode.Device)

	// plan applies cmd to local state and returns the control call to make,
	// or nil when the command changes nothing.
	plan(cmd Command) (*controlCall, error)
}

// controlCall is one outbound control request. key is set when the call may
// be debounced with later calls sharing the key.
type controlCall struct {
	key  string
	send func(ctx context.Context, c Controller) error
}

// NewModel builds the model for a supported record.
func NewModel(rec abode.Device) (Model, error) {
	switch kind := KindOf(rec.TypeTag); kind {
	case KindSwitch:
		return newSwitch(rec), nil
	case KindDimmer:
		return newDimmer(rec), nil
	case KindLightBulb, KindHue:
		return newBulb(rec, kind), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, rec.TypeTag)
	}
}

// powerFromRecord reads the power state. statuses.switch wins; the summary
// status string is used when it is absent.
func powerFromRecord(rec abode.Device) bool {
	if v, ok := rec.Statuses.Number("switch"); ok {
		return v != 0
	}
	return rec.Status == "On"
}

func baseState(rec abode.Device, kind Kind) State {
	return State{
		ID:      rec.ID,
		Name:    rec.Name,
		Kind:    kind,
		Version: rec.Version,
	}
}

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }

func unsupportedCommand(kind Kind, cmd Command) error {
	return fmt.Errorf("%w: %s does not support %s", ErrInvalidCommand, kind, cmd.Type)
}
