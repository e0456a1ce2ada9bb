package device

import (
	"context"
	"sync"

	"github.com/nerrad567/abode-bridge/internal/abode"
)

// Dimmer is a dimmable light controlled through the light endpoint.
//
// Brightness is only taken from a record while the dimmer reports power on;
// an off dimmer keeps its last known level.
type Dimmer struct {
	mu         sync.RWMutex
	rec        abode.Device
	on         bool
	brightness int
}

func newDimmer(rec abode.Device) *Dimmer {
	d := &Dimmer{}
	d.Refresh(rec)
	return d
}

func (d *Dimmer) ID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rec.ID
}

func (d *Dimmer) Kind() Kind { return KindDimmer }

func (d *Dimmer) Record() abode.Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rec
}

func (d *Dimmer) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()

	st := baseState(d.rec, KindDimmer)
	st.On = d.on
	st.Brightness = intPtr(d.brightness)
	return st
}

func (d *Dimmer) Refresh(rec abode.Device) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rec = rec
	d.on = powerFromRecord(rec)
	if d.on {
		if level, ok := rec.Statuses.Number("level"); ok {
			d.brightness = brightnessFromFloat(level)
		}
	}
}

func (d *Dimmer) plan(cmd Command) (*controlCall, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.rec.ID

	switch cmd.Type {
	case CommandPower:
		if d.on == cmd.On {
			return nil, nil
		}
		d.on = cmd.On
		status := abode.StatusOff
		if cmd.On {
			status = abode.StatusOn
		}
		return &controlCall{
			send: func(ctx context.Context, c Controller) error {
				return c.ControlLight(ctx, id, abode.LightControl{Status: &status})
			},
		}, nil

	case CommandBrightness:
		level := brightnessFromFloat(cmd.Value)
		d.brightness = level
		return &controlCall{
			send: func(ctx context.Context, c Controller) error {
				return c.ControlLight(ctx, id, abode.LightControl{Level: &level})
			},
		}, nil

	default:
		return nil, unsupportedCommand(KindDimmer, cmd)
	}
}
