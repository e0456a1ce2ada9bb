package device

import (
	"context"
	"sync"

	"github.com/nerrad567/abode-bridge/internal/abode"
)

// Debounce key suffixes for bulb writes. Hue and saturation share one key
// so split HomeKit updates collapse into a single setcolor call.
const (
	keyLevel = "/level"
	keyColor = "/color"
	keyTemp  = "/temp"
)

// Bulb is a colour and temperature capable bulb controlled through the
// integrations endpoint.
type Bulb struct {
	mu   sync.RWMutex
	rec  abode.Device
	kind Kind

	on         bool
	brightness int
	hue        float64
	saturation float64
	mired      int
}

func newBulb(rec abode.Device, kind Kind) *Bulb {
	b := &Bulb{
		kind:       kind,
		brightness: 100,
		hue:        120,
	}
	b.Refresh(rec)
	return b
}

func (b *Bulb) ID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rec.ID
}

func (b *Bulb) Kind() Kind { return b.kind }

func (b *Bulb) Record() abode.Device {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rec
}

// MiredRange is the colour temperature range advertised to hosts: the
// bulb's own range clamped to the HomeKit range.
func (b *Bulb) MiredRange() (lo, hi int) {
	return ClampMired(bulbMinMired()), ClampMired(bulbMaxMired())
}

func (b *Bulb) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := baseState(b.rec, b.kind)
	st.On = b.on
	st.Brightness = intPtr(b.brightness)
	st.Hue = floatPtr(b.hue)
	st.Saturation = floatPtr(b.saturation)
	st.ColorTemperature = intPtr(ClampMired(b.mired))
	return st
}

// Refresh re-derives power, level, colour and temperature from rec.
// "N/A" readings become 0; an unusable colour temperature becomes the
// maximum mired value.
func (b *Bulb) Refresh(rec abode.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rec = rec
	b.on = powerFromRecord(rec)

	hue, _ := rec.Statuses.Number("hue")
	sat, _ := rec.Statuses.Number("saturation")
	level, _ := rec.Statuses.Number("level")
	b.hue = hue
	b.saturation = sat
	b.brightness = brightnessFromFloat(level)

	temp, ok := rec.Statuses.Number("color_temp")
	b.mired = inboundMired(temp, ok)
}

func (b *Bulb) plan(cmd Command) (*controlCall, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.rec.ID
	target := b.rec.ControlID()

	switch cmd.Type {
	case CommandPower:
		if b.on == cmd.On {
			return nil, nil
		}
		b.on = cmd.On
		action := abode.ActionOff
		if cmd.On {
			action = abode.ActionOn
		}
		return bulbCall("", target, abode.BulbAction{Action: action}), nil

	case CommandBrightness:
		b.brightness = brightnessFromFloat(cmd.Value)
		pct := b.brightness
		return bulbCall(id+keyLevel, target, abode.BulbAction{
			Action:     abode.ActionSetPercent,
			Percentage: &pct,
		}), nil

	case CommandHue, CommandSaturation:
		if cmd.Type == CommandHue {
			b.hue = cmd.Value
		} else {
			b.saturation = cmd.Value
		}
		hue, sat := b.hue, b.saturation
		return bulbCall(id+keyColor, target, abode.BulbAction{
			Action:     abode.ActionSetColor,
			Hue:        &hue,
			Saturation: &sat,
		}), nil

	case CommandColorTemperature:
		b.mired = cmd.targetMired()
		mired := b.mired
		return bulbCall(id+keyTemp, target, abode.BulbAction{
			Action:           abode.ActionSetColorTemperature,
			ColorTemperature: &mired,
		}), nil

	default:
		return nil, unsupportedCommand(b.kind, cmd)
	}
}

func bulbCall(key, target string, action abode.BulbAction) *controlCall {
	return &controlCall{
		key: key,
		send: func(ctx context.Context, c Controller) error {
			return c.ControlBulb(ctx, target, action)
		},
	}
}
