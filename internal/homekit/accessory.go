package homekit

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"

	"github.com/nerrad567/abode-bridge/internal/device"
)

const (
	manufacturer = "Abode"

	// remoteSetTimeout bounds one Home app write, including the bulb
	// debounce window.
	remoteSetTimeout = 15 * time.Second
)

// Controller applies commands coming from the Home app.
// *platform.Platform satisfies it.
type Controller interface {
	ApplyLocalCommand(ctx context.Context, id string, cmd device.Command) error
}

// adapter binds one device model to its hap accessory.
type adapter struct {
	id  string
	a   *accessory.A
	ctl Controller

	on         *characteristic.On
	brightness *characteristic.Brightness
	hue        *characteristic.Hue
	saturation *characteristic.Saturation
	colorTemp  *characteristic.ColorTemperature

	miredLo, miredHi int
}

func accessoryInfo(m device.Model) accessory.Info {
	rec := m.Record()
	name := rec.Name
	if name == "" {
		name = rec.ID
	}
	return accessory.Info{
		Name:         name,
		SerialNumber: rec.ID,
		Manufacturer: manufacturer,
		Model:        m.Kind().String(),
		Firmware:     rec.Version,
	}
}

// newAdapter builds the accessory matching the model's kind.
func newAdapter(m device.Model, ctl Controller) *adapter {
	ad := &adapter{id: m.ID(), ctl: ctl}
	info := accessoryInfo(m)

	switch m.Kind() {
	case device.KindSwitch:
		sw := accessory.NewSwitch(info)
		ad.a = sw.A
		ad.on = sw.Switch.On

	default:
		lb := accessory.NewLightbulb(info)
		ad.a = lb.A
		ad.on = lb.Lightbulb.On

		ad.brightness = characteristic.NewBrightness()
		lb.Lightbulb.AddC(ad.brightness.C)

		if m.Kind().IsBulb() {
			ad.hue = characteristic.NewHue()
			lb.Lightbulb.AddC(ad.hue.C)

			ad.saturation = characteristic.NewSaturation()
			lb.Lightbulb.AddC(ad.saturation.C)

			ad.miredLo, ad.miredHi = device.MinHAPMired, device.MaxHAPMired
			if b, ok := m.(*device.Bulb); ok {
				ad.miredLo, ad.miredHi = b.MiredRange()
			}
			ad.colorTemp = characteristic.NewColorTemperature()
			ad.colorTemp.SetMinValue(ad.miredLo)
			ad.colorTemp.SetMaxValue(ad.miredHi)
			lb.Lightbulb.AddC(ad.colorTemp.C)
		}
	}

	ad.a.Id = accessoryID(m.ID())
	ad.bind()
	ad.update(m.State())
	return ad
}

func (ad *adapter) bind() {
	ad.on.OnSetRemoteValue(ad.setOn)
	if ad.brightness != nil {
		ad.brightness.OnSetRemoteValue(ad.setBrightness)
	}
	if ad.hue != nil {
		ad.hue.OnSetRemoteValue(ad.setHue)
	}
	if ad.saturation != nil {
		ad.saturation.OnSetRemoteValue(ad.setSaturation)
	}
	if ad.colorTemp != nil {
		ad.colorTemp.OnSetRemoteValue(ad.setColorTemperature)
	}
}

func (ad *adapter) apply(cmd device.Command) error {
	ctx, cancel := context.WithTimeout(context.Background(), remoteSetTimeout)
	defer cancel()
	return ad.ctl.ApplyLocalCommand(ctx, ad.id, cmd)
}

func (ad *adapter) setOn(v bool) error            { return ad.apply(device.Power(v)) }
func (ad *adapter) setBrightness(v int) error     { return ad.apply(device.Brightness(v)) }
func (ad *adapter) setHue(v float64) error        { return ad.apply(device.Hue(v)) }
func (ad *adapter) setSaturation(v float64) error { return ad.apply(device.Saturation(v)) }

func (ad *adapter) setColorTemperature(mired int) error {
	return ad.apply(device.ColorTemperatureMired(mired))
}

// update pushes state into the characteristics.
func (ad *adapter) update(st device.State) {
	ad.on.SetValue(st.On)
	if ad.brightness != nil && st.Brightness != nil {
		ad.brightness.SetValue(device.ClampBrightness(*st.Brightness))
	}
	if ad.hue != nil && st.Hue != nil {
		ad.hue.SetValue(*st.Hue)
	}
	if ad.saturation != nil && st.Saturation != nil {
		ad.saturation.SetValue(*st.Saturation)
	}
	if ad.colorTemp != nil && st.ColorTemperature != nil {
		ad.colorTemp.SetValue(clampInt(*st.ColorTemperature, ad.miredLo, ad.miredHi))
	}
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// accessoryID derives a stable accessory id from the device id so pairings
// survive restarts and discovery order changes. Ids 0 and 1 are reserved for
// unset and the bridge.
func accessoryID(deviceID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(deviceID))
	id := h.Sum64()
	if id <= 1 {
		id += 2
	}
	return id
}
