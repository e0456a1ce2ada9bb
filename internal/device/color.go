package device

import "math"

// HomeKit's legal colour temperature range in mireds.
const (
	MinHAPMired = 153
	MaxHAPMired = 500
)

// Bulb colour temperature range in Kelvin.
const (
	BulbMinKelvin = 1800
	BulbMaxKelvin = 6500
)

// KelvinToMired converts Kelvin to mireds without rounding.
func KelvinToMired(kelvin float64) float64 {
	return 1_000_000 / kelvin
}

// MiredToKelvin converts mireds to Kelvin without rounding.
func MiredToKelvin(mired float64) float64 {
	return 1_000_000 / mired
}

// bulbMinMired is ceil(1e6 / 6500) = 154.
func bulbMinMired() int {
	return int(math.Ceil(KelvinToMired(BulbMaxKelvin)))
}

// bulbMaxMired is floor(1e6 / 1800) = 555.
func bulbMaxMired() int {
	return int(math.Floor(KelvinToMired(BulbMinKelvin)))
}

// validPositive reports whether v is finite and greater than zero.
func validPositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// outboundMired converts a requested Kelvin value to the mired value sent to
// the vendor: floored and clamped to the bulb range intersected with the
// HomeKit range. Invalid input falls back to the bulb's maximum mired value.
func outboundMired(kelvin float64) int {
	if !validPositive(kelvin) {
		return min(bulbMaxMired(), MaxHAPMired)
	}
	return clampMiredToBulb(int(math.Floor(KelvinToMired(kelvin))))
}

// clampMiredToBulb clamps m to the bulb range intersected with the HomeKit range.
func clampMiredToBulb(m int) int {
	return clampInt(m, max(bulbMinMired(), MinHAPMired), min(bulbMaxMired(), MaxHAPMired))
}

// inboundMired converts a raw vendor Kelvin reading to mireds. Invalid
// readings fall back to the bulb's maximum mired value.
func inboundMired(raw float64, ok bool) int {
	if !ok || !validPositive(raw) {
		return bulbMaxMired()
	}
	return int(math.Floor(KelvinToMired(raw)))
}

// ClampMired clamps a mired value to the HomeKit range.
func ClampMired(m int) int {
	return clampInt(m, MinHAPMired, MaxHAPMired)
}

// ClampBrightness clamps a brightness percentage to [0, 100].
func ClampBrightness(v int) int {
	return clampInt(v, 0, 100)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// brightnessFromFloat rounds and clamps a raw numeric brightness.
func brightnessFromFloat(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	if math.IsInf(v, 1) {
		return 100
	}
	if math.IsInf(v, -1) {
		return 0
	}
	return ClampBrightness(int(math.Round(v)))
}
