// Package device maps Abode device records onto typed device models and
// reconciles local commands with remote updates.
//
// # Models
//
// Each supported device class has its own Model: Switch, Dimmer and Bulb.
// A model is built from the first record seen for a device and re-derived
// from every later record. Bulbs also carry local target state (brightness,
// hue, saturation, colour temperature) because the vendor reports some of it
// lossily.
//
// # Reconciliation
//
// Reconciler.ApplyLocalCommand records the device id in the last-updated
// Marker immediately before the control call goes out. When the realtime
// channel then reports an update for that same id, OnRemoteUpdate treats it
// as an echo and skips the re-fetch. Updates for any other device trigger a
// fetch, a model refresh and a DeviceRefreshed event.
//
// Bulb brightness and colour writes go through a Debouncer so a drag in the
// Home app collapses into one call carrying the latest value.
//
// # Numeric policy
//
//   - brightness is clamped to [0, 100]
//   - colour temperature is held in mireds and clamped to [153, 500]
//   - a non-finite or non-positive Kelvin value falls back to the bulb's
//     maximum mired value
package device
