// Package homekit exposes Abode devices as HomeKit accessories.
//
// It is built on github.com/brutella/hap. Every supported device becomes one
// accessory behind a single bridge accessory:
//
//	switch      -> Switch (On)
//	dimmer      -> Lightbulb (On, Brightness)
//	light_bulb  -> Lightbulb (On, Brightness, Hue, Saturation, ColorTemperature)
//	hue         -> same as light_bulb
//
// Writes from the Home app go through Controller.ApplyLocalCommand. A failed
// write is returned to hap, which reports the accessory as not responding.
// Refreshed device state is pushed back with SetValue.
//
// hap cannot add accessories to a running server, so Register is only valid
// before Serve. Pairing data is kept in a file store under StoragePath.
package homekit
