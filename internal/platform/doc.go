// Package platform is the host-facing facade of the bridge core.
//
// Init signs in to Abode, opens the realtime channel, starts session
// renewal and discovers devices, registering a model for each supported
// device with every attached Host. Afterwards the platform routes events:
//
//   - device-updated notifications go to the reconciler, which re-fetches
//     the device unless the update echoes a local command
//   - refreshed device state is pushed to every Host
//   - disconnects arm a watchdog that logs a communication failure if the
//     channel is still down when it fires
//
// Hosts call ApplyLocalCommand when the user changes a device.
package platform
