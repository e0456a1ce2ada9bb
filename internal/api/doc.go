// Package api implements the local HTTP status and control surface of the bridge.
//
// It provides:
//   - GET /api/v1/health and /api/v1/metrics for monitoring
//   - GET /api/v1/devices and /api/v1/devices/{id} for cached device state
//   - PUT /api/v1/devices/{id}/state to issue a local command
//   - GET /api/v1/ws, a WebSocket stream of device state changes
//
// The server is also a platform host: the platform pushes every refreshed
// device state to it and the hub relays it to subscribed WebSocket clients.
//
//	server, err := api.New(deps)
//	plat.AddHost(server)
//	server.Start(ctx)
//	defer server.Close()
//
// All methods are safe for concurrent use.
package api
