// Package abode is the client for the Abode cloud API.
//
// It owns everything needed to stay signed in to the vendor indefinitely and
// to learn about device changes as they happen:
//
//   - Session holds the credentials and the three auth fields (session
//     cookie, API key, OAuth bearer token) plus the per-process device
//     instance id sent at login.
//   - Client is the HTTP transport. Every call is classified into one of
//     three tiers by path and rejected before it reaches the network if the
//     session fields that tier needs are missing.
//   - Authenticator signs in, renews the session on a fixed interval and
//     falls back to a full sign-in when renewal fails.
//   - Socket is the realtime push channel (socket.io over websocket). It
//     publishes connected, disconnected and device-updated events on an
//     events.Bus.
//
// # Request tiers
//
//	/api/auth2/*     cookie attached, no further checks
//	/api/v1/session  cookie + ABODE-API-KEY required
//	everything else  cookie + ABODE-API-KEY + Authorization: Bearer required
//
// # Security
//
// Never log the password, the session value, the API key or the OAuth token.
package abode
