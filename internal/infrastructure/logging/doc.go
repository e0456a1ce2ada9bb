// Package logging provides structured logging for the Abode bridge.
//
// It wraps log/slog so every component logs with the same handler, level
// and default fields (service, version).
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	auth := logger.Component("abode")
//	auth.Info("session renewed")
//
// The returned *Logger satisfies the small Logger interfaces declared by
// the abode, device and platform packages.
//
// Never log the Abode password, session cookie, API key or OAuth token.
package logging
