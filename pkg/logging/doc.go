// Package logging provides subsystem-tagged structured logging for jarvis,
// built on the standard log/slog package.
//
// # Usage
//
//	logging.Init(logging.Options{Level: logging.LevelInfo, Format: logging.FormatJSON})
//
//	logging.Info("Bootstrap", "Listening on %s", addr)
//	logging.Debug("OAuth", "Cache hit for user=%s", logging.TruncateID(userID))
//	logging.Error("OAuth", err, "Token refresh failed")
//
// Every entry carries a "subsystem" attribute. Error entries carry an "error"
// attribute. Session and user identifiers should pass through TruncateID
// before being logged; token values must never be logged at all.
//
// Init also installs the handler as the controller-runtime logger so the
// Kubernetes integration store logs through the same pipeline.
package logging
