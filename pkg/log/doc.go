// Package log provides the logging abstraction used by outqueue components.
//
// Components depend on the Logger interface only. A zerolog adapter is
// provided for real output and a no-op logger for tests and embedders that
// want silence:
//
//	logger := log.NewZerologAdapter(log.Options{Level: "info", Format: "console"})
//	logger.Warn("event too large", log.Bytes(52011), log.Int("max", 40000))
//
// Implement Logger to route queue warnings into an existing logging stack.
package log
