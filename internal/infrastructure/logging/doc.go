// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("listener started", zap.String("addr", addr))
//	logger.Error("route handler failed", zap.Error(err))
package logging
