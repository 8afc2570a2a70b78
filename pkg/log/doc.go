// Package log provides DriftQ's structured logging facade.
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. It is backed by the standard library
// slog with text or JSON output, so handlers from the slog ecosystem can be
// layered in without touching call sites.
//
// Quick start:
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormat(log.TextFormat),
//	)
//	l = l.WithComponent("poller")
//	l.Info("claimed batch", log.Int("tasks", n))
package log
