// Package logging provides structured logging configuration for netpanel.
//
// This package wraps log/slog so every component logs the same way. Loggers can
// write to stderr, to a size-rotated file (gopkg.in/natefinch/lumberjack.v2), or
// to both.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	    File:   "logs/netpanel.log",
//	})
//	logger.Warn("body fetch failed", "entry_id", id, "error", err)
//
// # Integration
//
// Components accept a *slog.Logger in their constructor. If nil is passed, they
// fall back to logging.Nop().
package logging
