// Copyright 2026 The Pacwrap Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Setup installs the process-wide slog default: human-readable text on
// stderr, with record duplication into the transaction log when one is
// supplied. PACWRAP_VERBOSE=1 lowers the stderr level to Debug.
func Setup(transactionLog *TransactionLog) {
	level := slog.LevelInfo
	if os.Getenv("PACWRAP_VERBOSE") == "1" {
		level = slog.LevelDebug
	}
	stderr := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(&teeHandler{stderr: stderr, log: transactionLog}))
}

// teeHandler forwards records to the stderr text handler and mirrors
// Warn and above into the transaction log, attributed to the record's
// "container" attribute when present.
type teeHandler struct {
	stderr slog.Handler
	log    *TransactionLog
	attrs  []slog.Attr
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.stderr.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.log != nil && record.Level >= slog.LevelWarn {
		container := ""
		var parts []string
		collect := func(attr slog.Attr) bool {
			if attr.Key == "container" {
				container = attr.Value.String()
			} else {
				parts = append(parts, attr.Key+"="+attr.Value.String())
			}
			return true
		}
		for _, attr := range h.attrs {
			collect(attr)
		}
		record.Attrs(collect)

		message := record.Message
		if len(parts) > 0 {
			message += " " + strings.Join(parts, " ")
		}
		level := Warn
		if record.Level >= slog.LevelError {
			level = Error
		}
		// Transaction log failures must not fail the operation that
		// logged; the stderr handler still sees the record.
		_ = h.log.Record(level, container, "%s", message)
	}
	return h.stderr.Handle(ctx, record)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &teeHandler{stderr: h.stderr.WithAttrs(attrs), log: h.log, attrs: merged}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{stderr: h.stderr.WithGroup(name), log: h.log, attrs: h.attrs}
}
