// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"log/slog"
)

// NewLogger builds the stderr logger. level is one of debug, info,
// warn, error; format is text or json. verbose lowers the level to
// debug regardless of level.
func NewLogger(w io.Writer, level, format string, verbose bool) (*slog.Logger, error) {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	if verbose {
		parsed = slog.LevelDebug
	}

	options := &slog.HandlerOptions{Level: parsed}
	var handler slog.Handler
	switch format {
	case "", "text":
		handler = slog.NewTextHandler(w, options)
	case "json":
		handler = slog.NewJSONHandler(w, options)
	default:
		return nil, fmt.Errorf("log format %q: want text or json", format)
	}
	return slog.New(handler), nil
}
