//
// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.
//

// Package logging configures the process wide log/slog default logger.
// slog is the logging front end used throughout the repository; the back end
// is one of two custom slog Handlers, a go.uber.org/zap JSON encoder for
// CloudWatch/log shipping or a plain human readable layout for local runs.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	// AWS log lines use RFC3339 timestamps with millisecond precision but
	// https://pkg.go.dev/time#pkg-constants only has RFC3339 & RFC3339Nano
	RFC3339Milli = "2006-01-02T15:04:05.999Z07"

	FormatJSON  = "json"
	FormatPlain = "plain"
)

// ParseLevel maps a LOG_LEVEL value (DEBUG, INFO, WARN/WARNING, ERROR in any
// case) to a slog.Level.
func ParseLevel(logLevel string) (slog.Level, error) {
	level := strings.ToUpper(strings.TrimSpace(logLevel))
	if level == "WARNING" {
		level = "WARN"
	}

	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("invalid log level %q, valid levels are "+
			"DEBUG, INFO, WARN, ERROR", logLevel)
	}
	return l, nil
}

// NewHandler returns the slog.Handler for the given format writing to w.
// Unknown formats fall back to JSON, the format CloudWatch handles best.
func NewHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	if strings.EqualFold(format, FormatPlain) {
		return NewSlogPlainHandler(w, level)
	}
	return NewSlogZapHandler(w, level)
}

// Configure sets the default slog logger. It needs to be called very early
// during startup so that logs emitted during initialisation are formatted
// consistently. app is added to every record and rendered as "(app)" by the
// plain handler.
func Configure(app string, logLevel string, format string) error {
	level, err := ParseLevel(logLevel)
	if err != nil {
		return err
	}

	logger := slog.New(NewHandler(os.Stderr, format, level))
	if app != "" {
		logger = logger.With(slog.String("app", app))
	}
	slog.SetDefault(logger)
	return nil
}
