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

package logging

import (
	"context"
	"io"
	"log/slog"
	"runtime"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SlogZapHandler is a slog.Handler with a go.uber.org/zap JSON back end.
// go.uber.org/zap/exp/zapslog exists, but it reports the caller of the
// handler rather than of the slog call, so the caller is taken from the
// slog.Record PC here instead.
type SlogZapHandler struct {
	Logger *zap.Logger
	level  slog.Level
	attrs  []slog.Attr
	prefix string // Dotted group prefix applied to attr keys
}

func newZapLogger(w io.Writer, level zapcore.Level) *zap.Logger {
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "@timestamp",
		LevelKey:       "level",
		NameKey:        "logger_name",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core)
}

func slogToZapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zap.DebugLevel
	case l <= slog.LevelInfo:
		return zap.InfoLevel
	case l <= slog.LevelWarn:
		return zap.WarnLevel
	default:
		return zap.ErrorLevel
	}
}

func NewSlogZapHandler(w io.Writer, l slog.Level) *SlogZapHandler {
	return &SlogZapHandler{Logger: newZapLogger(w, slogToZapLevel(l)), level: l}
}

func (h *SlogZapHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

func (h *SlogZapHandler) Handle(_ context.Context, r slog.Record) error {
	ce := h.Logger.Check(slogToZapLevel(r.Level), r.Message)
	if ce == nil {
		return nil
	}
	ce.Time = r.Time

	if r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		frame, _ := frames.Next()
		ce.Caller = zapcore.EntryCaller{
			Defined: true,
			PC:      frame.PC,
			File:    frame.File,
			Line:    frame.Line,
		}
	}

	fields := make([]zap.Field, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		fields = append(fields, zapField(a))
	}
	r.Attrs(func(a slog.Attr) bool {
		a.Key = h.prefix + a.Key
		fields = append(fields, zapField(a))
		return true
	})

	ce.Write(fields...)
	return nil
}

func zapField(a slog.Attr) zap.Field {
	return zap.Any(a.Key, a.Value.Resolve().Any())
}

// WithAttrs returns a copy of h with attrs appended. The attrs slice is
// cloned so that loggers derived from the same parent don't share it.
func (h *SlogZapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *SlogZapHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}
