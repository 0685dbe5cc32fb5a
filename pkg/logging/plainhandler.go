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
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// SlogPlainHandler is a slog.Handler rendering human readable lines:
// 2024-01-02T15:04:05.123Z [INFO] (glue-trigger) message key=value
type SlogPlainHandler struct {
	mu     *sync.Mutex // Shared by derived handlers, serialises writes to w
	w      io.Writer
	level  slog.Level
	attrs  []slog.Attr
	prefix string
}

func NewSlogPlainHandler(w io.Writer, l slog.Level) *SlogPlainHandler {
	return &SlogPlainHandler{mu: &sync.Mutex{}, w: w, level: l}
}

func (h *SlogPlainHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

func (h *SlogPlainHandler) Handle(_ context.Context, r slog.Record) error {
	b := &bytes.Buffer{}

	fmt.Fprint(b, r.Time.Format(RFC3339Milli))
	fmt.Fprintf(b, " [%s] ", strings.ToUpper(r.Level.String()))

	for _, a := range h.attrs {
		if a.Key == "app" {
			fmt.Fprintf(b, "(%s) ", a.Value.String())
		} else {
			fmt.Fprintf(b, "%s=%v ", a.Key, a.Value.Resolve().Any())
		}
	}

	b.WriteString(r.Message)

	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(b, " %s%s=%v", h.prefix, a.Key, a.Value.Resolve().Any())
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(b.Bytes())
	return err
}

func (h *SlogPlainHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if a.Key != "app" {
			a.Key = h.prefix + a.Key
		}
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *SlogPlainHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}
