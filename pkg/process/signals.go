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

package process

import (
	"log/slog"
	"os"
	"os/signal"
	"time"

	// According to https://pkg.go.dev/syscall the syscall package is deprecated
	// and callers should use the corresponding package in the golang.org/x/sys
	// repository instead. See https://golang.org/s/go1.4-syscall for more info.
	syscall "golang.org/x/sys/unix"
)

// ShutdownTimeout bounds how long cleanup may take after the first
// termination signal before the process is forcibly exited.
const ShutdownTimeout = 30 * time.Second

// SignalHandler blocks the main goroutine until the process is asked to
// terminate, so that deferred Close calls in main can shut servers down
// cleanly.
type SignalHandler struct {
	sigchan chan os.Signal // Signal notification channel.
	exit    func(code int)
	timeout time.Duration
}

func NewSignalHandler() *SignalHandler {
	sh := &SignalHandler{
		// The os/signal package uses non-blocking channel sends, so the
		// channel must be buffered or signals may be missed.
		sigchan: make(chan os.Signal, 4),
		exit:    os.Exit,
		timeout: ShutdownTimeout,
	}
	// Relay incoming signals to the sh.sigchan channel.
	signal.Notify(sh.sigchan, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	return sh
}

// HandleSignals blocks until a termination signal is received and returns
// it. A second signal, or cleanup taking longer than the shutdown timeout,
// exits the process immediately.
func (sh *SignalHandler) HandleSignals() os.Signal {
	s := <-sh.sigchan // Blocks
	slog.Info("Received signal shutting down", slog.String("signal", s.String()))

	go func() {
		select {
		case s := <-sh.sigchan:
			slog.Warn("Received second signal, exiting immediately",
				slog.String("signal", s.String()))
		case <-time.After(sh.timeout):
			slog.Warn("Shutdown timed out, exiting immediately",
				slog.Duration("timeout", sh.timeout))
		}
		sh.exit(1)
	}()

	return s
}
