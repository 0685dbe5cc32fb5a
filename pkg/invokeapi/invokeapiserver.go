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

package invokeapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	// Chose chi over github.com/gorilla/mux as it seems the more active project
	// https://pkg.go.dev/github.com/go-chi/chi/v5
	"github.com/go-chi/chi/v5"
)

type InvokeAPIServer struct {
	close func()
}

// functionMatches reports whether the FunctionName path parameter of an
// Invoke request refers to function. AWS accepts the bare name, a
// name:qualifier pair or a full or partial function ARN.
func functionMatches(requested string, function string) bool {
	if i := strings.LastIndex(requested, ":function:"); i >= 0 {
		requested = requested[i+len(":function:"):]
	}
	if i := strings.Index(requested, ":"); i >= 0 {
		requested = requested[:i] // Drop any version or alias qualifier
	}
	return requested == function
}

// notFound writes the error an AWS SDK client expects when the named function
// doesn't exist.
func notFound(w http.ResponseWriter, name string) {
	body, _ := json.Marshal(map[string]string{
		"Type":    "User",
		"Message": "Function not found: " + name,
	})
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Amzn-Errortype", "ResourceNotFoundException")
	w.WriteHeader(http.StatusNotFound)
	w.Write(body)
}

// newRouter creates the AWS Lambda Invoke API routes for function.
// https://docs.aws.amazon.com/lambda/latest/dg/API_Invoke.html
// The handler gets the function name from the invoke URI and the
// correlationID from the HTTP headers, then reads the body into a byte slice
// and delegates to the Invoker, which is agnostic of the trigger, so the same
// invoke() serves HTTP and AMQP-RPC invocations.
func newRouter(function string, version string, invoker Invoker) http.Handler {
	invocations := func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "function") // Get function name from Invoke URI
		if !functionMatches(name, function) {
			slog.Info("InvokeAPI unknown function", slog.String("function", name))
			notFound(w, name)
			return
		}

		// Use Invocation ID as the correlationID if set, invoke generates
		// one otherwise.
		correlationID := r.Header.Get("Amz-Sdk-Invocation-Id")

		body, err := io.ReadAll(r.Body)
		if err != nil {
			slog.Error("InvokeAPI failed to read invoke body", slog.Any("error", err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		response := invoker.invoke(r.Context(), function, correlationID, body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Amz-Executed-Version", version)
		w.Write(response)
	}

	router := chi.NewRouter()
	router.Post("/2015-03-31/functions/{function}/invocations", invocations)
	return router
}

func NewInvokeAPIServer(uri string, function string, version string,
	invoker Invoker) *InvokeAPIServer {

	srv := &InvokeAPIServer{
		close: func() {}, // NOOP default implementation
	}

	invokeServer := &http.Server{
		Addr:              uri, // Default is 0.0.0.0:8080
		Handler:           newRouter(function, version, invoker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Concrete close implementation cleanly calls http.Server.Shutdown()
	srv.close = func() {
		invoker.Close() // Cleanly close the invoker implementation
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := invokeServer.Shutdown(ctx); err != nil {
			// Error from closing listeners, or context timeout:
			slog.Warn("InvokeAPI Shutdown", slog.Any("error", err))
		}
	}

	go func() {
		slog.Info("InvokeAPI listening", slog.String("address", uri))
		if err := invokeServer.ListenAndServe(); err != nil {
			if err == http.ErrServerClosed {
				// ErrServerClosed is caused by Shutdown so wait for other
				// goroutines to cleanly exit.
				runtime.Goexit()
			}
			// For other errors, e.g. port in use, terminate immediately
			slog.Error("InvokeAPI ListenAndServe", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	return srv
}

// Cleanly close the InvokeAPIServer. Delegates to a concrete implementation
// that is assigned by the implementation specific factory method.
func (srv *InvokeAPIServer) Close() {
	srv.close()
}
