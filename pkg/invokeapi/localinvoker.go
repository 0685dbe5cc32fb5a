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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambda/messages"
	"github.com/aws/aws-lambda-go/lambdacontext"

	// https://pkg.go.dev/github.com/docker/distribution/uuid
	"github.com/docker/distribution/uuid"

	"glue-job-trigger/pkg/config/server"
	"glue-job-trigger/pkg/logging"
)

// LocalInvoker runs invocations in-process against an aws-lambda-go
// lambda.Handler, e.g. lambda.NewHandler(trigger.Handle), giving each one the
// configured function timeout and a lambdacontext carrying its request ID.
type LocalInvoker struct {
	handler   lambda.Handler
	ctx       context.Context // Cancelled by Close
	cancel    context.CancelFunc
	closeOnce sync.Once
	version   string
	timeout   int
	memory    int
	report    bool
}

// NewLocalInvoker returns a LocalInvoker for handler using the function
// version, timeout, memory size and report settings from cfg.
func NewLocalInvoker(handler lambda.Handler, cfg *server.Config) *LocalInvoker {
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalInvoker{
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		version: cfg.Version,
		timeout: cfg.Timeout,
		memory:  cfg.Memory,
		report:  cfg.Report,
	}
}

// Helper function to render timeout message for logging and response message.
func timeoutMessage(id string, timeout float64) string {
	return fmt.Sprintf("%s Task timed out after %.2f seconds", id, timeout)
}

// errorResponse renders err as a Lambda error document. The errorType is the
// error's Go type name, which is what the Lambda Go runtime reports for
// unhandled errors.
func errorResponse(err error) []byte {
	var invokeErr *messages.InvokeResponse_Error
	if !errors.As(err, &invokeErr) {
		invokeErr = &messages.InvokeResponse_Error{
			Message: err.Error(),
			Type:    errorType(err),
		}
	}
	response, _ := json.Marshal(invokeErr)
	return response
}

func errorType(err error) string {
	t := reflect.TypeOf(err)
	if t.Kind() == reflect.Ptr {
		return t.Elem().Name()
	}
	return t.Name()
}

func timeoutResponse(message string) []byte {
	message = fmt.Sprintf("%s %s", time.Now().Format(logging.RFC3339Milli), message)
	response, _ := json.Marshal(messages.InvokeResponse_Error{
		Message: message,
		Type:    "Sandbox.Timedout",
	})
	return response
}

// Compute the duration between the supplied start time and current time,
// clamping the computed duration to the supplied timeout if that is less than
// the computed duration, finally convert from ns to ms
func durationMS(start time.Time, timeout int) float64 {
	return math.Min(float64(time.Since(start).Nanoseconds()),
		float64(timeout*1000000000)) / float64(time.Millisecond)
}

func (inv *LocalInvoker) invoke(rctx context.Context, name string,
	correlationID string, body []byte) []byte {

	invokeStart := time.Now()

	if inv.ctx.Err() != nil {
		return errorResponse(errInvokerClosed)
	}

	// Use supplied correlationID if set, otherwise generate one.
	if correlationID == "" {
		correlationID = uuid.Generate().String()
	}

	// An Invoke API request may have no payload at all, which would fail
	// to unmarshal as a handler event, so treat it as an empty JSON object.
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	slog.Debug("Invoke",
		slog.String("function", name),
		slog.String("request_id", correlationID),
		slog.String("body", string(body)),
	)

	timeout := time.Duration(inv.timeout) * time.Second
	ctx, cancel := context.WithTimeout(rctx, timeout)
	defer cancel()
	// Close cancels the handler's context too, so in-flight AWS calls abort.
	stop := context.AfterFunc(inv.ctx, cancel)
	defer stop()

	ctx = lambdacontext.NewContext(ctx, &lambdacontext.LambdaContext{
		AwsRequestID: correlationID,
	})

	if inv.report {
		fmt.Println("START RequestId: " + correlationID + " Version: " + inv.version)
	}

	type result struct {
		response []byte
		err      error
	}
	done := make(chan result, 1) // Buffered so a late handler never blocks.
	go func() {
		response, err := inv.handler.Invoke(ctx, body)
		done <- result{response, err}
	}()

	var response []byte
	select {
	case r := <-done:
		if r.err != nil && inv.ctx.Err() != nil {
			// The handler failed because Close cancelled it.
			response = errorResponse(errInvokerClosed)
		} else if r.err != nil {
			slog.Info("Invocation failed",
				slog.String("request_id", correlationID),
				slog.Any("error", r.err),
			)
			response = errorResponse(r.err)
		} else {
			response = r.response
		}
	case <-ctx.Done():
		// Cancellation could be due to Close or a closed client connection,
		// so only report a timeout if the deadline was actually exceeded.
		switch {
		case inv.ctx.Err() != nil:
			response = errorResponse(errInvokerClosed)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			message := timeoutMessage(correlationID, float64(inv.timeout))
			slog.Info(message)
			response = timeoutResponse(message)
		default:
			response = errorResponse(ctx.Err())
		}
	}

	if inv.report {
		duration := durationMS(invokeStart, inv.timeout)
		fmt.Printf(
			"END RequestId: %s\n"+
				"REPORT RequestId: %s\tDuration: %.2f ms\t"+
				"Billed Duration: %.f ms\t"+
				"Memory Size: %d MB\tMax Memory Used: %d MB\t\n",
			correlationID, correlationID, duration,
			math.Ceil(duration), inv.memory, inv.memory)
	}
	return response
}

var errInvokerClosed = errors.New("invoker has been closed")

// Close cancels the context of any in-flight invocations, which return an
// error response. Subsequent invocations fail immediately.
func (inv *LocalInvoker) Close() {
	inv.closeOnce.Do(inv.cancel)
}
