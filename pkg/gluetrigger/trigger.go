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

// Package gluetrigger provides the Lambda handler that starts a run of the
// glue-etl AWS Glue job and acknowledges the invocation.
//
// The handler is a pass-through: the invocation event and Lambda context are
// accepted but never inspected, the job is started with an empty Arguments
// map, and the fixed 200 response says nothing about the job run itself.
// A failed StartJobRun is returned as the invocation error, so the Lambda
// runtime reports it instead of the 200 response.
package gluetrigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/smithy-go"
)

const (
	// JobName is the Glue job started by every invocation.
	JobName = "glue-etl"

	// ResponseMessage is JSON encoded into the Body of every Response.
	ResponseMessage = "Glue job successfully triggered"

	// Written to stdout at the start of each invocation.
	marker = "----------------------------------"
)

// Response is the API Gateway proxy shaped acknowledgment. It serialises as
// {"statusCode":200,"body":"\"Glue job successfully triggered\""}.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// JobTrigger starts the Glue job. It holds no per-invocation state and is
// safe for concurrent use if its ClientFactory is.
type JobTrigger struct {
	newClient ClientFactory
	out       io.Writer
}

// Output redirects the invocation marker line, which defaults to os.Stdout.
func Output(w io.Writer) func(*JobTrigger) {
	return func(jt *JobTrigger) {
		jt.out = w
	}
}

// NewJobTrigger returns a JobTrigger acquiring its Glue client from newClient.
func NewJobTrigger(newClient ClientFactory, opts ...func(*JobTrigger)) *JobTrigger {
	jt := &JobTrigger{
		newClient: newClient,
		out:       os.Stdout,
	}
	for _, applyOptionTo := range opts {
		applyOptionTo(jt)
	}
	return jt
}

// Handle is the Lambda handler, suitable for lambda.Start(trigger.Handle).
// event is any JSON value and is ignored.
func (jt *JobTrigger) Handle(ctx context.Context, event json.RawMessage) (Response, error) {
	fmt.Fprintln(jt.out, marker)

	client, err := jt.newClient(ctx)
	if err != nil {
		slog.Error("Failed to create Glue client", slog.Any("error", err))
		return Response{}, fmt.Errorf("create glue client: %w", err)
	}

	slog.Debug("Starting Glue job run", slog.String("job_name", JobName))
	output, err := client.StartJobRun(ctx, &glue.StartJobRunInput{
		JobName:   aws.String(JobName),
		Arguments: map[string]string{},
	})
	if err != nil {
		attrs := []any{slog.String("job_name", JobName), slog.Any("error", err)}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			attrs = append(attrs, slog.String("error_code", apiErr.ErrorCode()))
		}
		slog.Error("Failed to start Glue job run", attrs...)
		return Response{}, fmt.Errorf("start job run %s: %w", JobName, err)
	}

	var jobRunID string
	if output != nil {
		jobRunID = aws.ToString(output.JobRunId)
	}
	slog.Info("Started Glue job run",
		slog.String("job_name", JobName),
		slog.String("job_run_id", jobRunID),
	)

	return newResponse(), nil
}

func newResponse() Response {
	// Marshalling a string cannot fail.
	body, _ := json.Marshal(ResponseMessage)
	return Response{
		StatusCode: http.StatusOK,
		Body:       string(body),
	}
}
