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

package gluetrigger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"
)

type glueRequest struct {
	target string
	body   []byte
}

// newGlueEndpoint serves the Glue JSON 1.1 protocol, answering every request
// with status and body, and records what it received.
func newGlueEndpoint(t *testing.T, status int, body string) (*httptest.Server, func() []glueRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []glueRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, glueRequest{target: r.Header.Get("X-Amz-Target"), body: b})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/x-amz-json-1.1")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, func() []glueRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]glueRequest{}, requests...)
	}
}

// isolateAWSEnvironment gives the SDK static credentials and stops it
// reading the developer's shared config or the instance metadata service.
func isolateAWSEnvironment(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY")
	t.Setenv("AWS_SESSION_TOKEN", "")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	t.Setenv("AWS_ENDPOINT_URL", "")
	t.Setenv("AWS_ENDPOINT_URL_GLUE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
}

func TestClientFactoryAppliesClientConfig(t *testing.T) {
	isolateAWSEnvironment(t)

	factory := NewClientFactory(ClientConfig{
		Region:   "eu-west-1",
		Endpoint: "http://localhost:4566",
	})
	api, err := factory(context.Background())
	require.NoError(t, err)

	client, ok := api.(*glue.Client)
	require.True(t, ok)
	options := client.Options()
	require.Equal(t, "eu-west-1", options.Region)
	require.Equal(t, "http://localhost:4566", aws.ToString(options.BaseEndpoint))
	require.Equal(t, 1, options.Retryer.MaxAttempts())
}

func TestClientFactoryDefaultsToAmbientConfig(t *testing.T) {
	isolateAWSEnvironment(t)
	t.Setenv("AWS_REGION", "ap-southeast-2")

	api, err := NewClientFactory(ClientConfig{})(context.Background())
	require.NoError(t, err)

	options := api.(*glue.Client).Options()
	require.Equal(t, "ap-southeast-2", options.Region)
	require.Nil(t, options.BaseEndpoint)
}

func TestHandleSendsStartJobRunRequest(t *testing.T) {
	isolateAWSEnvironment(t)
	srv, requests := newGlueEndpoint(t, http.StatusOK, `{"JobRunId":"jr_0123456789"}`)

	trigger := NewJobTrigger(
		NewClientFactory(ClientConfig{Region: "us-east-1", Endpoint: srv.URL}),
		Output(io.Discard),
	)

	response, err := trigger.Handle(context.Background(), json.RawMessage(`{"foo": "bar"}`))
	require.NoError(t, err)

	encoded, err := json.Marshal(response)
	require.NoError(t, err)
	require.JSONEq(t, expectedResponseJSON, string(encoded))

	received := requests()
	require.Len(t, received, 1)
	require.Equal(t, "AWSGlue.StartJobRun", received[0].target)
	require.JSONEq(t, `{"JobName":"glue-etl","Arguments":{}}`, string(received[0].body))
}

func TestHandleReturnsGlueServiceError(t *testing.T) {
	isolateAWSEnvironment(t)
	srv, requests := newGlueEndpoint(t, http.StatusBadRequest,
		`{"__type":"EntityNotFoundException","Message":"Failed to start job run due to missing metadata"}`)

	trigger := NewJobTrigger(
		NewClientFactory(ClientConfig{Region: "us-east-1", Endpoint: srv.URL}),
		Output(io.Discard),
	)

	response, err := trigger.Handle(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	require.Zero(t, response)

	var notFound *types.EntityNotFoundException
	require.ErrorAs(t, err, &notFound)
	require.Len(t, requests(), 1)
}

func TestHandleDoesNotRetryOnTheWire(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
		code   string
	}{
		"throttled": {
			status: http.StatusBadRequest,
			body:   `{"__type":"ThrottlingException","Message":"Rate exceeded"}`,
			code:   "ThrottlingException",
		},
		"server error": {
			status: http.StatusInternalServerError,
			body:   `{"__type":"InternalServiceException","Message":"Internal failure"}`,
			code:   "InternalServiceException",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			isolateAWSEnvironment(t)
			t.Setenv("AWS_MAX_ATTEMPTS", "5")
			srv, requests := newGlueEndpoint(t, tt.status, tt.body)

			trigger := NewJobTrigger(
				NewClientFactory(ClientConfig{Region: "us-east-1", Endpoint: srv.URL}),
				Output(io.Discard),
			)

			response, err := trigger.Handle(context.Background(), json.RawMessage(`{}`))
			require.Error(t, err)
			require.Zero(t, response)

			var apiErr smithy.APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.code, apiErr.ErrorCode())

			// A single StartJobRun reaches Glue, the SDK retryer is disabled.
			require.Len(t, requests(), 1)
		})
	}
}
