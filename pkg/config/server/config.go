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

package server

import (
	"glue-job-trigger/pkg/config/env"
	"net/url"
)

const (
	// https://docs.aws.amazon.com/lambda/latest/dg/API_Invoke.html
	defaultInvokeAPIHost = "0.0.0.0"
	defaultInvokeAPIPort = "8080"

	// An empty broker URI disables the AMQP-RPC server, leaving only the
	// REST Invoke API. When the runner is deployed in a container the
	// broker is unlikely to be on the container's localhost, so AMQP_URI
	// will normally be set explicitly, e.g.
	// amqp://localhost:5672?connection_attempts=20&retry_delay=10&heartbeat=0
	defaultRPCServerURI = ""

	defaultFunctionName = "glue-trigger"

	defaultPrintReports = false

	// https://docs.aws.amazon.com/lambda/latest/dg/configuration-function-common.html#configuration-timeout-console
	AWS_LAMBDA_FUNCTION_TIMEOUT_DEFAULT int = 3

	AWS_LAMBDA_FUNCTION_MEMORY_SIZE_DEFAULT int = 128

	// https://docs.aws.amazon.com/lambda/latest/dg/configuration-versions.html
	AWS_LAMBDA_FUNCTION_VERSION_DEFAULT string = "$LATEST"
)

// Config holds the settings of the local runner. The handler itself reads
// no configuration; GlueRegion and GlueEndpoint are only forwarded to the
// Glue client factory so the runner can target e.g. LocalStack.
type Config struct {
	InvokeAPIServerURI string
	RPCServerURI       string
	FunctionName       string
	Version            string
	GlueRegion         string
	GlueEndpoint       string
	Timeout            int
	Memory             int
	Report             bool
}

// Returns a populated Config instance for use by the rest of the application.
// Most configurable fields are configured via environment variables and the
// Config struct and this factory simply centralises this.
func GetConfig() *Config {
	invokeAPIHost := env.Getenv("INVOKE_API_HOST", defaultInvokeAPIHost)
	invokeAPIPort := env.Getenv("PORT", defaultInvokeAPIPort)

	amqpURI := env.Getenv("AMQP_URI", defaultRPCServerURI)
	amqpUsername := env.Getenv("AMQP_USERNAME", "")
	amqpPassword := env.Getenv("AMQP_PASSWORD", "")

	config := &Config{
		InvokeAPIServerURI: invokeAPIHost + ":" + invokeAPIPort,
		RPCServerURI:       injectAMQPCredentials(amqpURI, amqpUsername, amqpPassword),
		FunctionName:       env.Getenv("AWS_LAMBDA_FUNCTION_NAME", defaultFunctionName),
		Version: env.Getenv(
			"AWS_LAMBDA_FUNCTION_VERSION",
			AWS_LAMBDA_FUNCTION_VERSION_DEFAULT,
		),
		GlueRegion:   env.Getenv("GLUE_REGION", ""),
		GlueEndpoint: env.Getenv("GLUE_ENDPOINT_URL", ""),
		Timeout: env.GetenvInt(
			"AWS_LAMBDA_FUNCTION_TIMEOUT",
			AWS_LAMBDA_FUNCTION_TIMEOUT_DEFAULT,
		),
		Memory: env.GetenvInt(
			"AWS_LAMBDA_FUNCTION_MEMORY_SIZE",
			AWS_LAMBDA_FUNCTION_MEMORY_SIZE_DEFAULT,
		),
		Report: env.GetenvBool("PRINT_REPORTS", defaultPrintReports),
	}

	if config.Timeout <= 0 {
		config.Timeout = AWS_LAMBDA_FUNCTION_TIMEOUT_DEFAULT
	}

	return config
}

// injectAMQPCredentials adds username and password to rawURI when both are
// supplied and the URI has no user info of its own. Unparseable URIs are
// returned unchanged and left for the broker dial to reject.
func injectAMQPCredentials(rawURI, username, password string) string {
	if rawURI == "" || username == "" || password == "" {
		return rawURI
	}

	parsed, err := url.Parse(rawURI)
	if err != nil || parsed.User != nil {
		return rawURI
	}

	parsed.User = url.UserPassword(username, password)
	return parsed.String()
}
