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

// Provides a local runner for the Glue job trigger.
//
// The runner hosts the same handler as the glue-trigger Lambda in-process and
// exposes it through the AWS Lambda Invoke API:
// https://docs.aws.amazon.com/lambda/latest/dg/API_Invoke.html
// so that it can be invoked with curl or an AWS SDK pointed at the runner,
// for example:
//
//	curl -XPOST "http://localhost:8080/2015-03-31/functions/glue-trigger/invocations" -d '{}'
//
// If AMQP_URI is set the handler is also available via AMQP-RPC on a queue
// named after AWS_LAMBDA_FUNCTION_NAME.
// https://www.rabbitmq.com/tutorials/tutorial-six-go.html
//
// GLUE_REGION and GLUE_ENDPOINT_URL override the region and endpoint of the
// Glue client, e.g. GLUE_ENDPOINT_URL=http://localhost:4566 for LocalStack.

package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"glue-job-trigger/pkg/config/env"
	"glue-job-trigger/pkg/config/server"
	"glue-job-trigger/pkg/gluetrigger"
	"glue-job-trigger/pkg/invokeapi"
	"glue-job-trigger/pkg/logging"
	"glue-job-trigger/pkg/process"
)

func main() {
	err := logging.Configure(
		"glue-trigger-server",
		env.Getenv("LOG_LEVEL", "INFO"),
		env.Getenv("LOG_FORMAT", logging.FormatPlain),
	)
	if err != nil {
		slog.Error("Failed to configure logging", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := server.GetConfig()
	slog.Info("FunctionName", slog.String("name", cfg.FunctionName))
	slog.Info("AWS_LAMBDA_FUNCTION_TIMEOUT", slog.Int("seconds", cfg.Timeout))

	sh := process.NewSignalHandler()

	trigger := gluetrigger.NewJobTrigger(
		gluetrigger.NewClientFactory(gluetrigger.ClientConfig{
			Region:   cfg.GlueRegion,
			Endpoint: cfg.GlueEndpoint,
		}),
	)
	invoker := invokeapi.NewLocalInvoker(lambda.NewHandler(trigger.Handle), cfg)

	// Run InvokeAPIServer in a goroutine and cleanly stop on exit.
	iapi := invokeapi.NewInvokeAPIServer(
		cfg.InvokeAPIServerURI,
		cfg.FunctionName,
		cfg.Version,
		invoker,
	)
	defer iapi.Close()

	// Run AMQP RPCServer in a goroutine and cleanly stop on exit.
	rpc := invokeapi.NewRPCServer(cfg.RPCServerURI, cfg.FunctionName, invoker)
	defer rpc.Close()

	// Handle signals, blocking until exit
	sh.HandleSignals()
}
