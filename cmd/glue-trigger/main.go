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

// Provides the AWS Lambda entry point for the Glue job trigger.
//
// Each invocation writes a marker line to stdout, starts a run of the
// glue-etl AWS Glue job with no job arguments and returns
// {"statusCode": 200, "body": "\"Glue job successfully triggered\""}.
// Region and credentials come from the Lambda execution environment via
// the AWS SDK default configuration chain.
//
// LOG_LEVEL (default INFO) and LOG_FORMAT (json or plain, default json)
// configure the structured logs written to stderr.

package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"glue-job-trigger/pkg/config/env"
	"glue-job-trigger/pkg/gluetrigger"
	"glue-job-trigger/pkg/logging"
)

func main() {
	err := logging.Configure(
		"glue-trigger",
		env.Getenv("LOG_LEVEL", "INFO"),
		env.Getenv("LOG_FORMAT", logging.FormatJSON),
	)
	if err != nil {
		slog.Error("Failed to configure logging", slog.Any("error", err))
		os.Exit(1)
	}

	trigger := gluetrigger.NewJobTrigger(
		gluetrigger.NewClientFactory(gluetrigger.ClientConfig{}),
	)
	lambda.Start(trigger.Handle)
}
