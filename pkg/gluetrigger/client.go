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
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/glue"
)

// StartJobRunAPI is the subset of *glue.Client used by JobTrigger, narrowed
// so tests can substitute a fake.
type StartJobRunAPI interface {
	StartJobRun(
		ctx context.Context,
		params *glue.StartJobRunInput,
		optFns ...func(*glue.Options),
	) (*glue.StartJobRunOutput, error)
}

// ClientFactory acquires a Glue client. JobTrigger calls it once per
// invocation rather than caching a process wide client.
type ClientFactory func(ctx context.Context) (StartJobRunAPI, error)

// ClientConfig optionally overrides what the AWS SDK would otherwise resolve
// from the environment. The zero value leaves region, credentials and
// endpoint entirely to the SDK default chain, which is what the deployed
// Lambda uses.
type ClientConfig struct {
	Region   string // e.g. eu-west-1
	Endpoint string // e.g. http://localhost:4566 for LocalStack
}

// NewClientFactory returns a ClientFactory creating *glue.Client instances
// from config.LoadDefaultConfig plus any overrides in cfg. Additional
// LoadOptions are applied after the overrides.
//
// The clients never retry. StartJobRun isn't idempotent, so a throttled or
// 5xx attempt that Glue actually accepted would otherwise start a second run.
func NewClientFactory(
	cfg ClientConfig,
	loadOpts ...func(*config.LoadOptions) error,
) ClientFactory {
	return func(ctx context.Context) (StartJobRunAPI, error) {
		opts := []func(*config.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}
		opts = append(opts, loadOpts...)

		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}

		return glue.NewFromConfig(awsCfg, func(o *glue.Options) {
			o.Retryer = aws.NopRetryer{}
			o.RetryMaxAttempts = 1 // Overrides AWS_MAX_ATTEMPTS
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		}), nil
	}
}
