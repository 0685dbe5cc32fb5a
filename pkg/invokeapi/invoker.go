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
)

// Invoker is used by the InvokeAPIServer and the RPCServer to abstract where
// an invocation is delegated, so the same invocation path serves REST and
// AMQP-RPC triggers.
//
// invoke takes the root Context of the trigger, the Function name, an
// optional correlation ID (invoke generates one when it is empty) and the
// invocation body. It blocks until the function responds or times out and
// returns the response body, which is either the function result or a Lambda
// error document such as {"errorMessage": "...", "errorType": "..."}.
// Callers should therefore run invoke on their own goroutine to allow
// concurrent invocations, which is already the case for HTTP handlers.
//
// Close allows Invoker implementations to be cleanly shut down. It may be
// called more than once.
type Invoker interface {
	invoke(
		rctx context.Context,
		name string,
		cid string,
		body []byte,
	) []byte
	Close()
}
