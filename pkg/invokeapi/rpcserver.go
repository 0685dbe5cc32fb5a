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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"glue-job-trigger/pkg/messaging"
)

const (
	// Consumer prefetch/QoS. This bounds the number of in-flight rpcHandler
	// goroutines, as deliveries are explicitly acknowledged only after the
	// reply has been sent.
	rpcPrefetch = 10
)

var errDeliveriesClosed = errors.New("delivery channel closed")

// replyPublisher is the subset of *amqp.Channel used to send RPC replies.
type replyPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string,
		mandatory, immediate bool, msg amqp.Publishing) error
}

// NewRPCServer serves invocations using the AMQP-RPC pattern
// https://www.rabbitmq.com/tutorials/tutorial-six-go.html
// The function name maps to a queue that is declared and consumed from, and
// messages on that queue are invocation requests. Clients must set the
// reply_to and correlation_id properties so the response can be routed back
// and associated with the original request.
//
// An empty uri disables the RPCServer. Losing the broker connection is
// fatal and exits the process.
func NewRPCServer(uri string, name string, invoker Invoker) *InvokeAPIServer {
	srv := &InvokeAPIServer{
		close: func() {}, // NOOP default implementation
	}

	if uri == "" {
		slog.Warn("No Broker Connection URI Set, RPCServer Has Been Disabled")
		return srv
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})

	// Concrete close implementation cancels the base context and waits for
	// in-flight invocations to reply.
	srv.close = func() {
		invoker.Close() // Cleanly close the invoker implementation
		cancel()
		<-stopped
	}

	go func() {
		defer close(stopped)
		err := serveRPC(ctx, uri, name, invoker)
		if err != nil && ctx.Err() == nil {
			slog.Info("Exiting:", slog.String("message", "RPCServer failed"),
				slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("RPCServer Stopped")
	}()

	return srv
}

// serveRPC consumes invocation requests until ctx is cancelled or the broker
// connection is lost. Separate connections are used for consuming requests
// and publishing replies so TCP pushback on publishing can't throttle the
// consumer.
func serveRPC(ctx context.Context, uri string, name string, invoker Invoker) error {
	cConnection, err := messaging.Dial(ctx, uri, "RPC Consumer Connection")
	if err != nil {
		return fmt.Errorf("RPC Consumer Connection failed to connect to AMQP broker: %w", err)
	}
	defer cConnection.Close()

	pConnection, err := messaging.Dial(ctx, uri, "RPC Producer Connection")
	if err != nil {
		return fmt.Errorf("RPC Producer Connection failed to connect to AMQP broker: %w", err)
	}
	defer pConnection.Close()

	cChannel, err := cConnection.Channel()
	if err != nil {
		return fmt.Errorf("open RPC consumer channel: %w", err)
	}
	defer cChannel.Close()

	pChannel, err := pConnection.Channel()
	if err != nil {
		return fmt.Errorf("open RPC producer channel: %w", err)
	}
	defer pChannel.Close()

	queue, err := cChannel.QueueDeclare(
		name,  // Queue named after the function
		false, // durable
		true,  // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare RPC queue %s: %w", name, err)
	}

	if err := cChannel.Qos(rpcPrefetch, 0, false); err != nil {
		return fmt.Errorf("set RPC consumer QoS: %w", err)
	}

	deliveries, err := cChannel.ConsumeWithContext(
		ctx,
		queue.Name,
		"",    // broker generated consumer tag
		false, // explicit acknowledgement, see rpcPrefetch
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume RPC queue %s: %w", name, err)
	}

	cCloseNotify := cConnection.NotifyClose(make(chan *amqp.Error, 1))
	pCloseNotify := pConnection.NotifyClose(make(chan *amqp.Error, 1))

	// Runs before the deferred Close calls above, so in-flight handlers can
	// still publish their replies and acknowledge.
	var wg sync.WaitGroup
	defer wg.Wait()

	slog.Info("RPCServer listening", slog.String("queue", queue.Name))
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errDeliveriesClosed
			}
			// Handler launched as goroutine to enable concurrent requests.
			wg.Add(1)
			go func() {
				defer wg.Done()
				rpcHandler(ctx, pChannel, name, invoker, d)
			}()
		case err := <-cCloseNotify:
			return fmt.Errorf("RPC Consumer Connection to AMQP broker was closed: %v", err)
		case err := <-pCloseNotify:
			return fmt.Errorf("RPC Producer Connection to AMQP broker was closed: %v", err)
		case <-ctx.Done(): // Exit main loop when cancel function is called.
			return nil
		}
	}
}

// replyPublishing builds the RPC reply for the request d. The reply is
// published to the default exchange with d.ReplyTo as the routing key.
func replyPublishing(d amqp.Delivery, body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationId,
		Timestamp:     time.Now(),
		Body:          body,
	}
}

// rpcHandler invokes the function with the request d and publishes the
// response to the default exchange, routed by d.ReplyTo. The request is
// acknowledged whether or not a reply could be sent.
func rpcHandler(ctx context.Context, reply replyPublisher, name string,
	invoker Invoker, d amqp.Delivery) {

	response := invoker.invoke(ctx, name, d.CorrelationId, d.Body)

	if d.ReplyTo == "" {
		slog.Warn("RPCServer request has no reply_to, dropping response",
			slog.String("correlation_id", d.CorrelationId))
	} else {
		// Publish with a fresh context, ctx may already be cancelled during
		// shutdown and the reply should still go out.
		pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := reply.PublishWithContext(pctx, "", d.ReplyTo, false, false,
			replyPublishing(d, response))
		if err != nil {
			slog.Warn("RPCServer failed to publish reply",
				slog.String("correlation_id", d.CorrelationId),
				slog.Any("error", err))
		}
	}

	if err := d.Ack(false); err != nil {
		slog.Warn("RPCServer failed to acknowledge request",
			slog.String("correlation_id", d.CorrelationId),
			slog.Any("error", err))
	}
}
