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

// Package messaging dials AMQP 0.9.1 brokers (RabbitMQ) using
// github.com/rabbitmq/amqp091-go.
//
// The supported URI scheme is based on the Pika Python RabbitMQ scheme:
// https://pika.readthedocs.io/en/stable/examples/using_urlparameters.html
// and supports heartbeat, connection_attempts and retry_delay query string
// values, for example:
// amqp://localhost:5672?connection_attempts=20&retry_delay=10&heartbeat=0
// so that a runner started before its broker keeps trying to connect.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultHeartbeat          = 10 * time.Second
	defaultConnectionAttempts = 1
	defaultRetryDelay         = 2 * time.Second
	defaultLocale             = "en_US"
)

// ErrUnsupported is returned when the URI specifies a protocol that is not
// supported. Currently only AMQP 0.9.1 is supported.
type ErrUnsupported string

func (e ErrUnsupported) Error() string {
	return "unsupported messaging protocol: " + string(e)
}

var errConnectionCancelled = errors.New("connection has been cancelled")

// BrokerURI is a parsed broker URI. URI has the Pika specific query
// parameters removed and is what is passed to amqp.DialConfig.
type BrokerURI struct {
	URI                string
	Redacted           string // For logging
	Heartbeat          time.Duration
	ConnectionAttempts int
	RetryDelay         time.Duration
}

// seconds parses a Pika style seconds value such as "10" or "0.5".
func seconds(value string) (time.Duration, error) {
	return time.ParseDuration(value + "s")
}

// ParseBrokerURI validates an amqp or amqps URI and extracts its Pika style
// connection parameters.
func ParseBrokerURI(uri string) (BrokerURI, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return BrokerURI{}, err
	}
	if !strings.HasPrefix(u.Scheme, "amqp") { // amqp or amqps
		return BrokerURI{}, ErrUnsupported(u.Scheme)
	}

	b := BrokerURI{
		Heartbeat:          defaultHeartbeat,
		ConnectionAttempts: defaultConnectionAttempts,
		RetryDelay:         defaultRetryDelay,
	}

	params := u.Query()
	if hb := params.Get("heartbeat"); hb != "" {
		if heartbeat, err := seconds(hb); err == nil {
			b.Heartbeat = heartbeat
		}
	}
	if ca := params.Get("connection_attempts"); ca != "" {
		if value, err := strconv.ParseFloat(ca, 64); err == nil && value >= 1 {
			b.ConnectionAttempts = int(value)
		}
	}
	if rd := params.Get("retry_delay"); rd != "" {
		if retryDelay, err := seconds(rd); err == nil {
			b.RetryDelay = retryDelay
		}
	}

	params.Del("heartbeat")
	params.Del("connection_attempts")
	params.Del("retry_delay")
	u.RawQuery = params.Encode()

	b.URI = u.String()
	b.Redacted = u.Redacted()
	return b, nil
}

// Dial opens a connection to the broker, making up to ConnectionAttempts
// attempts RetryDelay apart. The wait between attempts is cancellable via
// ctx. name is only used to make log messages more meaningful.
func Dial(ctx context.Context, uri string, name string) (*amqp.Connection, error) {
	b, err := ParseBrokerURI(uri)
	if err != nil {
		return nil, err
	}
	slog.Info("Creating connection",
		slog.String("name", name), slog.String("url", b.Redacted))

	for i := 0; ; i++ {
		if i == 0 {
			slog.Info("Opening connection", slog.String("name", name))
		} else {
			slog.Info("Opening connection", slog.String("name", name), slog.Int("retry", i))
		}

		// https://pkg.go.dev/github.com/rabbitmq/amqp091-go#DialConfig
		conn, err := amqp.DialConfig(b.URI, amqp.Config{
			Heartbeat: b.Heartbeat,
			Locale:    defaultLocale,
		})
		if err == nil {
			slog.Info("Connection established", slog.String("name", name))
			return conn, nil
		}

		if i+1 >= b.ConnectionAttempts {
			slog.Info("Connection failed", slog.String("name", name), slog.Any("error", err))
			return nil, err
		}

		// Cancellable Sleep, equivalent to time.Sleep(b.RetryDelay)
		select {
		case <-time.After(b.RetryDelay):
		case <-ctx.Done():
			return nil, errConnectionCancelled
		}
	}
}
