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

// Package env wraps os.LookupEnv with typed fallbacks. All configuration in
// this repository is supplied through environment variables, as is usual for
// Lambda functions, and these helpers keep the parsing rules in one place.
package env

import (
	"os"
	"strconv"
	"strings"
)

// Getenv returns the value of the environment variable named by key, or
// fallback if it is unset. An empty but set variable returns "", which is
// why os.LookupEnv is used rather than os.Getenv.
func Getenv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetenvInt returns the value of key as an int, or fallback if the variable
// is unset or not numeric. Float strings are truncated, so "10.5" yields 10.
func GetenvInt(key string, fallback int) int {
	if stringValue, ok := os.LookupEnv(key); ok {
		if value, err := strconv.ParseFloat(stringValue, 64); err == nil {
			return int(value)
		}
	}
	return fallback
}

// GetenvBool returns true when key is set to TRUE (any case), false when it
// is set to anything else and fallback when it is unset.
func GetenvBool(key string, fallback bool) bool {
	if stringValue, ok := os.LookupEnv(key); ok {
		return strings.EqualFold(strings.TrimSpace(stringValue), "TRUE")
	}
	return fallback
}
