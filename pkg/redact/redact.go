// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package redact provides utilities for redacting credentials from strings
// before they reach logs.
package redact

import (
	"regexp"
	"strings"
)

// sensitiveParamRegex matches sensitive query parameters in a string.
var sensitiveParamRegex = regexp.MustCompile(`(?i)(apikey|api_key|token|password)=([^&\s]*)`)

// userinfoPasswordRegex matches user:password@ patterns in URLs.
var userinfoPasswordRegex = regexp.MustCompile(`(://[^/:@\s]+):([^@\s]+)@`)

// String redacts sensitive query parameter values and userinfo passwords in
// any string. Useful for sanitizing request paths and error messages.
func String(s string) string {
	if s == "" {
		return s
	}
	result := sensitiveParamRegex.ReplaceAllString(s, "${1}=REDACTED")
	return userinfoPasswordRegex.ReplaceAllString(result, "${1}:REDACTED@")
}

// BasicAuthUser redacts the password from a basic auth credential string.
// "user:password" -> "user:REDACTED"
func BasicAuthUser(cred string) string {
	if cred == "" {
		return cred
	}
	idx := strings.Index(cred, ":")
	if idx < 0 {
		return cred
	}
	return cred[:idx+1] + "REDACTED"
}
