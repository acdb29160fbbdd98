// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"net"
	"net/url"
	"strings"
)

// IsURL reports whether input is an absolute http(s) URL with a host.
func IsURL(input string) bool {
	u, err := url.Parse(input)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// IsLocalhost reports whether host (optionally with a port) refers to the local machine.
func IsLocalhost(host string) bool {
	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}

	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}
	hostname = strings.TrimSuffix(strings.TrimPrefix(hostname, "["), "]")

	ip := net.ParseIP(hostname)
	return ip != nil && ip.IsLoopback()
}
