// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeOrigin reduces s to scheme://host[:port] with no trailing slash.
func NormalizeOrigin(s string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", s, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid origin %q: scheme and host are required", s)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// trimOrigin drops origin and the slash that follows it.
func trimOrigin(origin, rawURL string) string {
	if len(rawURL) <= len(origin)+1 {
		return ""
	}
	return rawURL[len(origin)+1:]
}

// ContentKey derives the manifest key of a cached request URL.
func ContentKey(origin, rawURL string) string {
	key := trimOrigin(origin, rawURL)
	if key == "" {
		return RootKey
	}
	return key
}

// RequestKey derives the manifest key of an outgoing request URL. A "?v="
// cache-busting suffix is dropped, and the bare origin, any "origin/#..."
// route and an empty path all map to RootKey.
func RequestKey(origin, rawURL string) string {
	key := trimOrigin(origin, rawURL)
	if i := strings.Index(key, "?v="); i != -1 {
		key = key[:i]
	}
	if rawURL == origin || strings.HasPrefix(rawURL, origin+"/#") || key == "" {
		return RootKey
	}
	return key
}

// ResolveURL returns the absolute URL a resource key is fetched from.
func ResolveURL(origin, key string) string {
	if key == RootKey {
		return origin + "/"
	}
	return origin + "/" + strings.TrimPrefix(key, "/")
}
