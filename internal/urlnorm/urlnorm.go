// Package urlnorm canonicalizes tab addresses into matching keys.
package urlnorm

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"pkt.systems/pslog"
)

var errMissingHost = errors.New("missing host")

// Normalize returns origin + path for http(s) addresses and the input
// unchanged for every other scheme. Malformed http(s) addresses are returned
// unchanged and logged as a warning.
func Normalize(ctx context.Context, raw string) string {
	out, err := Canonical(raw)
	if err != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		pslog.Ctx(ctx).Warn("urlnorm parse failed", "url", raw, "err", err)
		return raw
	}
	return out
}

// Canonical is Normalize without logging. On error the input is returned
// alongside the parse error.
func Canonical(raw string) (string, error) {
	if !isWeb(raw) {
		return raw, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw, err
	}
	if parsed.Host == "" {
		return raw, errMissingHost
	}
	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := parsed.Port(); port != "" && !defaultPort(scheme, port) {
		host += ":" + port
	}
	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path, nil
}

func isWeb(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func defaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}
