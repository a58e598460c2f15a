package rules

import (
	"fmt"
	"net/url"
)

// redirectHostPort extracts the target the platform backends redirect
// to from a rule's informational page URL.
func redirectHostPort(raw string) (host, port string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse redirect url %q: %w", raw, err)
	}
	host = u.Hostname()
	if host == "" {
		return "", "", fmt.Errorf("redirect url %q has no host", raw)
	}
	port = u.Port()
	if port == "" {
		port = "80"
	}
	return host, port, nil
}
