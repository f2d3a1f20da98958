// Package shortlink expands shortened share URLs before extraction.
// Expansion is best-effort: any failure returns the input unchanged.
package shortlink

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Data-Corruption/stdx/xlog"
)

const timeout = 10 * time.Second

// shortHosts lists hosts that require a redirect hop to reach the canonical
// resource URL.
var shortHosts = []string{
	"pin.it/",
}

// IsShort reports whether the URL matches a known short-link pattern.
func IsShort(rawURL string) bool {
	for _, h := range shortHosts {
		if strings.Contains(rawURL, h) {
			return true
		}
	}
	return false
}

// Expand follows redirects and returns the final URL. On any failure
// (network, timeout, non-http input) the original URL is returned.
func Expand(ctx context.Context, rawURL, userAgent string) string {
	if !strings.HasPrefix(rawURL, "http") {
		return rawURL
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return rawURL
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req) // follows redirects
	if err != nil {
		xlog.Debugf(ctx, "short link expansion failed for %s: %v", rawURL, err)
		return rawURL
	}
	defer resp.Body.Close()

	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return rawURL
}
