package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clipvault/internal/resolve"

	"github.com/Data-Corruption/stdx/xlog"
)

// ErrInputInvalid marks URLs rejected before any network call.
var ErrInputInvalid = errors.New("invalid URL")

// ErrConnectionFailed marks a backend that could not be reached at all, after
// the fallback attempt.
var ErrConnectionFailed = errors.New("could not reach the server, check your connection")

const retryBackoff = 500 * time.Millisecond

// Client talks to the analyze endpoint. A second backend address, when
// configured, gets one retry after a short backoff before the failure is
// surfaced.
type Client struct {
	BaseURL     string
	FallbackURL string
	HTTP        *http.Client
}

func NewClient(baseURL, fallbackURL string) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		FallbackURL: strings.TrimRight(fallbackURL, "/"),
		HTTP:        &http.Client{Timeout: 90 * time.Second},
	}
}

// NormalizeInput prepends https:// when the scheme is missing and rejects
// inputs whose host has no dot, all before any network call.
func NormalizeInput(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty input", ErrInputInvalid)
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInputInvalid, err)
	}
	if !strings.Contains(u.Hostname(), ".") {
		return "", fmt.Errorf("%w: host %q is not a domain", ErrInputInvalid, u.Hostname())
	}
	return raw, nil
}

// Analyze validates rawURL locally, then posts it to the backend. Connection
// failures retry once against the fallback backend.
func (c *Client) Analyze(ctx context.Context, rawURL string) (*resolve.Result, error) {
	normalized, err := NormalizeInput(rawURL)
	if err != nil {
		return nil, err
	}

	res, err := c.post(ctx, c.BaseURL, normalized)
	if err == nil {
		return res, nil
	}
	var se *serverError
	if errors.As(err, &se) {
		// the backend answered; no point retrying elsewhere
		return nil, err
	}

	if c.FallbackURL != "" && c.FallbackURL != c.BaseURL {
		xlog.Warnf(ctx, "primary backend unreachable (%v), retrying against fallback", err)
		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if res, ferr := c.post(ctx, c.FallbackURL, normalized); ferr == nil {
			return res, nil
		} else if errors.As(ferr, &se) {
			return nil, ferr
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}

// serverError is a non-2xx analyze response; Msg is the backend's client-safe
// message.
type serverError struct {
	Code int
	Msg  string
}

func (e *serverError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("server returned %d", e.Code)
}

func (c *Client) post(ctx context.Context, base, target string) (*resolve.Result, error) {
	body, err := json.Marshal(map[string]string{"url": target})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var eb struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return nil, &serverError{Code: resp.StatusCode, Msg: eb.Error}
	}

	var res resolve.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode analyze response: %w", err)
	}
	return &res, nil
}
