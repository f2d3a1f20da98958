// Package resolve turns a user-submitted web video URL into a validated
// direct media stream plus display metadata. One pass per request:
// short-link expansion, anti-abuse pacing, extraction, format selection,
// response shaping. No retries across stages.
package resolve

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"clipvault/internal/platform/extract"
	"clipvault/internal/platform/shortlink"

	"github.com/Data-Corruption/stdx/xhttp"
	"github.com/Data-Corruption/stdx/xlog"
)

// Format is one candidate quality option in an analyze response. All quality
// tiers currently resolve to the same backend-provided URL; the label is
// cosmetic and kept that way on purpose.
type Format struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
	Size    int64  `json:"size"`
}

// Result is the analyze response body.
type Result struct {
	Title        string   `json:"title"`
	Thumbnail    string   `json:"thumbnail"`
	SourceDomain string   `json:"sourceDomain"`
	Formats      []Format `json:"formats"`
}

// MetadataResolver is the slice of the extraction adapter the service needs.
type MetadataResolver interface {
	ResolveMetadata(ctx context.Context, rawURL string) (*extract.Metadata, error)
}

type Service struct {
	Extractor MetadataResolver
	UserAgent string

	// sleep is swapped in tests to skip the pacing delay.
	sleep func(ctx context.Context, d time.Duration)
}

func New(extractor MetadataResolver, userAgent string) *Service {
	return &Service{
		Extractor: extractor,
		UserAgent: userAgent,
		sleep:     pace,
	}
}

func pace(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Analyze resolves rawURL to metadata and a single synthesized format. base is
// the externally-visible URL of this service, used when the chosen stream has
// to be proxied. Returned errors are *xhttp.Err: Code and Msg are client-safe,
// Err is log-only.
func (s *Service) Analyze(ctx context.Context, rawURL, base string) (*Result, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, &xhttp.Err{Code: 400, Msg: "URL is required", Err: fmt.Errorf("empty url")}
	}

	// expand short links so the tool sees the canonical URL; best-effort
	target := trimmed
	if shortlink.IsShort(trimmed) {
		target = shortlink.Expand(ctx, trimmed, s.UserAgent)
		if target != trimmed {
			xlog.Debugf(ctx, "resolved short URL: %s -> %s", trimmed, target)
		}
	}

	// deliberate throttle; platforms that rate-limit aggressively get more
	s.sleep(ctx, extract.AnalyzeDelay(target))

	meta, err := s.Extractor.ResolveMetadata(ctx, target)
	if err != nil {
		xlog.Errorf(ctx, "metadata extraction failed for %s: %v", target, err)
		if extract.IsParse(err) {
			return nil, &xhttp.Err{Code: 500, Msg: "Failed to process video data", Err: err}
		}
		return nil, &xhttp.Err{Code: 422, Msg: Sanitize(genericExtractionMsg), Err: err}
	}

	chosen, progressive, err := extract.ChooseFormat(meta.Formats)
	if err != nil {
		xlog.Errorf(ctx, "no playable format for %s", target)
		return nil, &xhttp.Err{Code: 422, Msg: Sanitize(genericExtractionMsg), Err: err}
	}

	// direct URL when a single progressive stream exists; otherwise route the
	// client through our own streaming endpoint
	streamURL := chosen.URL
	if !progressive {
		streamURL = ProxyURL(base, target)
	}

	title := meta.Title
	if title == "" {
		title = "Video"
	}

	return &Result{
		Title:        title,
		Thumbnail:    meta.Thumbnail,
		SourceDomain: hostname(target),
		Formats: []Format{{
			Quality: "HD",
			URL:     streamURL,
			Size:    chosen.Filesize,
		}},
	}, nil
}

// ProxyURL builds the same-origin streaming URL for a source URL.
func ProxyURL(base, rawURL string) string {
	q := url.QueryEscape(base64.StdEncoding.EncodeToString([]byte(rawURL)))
	return strings.TrimRight(base, "/") + "/download?q=" + q
}

// DecodeProxyQuery reverses ProxyURL's q parameter. The query layer already
// percent-decodes, so only the base64 hop remains; url-safe alphabets are
// accepted as well for tolerant clients.
func DecodeProxyQuery(q string) (string, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(q); err == nil {
			return string(raw), nil
		}
	}
	return "", fmt.Errorf("q is not valid base64")
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
