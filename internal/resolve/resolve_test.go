package resolve

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"clipvault/internal/platform/extract"

	"github.com/Data-Corruption/stdx/xhttp"
)

type stubResolver struct {
	meta *extract.Metadata
	err  error
}

func (s *stubResolver) ResolveMetadata(ctx context.Context, rawURL string) (*extract.Metadata, error) {
	return s.meta, s.err
}

func newTestService(r MetadataResolver) *Service {
	s := New(r, "test-agent")
	s.sleep = func(ctx context.Context, d time.Duration) {} // skip pacing
	return s
}

func TestAnalyzeProgressiveDirect(t *testing.T) {
	s := newTestService(&stubResolver{meta: &extract.Metadata{
		Title:     "A Clip",
		Thumbnail: "https://x/t.jpg",
		Formats: []extract.Format{
			{Ext: "mp4", VCodec: "avc1", ACodec: "aac", URL: "https://x/video.mp4", Filesize: 1234},
		},
	}})

	res, err := s.Analyze(context.Background(), "https://example.com/post/1", "http://localhost:3000")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(res.Formats) != 1 {
		t.Fatalf("got %d formats, want 1", len(res.Formats))
	}
	f := res.Formats[0]
	if f.URL != "https://x/video.mp4" {
		t.Errorf("progressive URL should pass through unchanged, got %q", f.URL)
	}
	if f.Quality != "HD" || f.Size != 1234 {
		t.Errorf("format = %+v", f)
	}
	if res.SourceDomain != "example.com" {
		t.Errorf("sourceDomain = %q", res.SourceDomain)
	}
}

func TestAnalyzeNonProgressiveUsesProxy(t *testing.T) {
	input := "https://example.com/post/2"
	s := newTestService(&stubResolver{meta: &extract.Metadata{
		Title: "Dash Only",
		Formats: []extract.Format{
			{Ext: "webm", VCodec: "vp9", ACodec: "none", URL: "https://x/v.webm"},
		},
	}})

	res, err := s.Analyze(context.Background(), input, "http://localhost:3000")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	got := res.Formats[0].URL
	if !strings.HasPrefix(got, "http://localhost:3000/download?q=") {
		t.Fatalf("expected proxy URL, got %q", got)
	}

	// decoded q must round-trip to the original input URL
	u, err := url.Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeProxyQuery(u.Query().Get("q"))
	if err != nil {
		t.Fatalf("DecodeProxyQuery: %v", err)
	}
	if decoded != input {
		t.Errorf("decoded q = %q, want %q", decoded, input)
	}
}

func TestAnalyzeEmptyURL(t *testing.T) {
	s := newTestService(&stubResolver{})
	_, err := s.Analyze(context.Background(), "   ", "http://localhost:3000")
	var xe *xhttp.Err
	if !errors.As(err, &xe) || xe.Code != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAnalyzeExtractionFailure(t *testing.T) {
	s := newTestService(&stubResolver{err: &extract.ExtractError{
		Cause:  extract.CauseRun,
		Err:    errors.New("exit status 1"),
		Output: "ERROR: [instagram] rate limited",
	}})

	_, err := s.Analyze(context.Background(), "https://www.instagram.com/reel/abc/", "http://localhost:3000")
	var xe *xhttp.Err
	if !errors.As(err, &xe) {
		t.Fatalf("expected *xhttp.Err, got %v", err)
	}
	if xe.Code != 422 {
		t.Errorf("code = %d, want 422", xe.Code)
	}
	lower := strings.ToLower(xe.Msg)
	if strings.Contains(lower, "instagram") || strings.Contains(lower, "yt-dlp") {
		t.Errorf("platform detail leaked into client message: %q", xe.Msg)
	}
}

func TestAnalyzeParseFailureIs500(t *testing.T) {
	s := newTestService(&stubResolver{err: &extract.ExtractError{
		Cause: extract.CauseParse,
		Err:   errors.New("unexpected end of JSON input"),
	}})
	_, err := s.Analyze(context.Background(), "https://example.com/v", "http://localhost:3000")
	var xe *xhttp.Err
	if !errors.As(err, &xe) || xe.Code != 500 {
		t.Fatalf("expected 500, got %v", err)
	}
}

func TestAnalyzeNoPlayableFormat(t *testing.T) {
	s := newTestService(&stubResolver{meta: &extract.Metadata{
		Formats: []extract.Format{{Ext: "mp4"}},
	}})
	_, err := s.Analyze(context.Background(), "https://example.com/v", "http://localhost:3000")
	var xe *xhttp.Err
	if !errors.As(err, &xe) || xe.Code != 422 {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		msg     string
		generic bool
	}{
		{"Pinterest is blocking automated downloads", true},
		{"Instagram blocked this request. Try again later.", true},
		{"yt-dlp exited 1", true},
		{"Video unavailable. Try again or use a different link.", false},
	}
	for _, tt := range tests {
		got := Sanitize(tt.msg)
		if tt.generic && got == tt.msg {
			t.Errorf("Sanitize(%q) should have rewritten the message", tt.msg)
		}
		if !tt.generic && got != tt.msg {
			t.Errorf("Sanitize(%q) = %q, want unchanged", tt.msg, got)
		}
	}
}

func TestDecodeProxyQueryBadInput(t *testing.T) {
	if _, err := DecodeProxyQuery("!!not-base64!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
	// url-safe alphabet is tolerated
	enc := base64.URLEncoding.EncodeToString([]byte("https://example.com/a?b=c"))
	got, err := DecodeProxyQuery(enc)
	if err != nil || got != "https://example.com/a?b=c" {
		t.Fatalf("got %q, %v", got, err)
	}
}
