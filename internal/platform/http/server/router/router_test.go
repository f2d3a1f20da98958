package router

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clipvault/internal/platform/extract"
	"clipvault/internal/platform/ratelimit"
	"clipvault/internal/resolve"

	"github.com/Data-Corruption/stdx/xlog"
	"golang.org/x/time/rate"
)

type stubResolver struct {
	meta *extract.Metadata
	err  error
}

func (s *stubResolver) ResolveMetadata(ctx context.Context, rawURL string) (*extract.Metadata, error) {
	return s.meta, s.err
}

type fakeStream struct {
	r      io.Reader
	killed bool
}

func (f *fakeStream) Reader() io.Reader { return f.r }
func (f *fakeStream) Kill()             { f.killed = true }
func (f *fakeStream) Wait() error       { return nil }
func (f *fakeStream) Stderr() string    { return "" }

func testDeps(t *testing.T, open StreamOpener) Deps {
	t.Helper()
	log, err := xlog.New(t.TempDir(), "error")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { log.Close() })

	svc := resolve.New(&stubResolver{meta: &extract.Metadata{
		Title: "Clip",
		Formats: []extract.Format{
			{Ext: "mp4", VCodec: "avc1", ACodec: "aac", URL: "https://x/v.mp4"},
		},
	}}, "test-agent")

	return Deps{
		Log:        log,
		Resolver:   svc,
		Limiter:    ratelimit.New(time.Minute, 18),
		OpenStream: open,
		Spawn:      rate.NewLimiter(rate.Inf, 1),
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(New(testDeps(t, nil)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestAnalyzeOK(t *testing.T) {
	srv := httptest.NewServer(New(testDeps(t, nil)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/analyze", "application/json",
		strings.NewReader(`{"url":"https://example.com/post/1"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res resolve.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Title != "Clip" || len(res.Formats) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestAnalyzeEmptyURL(t *testing.T) {
	srv := httptest.NewServer(New(testDeps(t, nil)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/analyze", "application/json", strings.NewReader(`{"url":""}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAnalyzeRateLimited(t *testing.T) {
	d := testDeps(t, nil)
	d.Limiter = ratelimit.New(time.Minute, 1)
	srv := httptest.NewServer(New(d))
	defer srv.Close()

	body := `{"url":"https://example.com/post/1"}`
	resp, err := http.Post(srv.URL+"/analyze", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request: status = %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/analyze", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", resp.StatusCode)
	}
	var errBody map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		t.Fatal(err)
	}
	if errBody["error"] == "" {
		t.Error("429 body missing error message")
	}
}

func TestDownloadBadQuery(t *testing.T) {
	srv := httptest.NewServer(New(testDeps(t, nil)))
	defer srv.Close()

	for _, path := range []string{
		"/download",
		"/download?q=!!garbage!!",
		"/download?q=" + base64.StdEncoding.EncodeToString([]byte("not-a-url")),
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestDownloadRelaysValidStream(t *testing.T) {
	payload := append([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p'}, []byte("isommp42-media-bytes")...)
	open := func(ctx context.Context, rawURL string) (MediaStream, error) {
		return &fakeStream{r: strings.NewReader(string(payload))}, nil
	}
	srv := httptest.NewServer(New(testDeps(t, open)))
	defer srv.Close()

	q := base64.StdEncoding.EncodeToString([]byte("https://example.com/v"))
	resp, err := http.Get(srv.URL + "/download?q=" + q)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	got, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("body = %q, want full payload relayed", got)
	}
}

func TestDownloadRejectsHTMLStream(t *testing.T) {
	stream := &fakeStream{r: strings.NewReader("<html><head><title>Access Denied</title></head></html>")}
	open := func(ctx context.Context, rawURL string) (MediaStream, error) {
		return stream, nil
	}
	srv := httptest.NewServer(New(testDeps(t, open)))
	defer srv.Close()

	q := base64.StdEncoding.EncodeToString([]byte("https://example.com/v"))
	resp, err := http.Get(srv.URL + "/download?q=" + q)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(strings.ToLower(body["error"]), "html") {
		t.Errorf("diagnostic leaked to client: %q", body["error"])
	}
	if !stream.killed {
		t.Error("rejected stream should be killed")
	}
}

func TestDownloadOpenFailure(t *testing.T) {
	open := func(ctx context.Context, rawURL string) (MediaStream, error) {
		return nil, errors.New("spawn failed")
	}
	srv := httptest.NewServer(New(testDeps(t, open)))
	defer srv.Close()

	q := base64.StdEncoding.EncodeToString([]byte("https://example.com/v"))
	resp, err := http.Get(srv.URL + "/download?q=" + q)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}
