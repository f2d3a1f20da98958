package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipvault/internal/platform/extract"
	"clipvault/internal/resolve"
	"clipvault/pkg/xhtml"

	"github.com/Data-Corruption/stdx/xhttp"
	"github.com/Data-Corruption/stdx/xlog"
)

// MediaStream is the slice of a running streaming extraction the handler
// consumes. *extract.Stream satisfies it; tests substitute fakes.
type MediaStream interface {
	Reader() io.Reader
	Kill()
	Wait() error
	Stderr() string
}

// StreamOpener starts a streaming extraction bound to ctx.
type StreamOpener func(ctx context.Context, rawURL string) (MediaStream, error)

const spawnWait = 5 * time.Second

// handleDownload relays media bytes through the backend. The first 8 bytes of
// subprocess output are buffered and validated before any response headers are
// committed, so an upstream HTML block page never reaches the client as a
// "video".
func (d Deps) handleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		respondErr(r.Context(), w, &xhttp.Err{Code: 400, Msg: "Missing q (base64 URL)", Err: fmt.Errorf("missing q param")})
		return
	}
	decoded, err := resolve.DecodeProxyQuery(q)
	if err != nil {
		respondErr(r.Context(), w, &xhttp.Err{Code: 400, Msg: "Invalid q", Err: err})
		return
	}
	if !strings.HasPrefix(decoded, "http") {
		respondErr(r.Context(), w, &xhttp.Err{Code: 400, Msg: "Invalid URL", Err: fmt.Errorf("decoded q lacks a URI scheme")})
		return
	}

	// burst guard on subprocess creation
	if d.Spawn != nil {
		waitCtx, cancel := context.WithTimeout(r.Context(), spawnWait)
		err := d.Spawn.Wait(waitCtx)
		cancel()
		if err != nil {
			respondErr(r.Context(), w, &xhttp.Err{Code: 429, Msg: "Too many requests. Try again in a minute.", Err: err})
			return
		}
	}

	xlog.Debugf(r.Context(), "download requested for: %.60s...", decoded)

	// subprocess dies with the request: client disconnect or timeout, either
	// way the context kills it
	ctx, cancel := context.WithTimeout(r.Context(), extract.StreamTimeout)
	defer cancel()

	stream, err := d.OpenStream(ctx, decoded)
	if err != nil {
		respondErr(r.Context(), w, &xhttp.Err{Code: 500, Msg: "Video unavailable. Try again or use a different link.", Err: err})
		return
	}

	head := make([]byte, 8)
	if _, err := io.ReadFull(stream.Reader(), head); err != nil {
		stream.Kill()
		werr := stream.Wait()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			respondErr(r.Context(), w, &xhttp.Err{Code: 504, Msg: "Download timed out", Err: fmt.Errorf("no stream head before deadline: %w", err)})
			return
		}
		xlog.Errorf(r.Context(), "stream produced no data: %v (wait: %v, stderr: %s)", err, werr, stream.Stderr())
		respondErr(r.Context(), w, &xhttp.Err{Code: 500, Msg: "No video data received", Err: err})
		return
	}

	if !extract.IsMP4Head(head) {
		d.logBlockPage(r.Context(), stream, head)
		stream.Kill()
		_ = stream.Wait()
		respondErr(r.Context(), w, &xhttp.Err{
			Code: 500,
			Msg:  "Video unavailable. Try again or use a different link.",
			Err:  fmt.Errorf("stream head is not a media container: % x", head),
		})
		return
	}

	// validated; commit headers and relay
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="video.mp4"`)
	if _, err := w.Write(head); err != nil {
		stream.Kill()
		_ = stream.Wait()
		return
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	if _, err := io.Copy(w, stream.Reader()); err != nil {
		// client gone or deadline hit; headers are out, just stop
		xlog.Debugf(r.Context(), "stream relay ended early: %v", err)
		stream.Kill()
	}
	if err := stream.Wait(); err != nil {
		xlog.Warnf(r.Context(), "stream subprocess exit: %v", err)
	}
}

// logBlockPage reads a little more of a rejected stream and, when it turns
// out to be HTML, logs the page title. Helps tell a login wall from an
// outage without ever forwarding the bytes.
func (d Deps) logBlockPage(ctx context.Context, stream MediaStream, head []byte) {
	rest, _ := io.ReadAll(io.LimitReader(stream.Reader(), 2048))
	sample := append(append([]byte{}, head...), rest...)
	if xhtml.LooksLikeHTML(sample) {
		if title := xhtml.PageTitle(sample); title != "" {
			xlog.Errorf(ctx, "upstream returned an HTML block page: %q", title)
			return
		}
		xlog.Errorf(ctx, "upstream returned HTML instead of media")
		return
	}
	xlog.Errorf(ctx, "upstream returned non-media bytes: % x", sample[:min(len(sample), 64)])
}
