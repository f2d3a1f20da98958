// Package extract wraps the external extraction tool (yt-dlp). It classifies
// URLs into per-platform argument sets, invokes the tool in informational-JSON
// mode for metadata or single-best-format binary mode for streaming, and
// parses the subset of tool output the rest of the system consumes.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

const (
	// MetadataTimeout bounds informational-JSON invocations.
	MetadataTimeout = 60 * time.Second
	// StreamTimeout bounds streaming invocations.
	StreamTimeout = 5 * time.Minute
	// MaxMetadataOutput caps informational-JSON stdout. Playlist-shaped or
	// hostile URLs can otherwise produce arbitrarily large format lists.
	MaxMetadataOutput = 20 << 20
)

// Format is one candidate stream from tool metadata. Only the fields the
// pipeline consumes are decoded; everything else in the tool output is
// ignored on purpose.
type Format struct {
	Ext      string `json:"ext"`
	VCodec   string `json:"vcodec"`
	ACodec   string `json:"acodec"`
	URL      string `json:"url"`
	Filesize int64  `json:"filesize"`
}

// Metadata is the parsed informational output for one media URL.
type Metadata struct {
	Title     string   `json:"title"`
	Thumbnail string   `json:"thumbnail"`
	Formats   []Format `json:"formats"`
}

// ErrNoPlayableFormat is returned when metadata holds no usable stream.
var ErrNoPlayableFormat = errors.New("no playable format found")

// ResolveMetadata invokes the tool in informational-JSON mode and parses the
// result. The subprocess is forcibly terminated after MetadataTimeout, or as
// soon as its stdout exceeds MaxMetadataOutput.
func (c Config) ResolveMetadata(ctx context.Context, rawURL string) (*Metadata, error) {
	mCtx, cancel := context.WithTimeout(ctx, MetadataTimeout)
	defer cancel()

	args := append([]string{"-J", "--no-playlist"}, c.ExtraArgs(rawURL)...)
	args = append(args, rawURL)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(mCtx, c.ToolPath, args...)
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ExtractError{Cause: CauseRun, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &ExtractError{Cause: CauseRun, Err: err, Output: trimOutput(stderr.String())}
	}

	// read one byte past the cap so an over-cap stream is distinguishable
	// from one that fits exactly
	data, readErr := io.ReadAll(io.LimitReader(stdout, MaxMetadataOutput+1))
	overCap := int64(len(data)) > MaxMetadataOutput
	if overCap {
		// stop the subprocess now rather than letting it run out the clock
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
	waitErr := cmd.Wait()

	if overCap {
		return nil, &ExtractError{
			Cause:  CauseRun,
			Err:    fmt.Errorf("tool output exceeded %d byte cap", MaxMetadataOutput),
			Output: trimOutput(stderr.String()),
		}
	}
	if waitErr != nil {
		if errors.Is(mCtx.Err(), context.DeadlineExceeded) {
			return nil, &ExtractError{Cause: CauseTimeout, Err: waitErr, Output: trimOutput(stderr.String())}
		}
		return nil, &ExtractError{Cause: CauseRun, Err: waitErr, Output: trimOutput(stderr.String())}
	}
	if readErr != nil {
		return nil, &ExtractError{Cause: CauseRun, Err: readErr, Output: trimOutput(stderr.String())}
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, &ExtractError{Cause: CauseParse, Err: err}
	}
	return &meta, nil
}

// hasVideo / hasAudio treat the tool's "none" marker and empty string as absent.
func (f Format) hasVideo() bool { return f.VCodec != "" && f.VCodec != "none" }
func (f Format) hasAudio() bool { return f.ACodec != "" && f.ACodec != "none" }

// ChooseFormat applies the selection policy: a progressive mp4 (both codecs,
// direct URL) is preferred since it plays without client-side muxing; else the
// first format with a direct URL and at least one codec; else failure.
// The second return value reports whether the progressive path matched.
func ChooseFormat(formats []Format) (Format, bool, error) {
	for _, f := range formats {
		if f.Ext == "mp4" && f.hasVideo() && f.hasAudio() && f.URL != "" {
			return f, true, nil
		}
	}
	for _, f := range formats {
		if f.URL != "" && (f.hasVideo() || f.hasAudio()) {
			return f, false, nil
		}
	}
	return Format{}, false, &ExtractError{Cause: CauseNoFormat, Err: ErrNoPlayableFormat}
}

// Stream is a running streaming-mode invocation. Out yields raw media bytes.
// Cancel the context passed to OpenStream to kill the subprocess.
type Stream struct {
	Out io.ReadCloser

	cmd    *exec.Cmd
	stderr *bytes.Buffer
}

// OpenStream invokes the tool in single-best-format binary mode, writing the
// media to stdout. The caller owns the subprocess lifetime via ctx; Wait must
// be called once the stream is drained or abandoned.
func (c Config) OpenStream(ctx context.Context, rawURL string) (*Stream, error) {
	args := append([]string{"-f", "best", "--no-playlist"}, c.ExtraArgs(rawURL)...)
	args = append(args, "-o", "-", rawURL)

	stderr := &bytes.Buffer{}
	cmd := exec.CommandContext(ctx, c.ToolPath, args...)
	cmd.Stderr = stderr

	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ExtractError{Cause: CauseRun, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &ExtractError{Cause: CauseRun, Err: err}
	}
	return &Stream{Out: out, cmd: cmd, stderr: stderr}, nil
}

// Reader exposes the media byte stream (subprocess stdout).
func (s *Stream) Reader() io.Reader { return s.Out }

// Kill terminates the subprocess immediately. Safe to call more than once.
func (s *Stream) Kill() {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

// Wait reaps the subprocess and reports its exit status.
func (s *Stream) Wait() error {
	if err := s.cmd.Wait(); err != nil {
		return &ExtractError{Cause: CauseRun, Err: err, Output: trimOutput(s.stderr.String())}
	}
	return nil
}

// Stderr returns captured tool stderr, for logging only.
func (s *Stream) Stderr() string { return trimOutput(s.stderr.String()) }

// IsMP4Head reports whether the first bytes of a stream carry the canonical
// media-container signature: ASCII "ftyp" at offset 4. Upstream sites that
// block a request tend to return an HTML page instead, which fails this.
func IsMP4Head(head []byte) bool {
	if len(head) < 8 {
		return false
	}
	return head[4] == 'f' && head[5] == 't' && head[6] == 'y' && head[7] == 'p'
}

func trimOutput(s string) string {
	s = strings.TrimSpace(s)
	const max = 800
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

// EnsureTool verifies the configured executable can be found.
func (c Config) EnsureTool() error {
	if strings.ContainsRune(c.ToolPath, '/') {
		return nil // explicit path, existence checked at spawn
	}
	if _, err := exec.LookPath(c.ToolPath); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", c.ToolPath, err)
	}
	return nil
}
