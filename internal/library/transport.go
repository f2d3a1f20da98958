package library

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// TransferTimeout bounds one whole transfer. Large media over slow networks
// is expected, so this is deliberately long.
const TransferTimeout = 15 * time.Minute

// EventKind discriminates transfer events.
type EventKind int

const (
	EventProgress EventKind = iota
	EventComplete
	EventError
)

// Event is one asynchronous transfer notification. Events are consumed only
// by the manager's event loop; the transport never touches the queue.
type Event struct {
	TransferID string
	Kind       EventKind

	// Progress fields. BytesTotal is -1 when the server does not report a
	// length.
	BytesDone  int64
	BytesTotal int64

	// Complete field: the finished temp file awaiting placement.
	TempPath string

	// Error field.
	Err error
}

// Transport starts transfers and reports their lifecycle as Events. The
// returned cancel function aborts the transfer; calling it after the transfer
// finished is a no-op.
type Transport interface {
	Start(url, transferID string, events chan<- Event) (cancel func(), err error)
}

// HTTPTransport downloads over plain HTTP into temp files.
type HTTPTransport struct {
	Client  *http.Client
	TempDir string
}

func NewHTTPTransport(tempDir string) *HTTPTransport {
	return &HTTPTransport{
		Client:  &http.Client{},
		TempDir: tempDir,
	}
}

func (t *HTTPTransport) Start(url, transferID string, events chan<- Event) (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), TransferTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}

	go t.run(req, transferID, events)
	return cancel, nil
}

func (t *HTTPTransport) run(req *http.Request, transferID string, events chan<- Event) {
	ctx := req.Context()

	// send delivers when there is room, then blocks until delivery or
	// cancellation. A consumer that went away must not strand this goroutine.
	send := func(ev Event) bool {
		ev.TransferID = transferID
		select {
		case events <- ev:
			return true
		default:
		}
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		send(Event{Kind: EventError, Err: err})
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		fail(err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fail(fmt.Errorf("server returned %s", resp.Status))
		return
	}

	tmp, err := os.CreateTemp(t.TempDir, "transfer-*.part")
	if err != nil {
		fail(err)
		return
	}
	tmpPath := tmp.Name()

	total := resp.ContentLength
	var done int64
	buf := make([]byte, 128*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				tmp.Close()
				os.Remove(tmpPath)
				fail(werr)
				return
			}
			done += int64(n)
			if !send(Event{Kind: EventProgress, BytesDone: done, BytesTotal: total}) {
				tmp.Close()
				os.Remove(tmpPath)
				return
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			tmp.Close()
			os.Remove(tmpPath)
			fail(rerr)
			return
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		fail(err)
		return
	}
	if !send(Event{Kind: EventComplete, BytesDone: done, BytesTotal: total, TempPath: tmpPath}) {
		os.Remove(tmpPath)
	}
}
