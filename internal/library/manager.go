package library

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"clipvault/internal/resolve"

	"github.com/Data-Corruption/stdx/xlog"
	"github.com/google/uuid"
)

// notifyInterval throttles observer notifications during a transfer. The
// underlying progress value is always exact; only how often observers hear
// about it is coalesced.
const notifyInterval = 200 * time.Millisecond

// session is the single active transfer slot.
type session struct {
	recordID   string
	transferID string
	cancel     func()
}

// Manager owns the record queue and at most one in-flight transfer. All queue
// mutations happen under the manager's lock, whether they come from API calls
// or from transport events; the transport never touches the queue directly.
type Manager struct {
	mu      sync.Mutex
	records []MediaRecord
	active  *session

	storage   Storage
	transport Transport

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup

	notify     func([]MediaRecord)
	lastNotify time.Time

	// ctx carries the logger; never used for cancellation.
	ctx context.Context
}

// NewManager loads the persisted queue and starts the event loop. Records
// left mid-transfer by a previous process are reset to idle, since no
// transfer survives a restart.
func NewManager(ctx context.Context, storage Storage, transport Transport) (*Manager, error) {
	records, err := storage.LoadQueue()
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	for i := range records {
		if records[i].IsDownloading {
			records[i].IsDownloading = false
			records[i].Progress = 0
			records[i].ActiveTransferID = ""
		}
	}

	m := &Manager{
		records:   records,
		storage:   storage,
		transport: transport,
		events:    make(chan Event, 64),
		done:      make(chan struct{}),
		ctx:       ctx,
	}
	m.wg.Add(1)
	go m.loop()
	return m, nil
}

// Close cancels any active transfer and stops the event loop.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.active != nil {
		m.active.cancel()
		m.active = nil
	}
	m.mu.Unlock()
	close(m.done)
	m.wg.Wait()
}

// SetNotify registers the observer called with a queue snapshot after
// mutations. Calls are throttled during progress updates.
func (m *Manager) SetNotify(fn func([]MediaRecord)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = fn
}

// Start begins a transfer for rec against url. Whatever transfer is currently
// active is cancelled first; there is exactly one transfer slot. The record
// is inserted at the front of the queue, or updated in place when its id is
// already present.
func (m *Manager) Start(rec MediaRecord, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelActiveLocked()

	transferID := uuid.NewString()
	rec.DirectMediaURL = url
	rec.IsDownloading = true
	rec.IsCompleted = false
	rec.Progress = 0
	rec.ActiveTransferID = transferID

	if i := m.indexOfLocked(rec.ID); i >= 0 {
		// restart keeps the record's position but adopts the new state;
		// a previously completed file survives until this attempt succeeds
		rec.FilePath = m.records[i].FilePath
		m.records[i] = rec
	} else {
		m.records = append([]MediaRecord{rec}, m.records...)
	}
	m.persistLocked()

	cancel, err := m.transport.Start(url, transferID, m.events)
	if err != nil {
		m.resetRecordLocked(rec.ID)
		m.persistLocked()
		return fmt.Errorf("start transfer: %w", err)
	}
	m.active = &session{recordID: rec.ID, transferID: transferID, cancel: cancel}
	m.notifyLocked(true)
	return nil
}

// Cancel aborts the transfer for id. Cancelling a record with no active
// transfer is a no-op, so cancelling twice looks exactly like cancelling
// once.
func (m *Manager) Cancel(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.recordID != id {
		return
	}
	m.cancelActiveLocked()
	m.persistLocked()
	m.notifyLocked(true)
}

// Rename updates a record's title. When the record has a stored file, a
// rename on disk is attempted too; if that fails the title still changes and
// the on-disk name stays, an accepted degraded state.
func (m *Manager) Rename(id, newTitle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOfLocked(id)
	if i < 0 {
		return fmt.Errorf("no record %s", id)
	}
	if m.records[i].FilePath != nil {
		if newPath, err := m.storage.RenameFile(*m.records[i].FilePath, newTitle); err != nil {
			xlog.Warnf(m.ctx, "rename on disk failed for %s, keeping old file name: %v", id, err)
		} else {
			m.records[i].FilePath = &newPath
		}
	}
	m.records[i].Title = newTitle
	m.persistLocked()
	m.notifyLocked(true)
	return nil
}

// Delete removes a record. An active transfer for it is cancelled first and
// its stored file is removed best-effort; a missing file never blocks the
// delete.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.recordID == id {
		m.cancelActiveLocked()
	}
	i := m.indexOfLocked(id)
	if i < 0 {
		return
	}
	if m.records[i].FilePath != nil {
		if err := m.storage.RemoveFile(*m.records[i].FilePath); err != nil && !os.IsNotExist(err) {
			xlog.Warnf(m.ctx, "removing file for %s: %v", id, err)
		}
	}
	m.records = append(m.records[:i], m.records[i+1:]...)
	m.persistLocked()
	m.notifyLocked(true)
}

// Search returns records whose title contains q, case-insensitively.
func (m *Manager) Search(q string) []MediaRecord {
	q = strings.ToLower(q)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MediaRecord
	for _, r := range m.records {
		if strings.Contains(strings.ToLower(r.Title), q) {
			out = append(out, r)
		}
	}
	return out
}

// Records returns a snapshot copy of the queue, front-first.
func (m *Manager) Records() []MediaRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// --- event loop ---

func (m *Manager) loop() {
	defer m.wg.Done()
	for {
		select {
		case ev := <-m.events:
			m.handleEvent(ev)
		case <-m.done:
			return
		}
	}
}

func (m *Manager) handleEvent(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ev.Kind {
	case EventProgress:
		m.handleProgressLocked(ev)
	case EventComplete:
		m.handleCompleteLocked(ev)
	case EventError:
		m.handleErrorLocked(ev)
	}
}

func (m *Manager) handleProgressLocked(ev Event) {
	i := m.reconcileLocked(ev.TransferID)
	if i < 0 {
		return // stale event from a cancelled transfer
	}
	if ev.BytesTotal > 0 {
		p := float64(ev.BytesDone) / float64(ev.BytesTotal)
		// monotonic per transfer
		if p > m.records[i].Progress {
			m.records[i].Progress = p
		}
	}
	m.notifyLocked(false)
}

func (m *Manager) handleCompleteLocked(ev Event) {
	i := m.reconcileLocked(ev.TransferID)
	if i < 0 {
		xlog.Warnf(m.ctx, "completion for unknown transfer %s, dropping temp file", ev.TransferID)
		_ = os.Remove(ev.TempPath)
		return
	}
	rec := &m.records[i]

	final, err := m.storage.MoveIntoStable(ev.TempPath, rec.Title)
	if err != nil {
		xlog.Errorf(m.ctx, "moving finished file for %s: %v", rec.ID, err)
		m.resetRecordLocked(rec.ID)
		m.clearActiveLocked(ev.TransferID)
		m.persistLocked()
		m.notifyLocked(true)
		return
	}

	rec.FilePath = &final
	rec.Progress = 1
	rec.IsCompleted = true
	rec.IsDownloading = false
	rec.ActiveTransferID = ""
	m.clearActiveLocked(ev.TransferID)
	m.persistLocked()
	m.notifyLocked(true)
	xlog.Infof(m.ctx, "download complete: %s -> %s", rec.ID, final)
}

func (m *Manager) handleErrorLocked(ev Event) {
	i := m.reconcileLocked(ev.TransferID)
	if i < 0 {
		return
	}
	xlog.Warnf(m.ctx, "transfer %s failed: %v", ev.TransferID, ev.Err)
	m.resetRecordLocked(m.records[i].ID)
	m.clearActiveLocked(ev.TransferID)
	m.persistLocked()
	m.notifyLocked(true)
}

// reconcileLocked maps a transfer id to a queue index: exact match on
// ActiveTransferID first, then the currently active record. Handles races
// where the queue was mutated between start and completion.
func (m *Manager) reconcileLocked(transferID string) int {
	for i := range m.records {
		if m.records[i].ActiveTransferID == transferID {
			return i
		}
	}
	if m.active != nil && m.active.transferID == transferID {
		return m.indexOfLocked(m.active.recordID)
	}
	return -1
}

func (m *Manager) cancelActiveLocked() {
	if m.active == nil {
		return
	}
	m.active.cancel()
	m.resetRecordLocked(m.active.recordID)
	m.active = nil
}

// clearActiveLocked drops the session when it belongs to transferID. The
// transfer's cancel is invoked to release its context resources; cancel is
// idempotent, so this is safe after the transfer already finished.
func (m *Manager) clearActiveLocked(transferID string) {
	if m.active != nil && m.active.transferID == transferID {
		m.active.cancel()
		m.active = nil
	}
}

// resetRecordLocked returns a record to idle. FilePath and IsCompleted from a
// prior success are deliberately untouched, so a failed re-download never
// loses an already stored file.
func (m *Manager) resetRecordLocked(id string) {
	if i := m.indexOfLocked(id); i >= 0 {
		m.records[i].IsDownloading = false
		m.records[i].Progress = 0
		m.records[i].ActiveTransferID = ""
	}
}

func (m *Manager) indexOfLocked(id string) int {
	for i := range m.records {
		if m.records[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked saves the queue snapshot. A failed persist is logged only;
// the next mutation writes the full snapshot again.
func (m *Manager) persistLocked() {
	if err := m.storage.SaveQueue(m.records); err != nil {
		xlog.Errorf(m.ctx, "persisting queue: %v", err)
	}
}

// notifyLocked invokes the observer with a snapshot. Progress-driven calls
// (force=false) are coalesced to one per notifyInterval; state transitions
// always notify.
func (m *Manager) notifyLocked(force bool) {
	if m.notify == nil {
		return
	}
	now := time.Now()
	if !force && now.Sub(m.lastNotify) < notifyInterval {
		return
	}
	m.lastNotify = now
	m.notify(m.snapshotLocked())
}

func (m *Manager) snapshotLocked() []MediaRecord {
	out := make([]MediaRecord, len(m.records))
	copy(out, m.records)
	for i := range out {
		if m.records[i].FilePath != nil {
			p := *m.records[i].FilePath
			out[i].FilePath = &p
		}
		out[i].AvailableFormats = append([]resolve.Format(nil), m.records[i].AvailableFormats...)
	}
	return out
}
