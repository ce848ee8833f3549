// Package translog keeps the console's append-only record of job state transitions.
package translog

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"studio/internal/domain"
)

const (
	PollingErrorText    = "Polling error..."
	UnknownFailureText  = "Unknown backend error"
	SyncStartedText     = "Syncing metadata to cloud..."
	SyncSucceededText   = "Cloud Sync: OK"
	SyncFailedText      = "Cloud Sync: failed"
	defaultCapacityHint = 32
)

// ConnectingText is the first entry of every job's log.
func ConnectingText(jobID string) string {
	return fmt.Sprintf("Connecting to job %s...", jobID)
}

// FailureText renders the terminal failure entry.
func FailureText(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = UnknownFailureText
	}
	return "Execution failed: " + reason
}

// Log is an ordered, append-only sequence of entries. Entries are never
// removed or reordered except by Reset, which starts a new job's log.
type Log struct {
	mu      sync.RWMutex
	entries []domain.LogEntry
	nextSeq int64
	now     func() time.Time
}

// New creates an empty log. now may be nil.
func New(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{entries: make([]domain.LogEntry, 0, defaultCapacityHint), now: now}
}

// Reset clears the log and appends the "Connecting to job" entry for jobID.
// Sequence numbers keep increasing across resets so readers never confuse
// entries of an old job with a new one.
func (l *Log) Reset(jobID string) domain.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]domain.LogEntry, 0, defaultCapacityHint)
	return l.appendLocked(ConnectingText(jobID))
}

// Append unconditionally records text.
func (l *Log) Append(text string) domain.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(text)
}

// Observe records the snapshot's message when SnapshotToText allows it.
func (l *Log) Observe(snap domain.StatusSnapshot) (domain.LogEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	text, ok := snapshotToText(l.lastTextLocked(), snap)
	if !ok {
		return domain.LogEntry{}, false
	}
	return l.appendLocked(text), true
}

// SnapshotToText returns the line the snapshot would add to the log, if any.
func (l *Log) SnapshotToText(snap domain.StatusSnapshot) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return snapshotToText(l.lastTextLocked(), snap)
}

// snapshotToText applies the dedupe rule: a message is logged only if it is
// non-empty and not already contained in the most recent entry. The message
// is compared and stored exactly as received.
func snapshotToText(last string, snap domain.StatusSnapshot) (string, bool) {
	msg := snap.Message
	if msg == "" {
		return "", false
	}
	if last != "" && strings.Contains(last, msg) {
		return "", false
	}
	return msg, true
}

// Entries returns a copy of the log.
func (l *Log) Entries() []domain.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.LogEntry(nil), l.entries...)
}

// Since returns entries with sequence strictly greater than seq.
func (l *Log) Since(seq int64) []domain.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.LogEntry, 0, len(l.entries))
	for _, entry := range l.entries {
		if entry.Seq > seq {
			out = append(out, entry)
		}
	}
	return out
}

// Len reports the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Texts returns just the entry texts, oldest first.
func (l *Log) Texts() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entries))
	for i, entry := range l.entries {
		out[i] = entry.Text
	}
	return out
}

func (l *Log) lastTextLocked() string {
	if len(l.entries) == 0 {
		return ""
	}
	return l.entries[len(l.entries)-1].Text
}

func (l *Log) appendLocked(text string) domain.LogEntry {
	l.nextSeq++
	entry := domain.LogEntry{Seq: l.nextSeq, Timestamp: l.now().UTC(), Text: text}
	l.entries = append(l.entries, entry)
	return entry
}
