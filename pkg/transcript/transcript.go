// Package transcript is the append-only terminal log: submitted commands,
// produced output, and errors, in arrival order. Entries are never edited,
// reordered, or deduplicated; the only mutation besides append is a full
// clear.
package transcript

import (
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/codecanvas/pkg/metrics"
)

// Kind classifies a transcript entry.
type Kind string

const (
	KindCommand Kind = "command"
	KindOutput  Kind = "output"
	KindError   Kind = "error"
)

// Entry is one line of the transcript.
type Entry struct {
	ID   string
	Kind Kind
	Text string
}

// Observer is notified synchronously on every append, in append order.
type Observer func(Entry)

// Log is the transcript store.
type Log struct {
	mu       sync.Mutex
	entries  []Entry
	observer Observer
}

// New constructs an empty transcript.
func New() *Log {
	return &Log{}
}

// SetObserver installs the presentation-layer callback. Passing nil removes
// it.
func (l *Log) SetObserver(obs Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observer = obs
}

// Append adds an entry and returns it with its generated id.
func (l *Log) Append(kind Kind, text string) Entry {
	l.mu.Lock()
	entry := Entry{
		ID:   ulid.Make().String(),
		Kind: kind,
		Text: text,
	}
	l.entries = append(l.entries, entry)
	obs := l.observer
	l.mu.Unlock()

	metrics.TranscriptEntries.WithLabelValues(string(kind)).Inc()
	if obs != nil {
		obs(entry)
	}
	return entry
}

// Command appends a command entry.
func (l *Log) Command(text string) Entry { return l.Append(KindCommand, text) }

// Output appends an output entry.
func (l *Log) Output(text string) Entry { return l.Append(KindOutput, text) }

// Error appends an error entry.
func (l *Log) Error(text string) Entry { return l.Append(KindError, text) }

// Entries returns a snapshot of the log in append order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear wipes the transcript. Only an explicit user action calls this.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
