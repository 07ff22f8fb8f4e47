// Package progress carries download progress from the fetch workers to
// whoever is watching. Reporting never blocks a worker.
package progress

import (
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Kind distinguishes progress events.
type Kind int

const (
	// Bytes reports transfer progress of one artifact.
	Bytes Kind = iota
	// ArtifactDone reports that one artifact is present and verified.
	ArtifactDone
	// Completed is the terminal event of a successful run.
	Completed
	// Failed is the terminal event of a failed run; Err holds the reason.
	Failed
	// Cancelled is the terminal event of a cancelled run.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Bytes:
		return "bytes"
	case ArtifactDone:
		return "artifact-done"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the kind ends a run.
func (k Kind) Terminal() bool {
	return k == Completed || k == Failed || k == Cancelled
}

// Event is one progress update.
type Event struct {
	Kind       Kind
	ArtifactID string
	BytesDone  int64
	BytesTotal int64
	// Completed and Total count artifacts across the whole run.
	Completed int
	Total     int
	Err       error
}

// Sink receives events. Implementations must not block.
type Sink interface {
	Report(Event)
}

// Func adapts a function to a Sink.
type Func func(Event)

// Report calls f.
func (f Func) Report(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = Func(func(Event) {})

// Buffer is a bounded Sink. When full, the oldest pending event is dropped
// to make room, so slow consumers lose intermediate updates, not recent ones.
type Buffer struct {
	mu      sync.Mutex
	ch      chan Event
	dropped uint64
	closed  bool
}

// NewBuffer returns a Buffer holding up to size pending events.
func NewBuffer(size int) *Buffer {
	if size < 1 {
		size = 1
	}
	return &Buffer{ch: make(chan Event, size)}
}

// Report enqueues e, evicting the oldest pending event if necessary.
func (b *Buffer) Report(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for {
		select {
		case b.ch <- e:
			return
		default:
		}
		select {
		case <-b.ch:
			b.dropped++
		default:
		}
	}
}

// Events returns the channel consumers read from. It is closed by Close.
func (b *Buffer) Events() <-chan Event {
	return b.ch
}

// Dropped returns how many events were evicted.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close stops accepting events and closes the channel.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}

// Log returns a Sink that writes artifact completions and terminal events to logger.
func Log(logger hclog.Logger) Sink {
	return Func(func(e Event) {
		switch e.Kind {
		case ArtifactDone:
			logger.Debug("📦 Artifact ready", "artifact", e.ArtifactID, "done", e.Completed, "total", e.Total)
		case Completed:
			logger.Info("✅ All artifacts ready", "total", e.Total)
		case Failed:
			logger.Error("❌ Fetch failed", "done", e.Completed, "total", e.Total, "error", e.Err)
		case Cancelled:
			logger.Warn("🛑 Fetch cancelled", "done", e.Completed, "total", e.Total)
		}
	})
}

// Tee reports every event to each sink in order.
func Tee(sinks ...Sink) Sink {
	return Func(func(e Event) {
		for _, s := range sinks {
			s.Report(e)
		}
	})
}
