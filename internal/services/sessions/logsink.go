package sessions

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// LogCapacity is the number of entries a session keeps.
const LogCapacity = 1000

// LogSink is a bounded ring of a session's recent log entries. When full,
// the oldest entry is evicted.
type LogSink struct {
	mu      sync.Mutex
	entries []models.LogEntry
	start   int
	size    int
	notify  func(models.LogEntry)
}

// NewLogSink creates a sink. notify, when set, is called for every entry
// after it is stored.
func NewLogSink(capacity int, notify func(models.LogEntry)) *LogSink {
	if capacity <= 0 {
		capacity = LogCapacity
	}
	return &LogSink{entries: make([]models.LogEntry, capacity), notify: notify}
}

// Append stores an entry.
func (s *LogSink) Append(e models.LogEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	idx := (s.start + s.size) % len(s.entries)
	s.entries[idx] = e
	if s.size < len(s.entries) {
		s.size++
	} else {
		s.start = (s.start + 1) % len(s.entries)
	}
	s.mu.Unlock()

	if s.notify != nil {
		s.notify(e)
	}
}

// Entries returns the stored entries, oldest first.
func (s *LogSink) Entries() []models.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LogEntry, s.size)
	for i := 0; i < s.size; i++ {
		out[i] = s.entries[(s.start+i)%len(s.entries)]
	}
	return out
}

// Len returns the number of stored entries.
func (s *LogSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Hook returns a zerolog hook copying info-and-above events into the sink
// as system entries.
func (s *LogSink) Hook() zerolog.Hook {
	return sinkHook{sink: s}
}

type sinkHook struct {
	sink *LogSink
}

func (h sinkHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.InfoLevel || level == zerolog.NoLevel || msg == "" {
		return
	}
	h.sink.Append(models.LogEntry{
		Level:   level.String(),
		Message: msg,
		Type:    models.LogTypeSystem,
	})
}
