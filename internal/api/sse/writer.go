// Package sse writes server-sent event streams for the operator console.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// EventSnapshot is the first event of the operator event stream.
const EventSnapshot = "snapshot"

// ErrStreamingUnsupported is returned when the response cannot be flushed.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// Writer frames JSON payloads as server-sent events. Each event gets a
// monotonically increasing id so browsers can report Last-Event-ID.
// A Writer is not safe for concurrent use.
type Writer struct {
	rw      http.ResponseWriter
	flusher http.Flusher
	seq     uint64
}

// NewWriter prepares rw for streaming.
func NewWriter(rw http.ResponseWriter) (*Writer, error) {
	flusher, ok := rw.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := rw.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &Writer{rw: rw, flusher: flusher}, nil
}

// WriteJSON sends v as the data of an event named event.
func (w *Writer) WriteJSON(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}

	w.seq++
	buf := make([]byte, 0, len(data)+len(event)+32)
	buf = append(buf, "id: "...)
	buf = strconv.AppendUint(buf, w.seq, 10)
	buf = append(buf, "\nevent: "...)
	buf = append(buf, event...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, data...)
	buf = append(buf, "\n\n"...)
	return w.write(buf)
}

// WriteKeepAlive sends a comment line so idle proxies keep the stream open.
func (w *Writer) WriteKeepAlive() error {
	return w.write([]byte(": keepalive\n\n"))
}

func (w *Writer) write(b []byte) error {
	if _, err := w.rw.Write(b); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}
