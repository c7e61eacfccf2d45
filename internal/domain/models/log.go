package models

import "time"

// LogType classifies a session log entry.
type LogType string

const (
	LogTypeIncoming LogType = "incoming"
	LogTypeOutgoing LogType = "outgoing"
	LogTypeSystem   LogType = "system"
)

// LogEntry is one line of a session's operator-visible log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Type      LogType   `json:"type"`
}
