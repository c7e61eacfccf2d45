package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// SentMessage is one message captured by RecordingSender.
type SentMessage struct {
	To  string
	Msg models.OutboundMessage
}

// RecordingSender captures outbound messages. Err, when set, is returned
// from every Send after recording.
type RecordingSender struct {
	mu   sync.Mutex
	sent []SentMessage
	Err  error
}

// Send records the message.
func (s *RecordingSender) Send(_ context.Context, to string, msg models.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, SentMessage{To: to, Msg: msg})
	return s.Err
}

// Sent returns a copy of the recorded messages.
func (s *RecordingSender) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

// Texts returns the text (or caption) of every recorded message.
func (s *RecordingSender) Texts() []string {
	var texts []string
	for _, m := range s.Sent() {
		if m.Msg.Text != "" {
			texts = append(texts, m.Msg.Text)
		} else {
			texts = append(texts, m.Msg.Caption)
		}
	}
	return texts
}

// MockSender is a mock outbound sender.
type MockSender struct {
	mock.Mock
}

// Send records the call.
func (m *MockSender) Send(ctx context.Context, to string, msg models.OutboundMessage) error {
	args := m.Called(ctx, to, msg)
	return args.Error(0)
}
