package email

import (
	"context"
	"sync"
)

// MemoryTransport keeps sent messages in memory. Set Err to make Send fail.
type MemoryTransport struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

// NewMemoryTransport creates an empty MemoryTransport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

func (t *MemoryTransport) Send(_ context.Context, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return t.Err
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	t.messages = append(t.messages, msg)
	return nil
}

// Messages returns a copy of everything sent so far.
func (t *MemoryTransport) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Last returns the most recent message sent to the recipient.
func (t *MemoryTransport) Last(to string) (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].To == to {
			return t.messages[i], true
		}
	}
	return Message{}, false
}

// Reset drops all recorded messages.
func (t *MemoryTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}
