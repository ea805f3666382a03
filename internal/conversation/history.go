package conversation

import (
	"sync"

	"github.com/rcliao/robot-brain/internal/robot"
)

// DefaultHistoryPairs is how many user/assistant exchanges are kept.
const DefaultHistoryPairs = 10

// History is the rolling chat history sent with user turns. The system
// prompt is not stored; it is rebuilt for every call.
type History struct {
	mu       sync.Mutex
	maxPairs int
	msgs     []robot.Message
}

// NewHistory keeps at most maxPairs exchanges.
func NewHistory(maxPairs int) *History {
	if maxPairs <= 0 {
		maxPairs = DefaultHistoryPairs
	}
	return &History{maxPairs: maxPairs}
}

// With returns the stored messages followed by a pending user message.
func (h *History) With(user string) []robot.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]robot.Message, 0, len(h.msgs)+1)
	out = append(out, h.msgs...)
	return append(out, robot.Message{Role: robot.RoleUser, Content: user})
}

// Add records a completed exchange and drops the oldest beyond the cap.
// Failed exchanges are never added.
func (h *History) Add(user, assistant string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs,
		robot.Message{Role: robot.RoleUser, Content: user},
		robot.Message{Role: robot.RoleAssistant, Content: assistant})
	if excess := len(h.msgs) - 2*h.maxPairs; excess > 0 {
		h.msgs = append([]robot.Message(nil), h.msgs[excess:]...)
	}
}

// Len returns the number of stored messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

// Reset forgets every exchange.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = nil
}
