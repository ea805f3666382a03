package conversation

import (
	"context"
	"errors"
	"sync"

	"github.com/rcliao/robot-brain/internal/model"
	"github.com/rcliao/robot-brain/internal/robot"
)

// scriptedLLM replies from a queue; an error entry fails that call.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []any
	systems  []string
	messages []string
	history  [][]robot.Message
}

func (s *scriptedLLM) next() (string, error) {
	if len(s.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	if err, ok := r.(error); ok {
		return "", err
	}
	return r.(string), nil
}

func (s *scriptedLLM) Complete(_ context.Context, system, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systems = append(s.systems, system)
	s.messages = append(s.messages, message)
	return s.next()
}

// chatLLM additionally records the history it was sent.
type chatLLM struct{ scriptedLLM }

func (c *chatLLM) Chat(_ context.Context, system string, history []robot.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.systems = append(c.systems, system)
	c.history = append(c.history, history)
	return c.next()
}

type speakerRec struct {
	said []string
	err  error
}

func (s *speakerRec) Speak(_ context.Context, text string) error {
	if s.err != nil {
		return s.err
	}
	s.said = append(s.said, text)
	return nil
}

type actuatorRec struct{ calls []string }

func (a *actuatorRec) Perform(_ context.Context, name string) error {
	a.calls = append(a.calls, name)
	return nil
}

type memoryRec struct {
	digest string
	notes  []model.MemoryNote
	err    error
}

func (m *memoryRec) FormatForPrompt() string { return m.digest }

func (m *memoryRec) AddObservation(_ context.Context, e model.Entity, text string) error {
	if m.err != nil {
		return m.err
	}
	m.notes = append(m.notes, model.MemoryNote{Entity: e, Observation: text})
	return nil
}

type prompter struct{}

func (prompter) SystemPrompt(digest string) string {
	if digest == "" {
		return "persona"
	}
	return "persona\n\n" + digest
}

// wakeAfter reports the wake word from the nth check on.
type wakeAfter struct {
	n, checks int
}

func (w *wakeAfter) Detected() bool {
	w.checks++
	return w.checks >= w.n
}

type transcriberFunc func(ctx context.Context, audio []byte) (string, error)

func (f transcriberFunc) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return f(ctx, audio)
}
