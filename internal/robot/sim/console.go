package sim

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Console stands in for the microphone and speaker. Every line typed counts
// as hearing the wake word; a non-blank line is also the utterance that
// follows it. Replies are printed.
type Console struct {
	lines chan string
	done  chan struct{}

	mu      sync.Mutex
	out     io.Writer
	pending []string
}

// NewConsole reads lines from in and prints speech to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{
		lines: make(chan string),
		done:  make(chan struct{}),
		out:   out,
	}
	go c.read(in)
	return c
}

func (c *Console) read(in io.Reader) {
	defer close(c.done)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		c.lines <- sc.Text()
	}
}

// Done is closed when the input is exhausted.
func (c *Console) Done() <-chan struct{} { return c.done }

func (c *Console) heard(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	c.mu.Lock()
	c.pending = append(c.pending, line)
	c.mu.Unlock()
}

func (c *Console) pop() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return "", false
	}
	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, true
}

func (c *Console) hasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0
}

// WaitForWakeWord waits up to timeout for a line.
func (c *Console) WaitForWakeWord(ctx context.Context, timeout time.Duration) (bool, error) {
	if c.hasPending() {
		return true, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case line := <-c.lines:
		c.heard(line)
		return true, nil
	case <-c.done:
		return false, io.EOF
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Record returns the pending utterance or waits for the next non-blank line.
func (c *Console) Record(ctx context.Context) ([]byte, error) {
	for {
		if line, ok := c.pop(); ok {
			return []byte(line), nil
		}
		select {
		case line := <-c.lines:
			c.heard(line)
		case <-c.done:
			return nil, io.EOF
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Detected reports a line typed since the last check without blocking.
func (c *Console) Detected() bool {
	select {
	case line := <-c.lines:
		c.heard(line)
		return true
	default:
		return false
	}
}

// Speak prints text as the robot's line.
func (c *Console) Speak(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "robot> %s\n", text)
	return err
}

// Echo transcribes typed "audio" as itself.
type Echo struct{}

// Transcribe returns audio as text.
func (Echo) Transcribe(_ context.Context, audio []byte) (string, error) {
	return strings.TrimSpace(string(audio)), nil
}
