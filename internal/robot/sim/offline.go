package sim

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Camera returns numbered placeholder frames.
type Camera struct {
	mu sync.Mutex
	n  int
}

// Capture returns the next frame.
func (c *Camera) Capture(context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return []byte(fmt.Sprintf("frame-%d", c.n)), nil
}

// Rooms are the scenes the offline describer cycles through.
var Rooms = []string{
	"En tom hall med ett grått golv.",
	"En soffa med en röd filt och två kuddar.",
	"Ett köksbord med fyra stolar runt.",
	"En bokhylla full med färgglada böcker.",
	"En sovande katt på en matta.",
}

// Scenes describes frames by cycling through a fixed list of rooms.
type Scenes struct {
	mu    sync.Mutex
	rooms []string
	n     int
}

// NewScenes cycles through rooms, or Rooms when none are given.
func NewScenes(rooms ...string) *Scenes {
	if len(rooms) == 0 {
		rooms = Rooms
	}
	return &Scenes{rooms: rooms}
}

// DescribeScene returns the next room.
func (s *Scenes) DescribeScene(context.Context, []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.rooms[s.n%len(s.rooms)]
	s.n++
	return d, nil
}

// Parrot is an offline language model. It nods and repeats what it was
// told, and remembers utterances that mention the user's name.
type Parrot struct{}

// Complete answers message in the reply protocol.
func (Parrot) Complete(_ context.Context, _, message string) (string, error) {
	message = strings.TrimSpace(message)
	if strings.HasPrefix(message, "[SYSTEM:") {
		return "ACTIONS: look_around\nHmm, något hände!", nil
	}
	var b strings.Builder
	b.WriteString("ACTIONS: nod\n")
	fmt.Fprintf(&b, "Du sa: %s\n", message)
	if strings.Contains(strings.ToLower(message), "jag heter") {
		fmt.Fprintf(&b, "MEMORY: %s\n", message)
	}
	return b.String(), nil
}

// ExecSink plays audio by piping it into an external player such as aplay.
type ExecSink struct {
	Command []string
	Stdout  io.Writer
}

// Play runs the player with audio on stdin and waits for it to finish.
func (s ExecSink) Play(ctx context.Context, audio io.Reader) error {
	if len(s.Command) == 0 {
		_, err := io.Copy(io.Discard, audio)
		return err
	}
	cmd := exec.CommandContext(ctx, s.Command[0], s.Command[1:]...)
	cmd.Stdin = audio
	cmd.Stdout = s.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("play audio with %s: %w", s.Command[0], err)
	}
	log.Debug().Str("component", "sim").Str("player", s.Command[0]).Msg("audio played")
	return nil
}
