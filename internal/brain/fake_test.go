package brain

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rcliao/robot-brain/internal/actions"
	"github.com/rcliao/robot-brain/internal/conversation"
	"github.com/rcliao/robot-brain/internal/explore"
	"github.com/rcliao/robot-brain/internal/mode"
	"github.com/rcliao/robot-brain/internal/model"
	"github.com/rcliao/robot-brain/internal/robot"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
	return nil
}

// listener hears the wake word per the waits script and hands out recordings
// in order. When the waits run out it cancels the run.
type listener struct {
	mu         sync.Mutex
	waits      []bool
	recordings []string
	waitCalls  int
	cancel     context.CancelFunc
}

func (l *listener) WaitForWakeWord(context.Context, time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waitCalls++
	if len(l.waits) == 0 {
		l.cancel()
		return false, nil
	}
	heard := l.waits[0]
	l.waits = l.waits[1:]
	return heard, nil
}

func (l *listener) Record(context.Context) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.recordings) == 0 {
		return nil, errors.New("microphone unplugged")
	}
	r := l.recordings[0]
	l.recordings = l.recordings[1:]
	return []byte(r), nil
}

type echoTranscriber struct{}

func (echoTranscriber) Transcribe(_ context.Context, audio []byte) (string, error) {
	return string(audio), nil
}

// llm answers every call with reply and records the messages it was sent.
type llm struct {
	mu       sync.Mutex
	reply    string
	messages []string
	onCall   func(message string)
}

func (l *llm) Complete(_ context.Context, _, message string) (string, error) {
	l.mu.Lock()
	l.messages = append(l.messages, message)
	fn := l.onCall
	l.mu.Unlock()
	if fn != nil {
		fn(message)
	}
	return l.reply, nil
}

func (l *llm) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

type speaker struct {
	mu   sync.Mutex
	said []string
}

func (s *speaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	s.said = append(s.said, text)
	s.mu.Unlock()
	return nil
}

func (s *speaker) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.said, " ")
}

type actuator struct{}

func (actuator) Perform(context.Context, string) error { return nil }

type memory struct{}

func (memory) FormatForPrompt() string { return "" }
func (memory) AddObservation(context.Context, model.Entity, string) error {
	return nil
}

type prompter struct{}

func (prompter) SystemPrompt(string) string { return "persona" }

type sensors struct {
	battery  int
	joystick robot.Joystick
}

func (s *sensors) ReadDistance(context.Context) (float64, error) { return 80, nil }
func (s *sensors) ReadCliff(context.Context) (bool, error)       { return false, nil }
func (s *sensors) ReadJoystick(context.Context) (robot.Joystick, bool) {
	return s.joystick, s.joystick.Active()
}
func (s *sensors) ReadBattery(context.Context) (int, error)   { return s.battery, nil }
func (s *sensors) WheelsMoving(context.Context) (bool, error) { return true, nil }

type explorer struct {
	calls int
	run   func() explore.Reason
}

func (e *explorer) Run(context.Context) (explore.Reason, error) {
	e.calls++
	return e.run(), nil
}

type harness struct {
	ctx      context.Context
	clock    *clock
	machine  *mode.Machine
	listener *listener
	llm      *llm
	speaker  *speaker
	sensors  *sensors
}

func noSleep(context.Context, time.Duration) error { return nil }

func newHarness(t *testing.T, initial mode.Mode) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{
		ctx:      ctx,
		clock:    &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		listener: &listener{cancel: cancel},
		llm:      &llm{reply: "Okej!"},
		speaker:  &speaker{},
		sensors:  &sensors{battery: 90},
	}
	h.machine = mode.New(mode.DefaultConfig(), mode.WithInitial(initial), mode.WithClock(h.clock.Now))
	return h
}

func (h *harness) supervisor(ex Explorer) *Supervisor {
	d := robot.NewDispatcher(actions.Default(), h.machine, actuator{}, robot.WithDispatchSleep(noSleep))
	p := conversation.NewPipeline(h.llm, prompter{}, memory{}, d, h.speaker,
		conversation.WithRetry(robot.RetryPolicy{Attempts: 1, Sleep: noSleep}))
	loop := conversation.NewLoop(p, echoTranscriber{}, h.machine)

	cfg := DefaultConfig()
	cfg.RideMin, cfg.RideMax = 10*time.Second, 10*time.Second
	return New(cfg, h.machine, loop, h.sensors, h.listener, ex,
		WithClock(h.clock.Now),
		WithSleep(h.clock.Sleep),
		WithRand(rand.New(rand.NewPCG(3, 4))),
	)
}
