package explore

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rcliao/robot-brain/internal/actions"
	"github.com/rcliao/robot-brain/internal/conversation"
	"github.com/rcliao/robot-brain/internal/mode"
	"github.com/rcliao/robot-brain/internal/model"
	"github.com/rcliao/robot-brain/internal/robot"
)

// journal records motor commands and mode transitions in one sequence.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.entries = append(j.entries, s)
	j.mu.Unlock()
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type motors struct{ j *journal }

func (m motors) Forward(_ context.Context, s int) error {
	m.j.add(fmt.Sprintf("forward %d", s))
	return nil
}
func (m motors) Backward(_ context.Context, s int) error {
	m.j.add(fmt.Sprintf("backward %d", s))
	return nil
}
func (m motors) Steer(_ context.Context, a int) error {
	m.j.add(fmt.Sprintf("steer %d", a))
	return nil
}
func (m motors) Stop(context.Context) error          { m.j.add("stop"); return nil }
func (m motors) Pan(_ context.Context, a int) error  { m.j.add(fmt.Sprintf("pan %d", a)); return nil }
func (m motors) Tilt(_ context.Context, a int) error { m.j.add(fmt.Sprintf("tilt %d", a)); return nil }

// sensors answers each read from a function of the read count.
type sensors struct {
	mu       sync.Mutex
	reads    int
	distance func(n int) (float64, error)
	cliff    func(n int) (bool, error)
	joystick func(n int) (robot.Joystick, bool)
	wheels   func(n int) (bool, error)
}

func (s *sensors) tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.reads
}

func (s *sensors) ReadDistance(context.Context) (float64, error) {
	n := s.tick()
	if s.distance == nil {
		return 80, nil
	}
	return s.distance(n)
}

func (s *sensors) ReadCliff(context.Context) (bool, error) {
	if s.cliff == nil {
		return false, nil
	}
	return s.cliff(s.reads)
}

func (s *sensors) ReadJoystick(context.Context) (robot.Joystick, bool) {
	if s.joystick == nil {
		return robot.Joystick{}, false
	}
	return s.joystick(s.reads)
}

func (s *sensors) ReadBattery(context.Context) (int, error) { return 90, nil }

func (s *sensors) WheelsMoving(context.Context) (bool, error) {
	if s.wheels == nil {
		return true, nil
	}
	return s.wheels(s.reads)
}

// clock is a fake time source advanced by sleeping.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)} }

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

type wakeAfter struct {
	mu    sync.Mutex
	calls int
	after int
}

func (w *wakeAfter) Detected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return w.after > 0 && w.calls >= w.after
}

type camera struct{}

func (camera) Capture(context.Context) ([]byte, error) { return []byte("frame"), nil }

type brokenCamera struct{}

func (brokenCamera) Capture(context.Context) ([]byte, error) { return nil, errors.New("no frame") }

// scenes returns descriptions in order, repeating the last.
type scenes struct {
	mu   sync.Mutex
	list []string
	n    int
}

func (s *scenes) DescribeScene(context.Context, []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.n, len(s.list)-1)
	s.n++
	return s.list[i], nil
}

type narrator struct {
	mu     sync.Mutex
	events []mode.SystemEvent
}

func (n *narrator) Narrate(_ context.Context, ev mode.SystemEvent) conversation.Result {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
	return conversation.Result{}
}

func (n *narrator) Events() []mode.SystemEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]mode.SystemEvent(nil), n.events...)
}

type harness struct {
	j       *journal
	sensors *sensors
	clock   *clock
	machine *mode.Machine
}

// newHarness builds an exploring machine whose transitions land in the same
// journal as the motor commands.
func newHarness() *harness {
	h := &harness{j: &journal{}, sensors: &sensors{}, clock: newClock()}
	h.machine = mode.New(mode.DefaultConfig(), mode.WithInitial(mode.Exploring), mode.WithClock(h.clock.Now))
	h.machine.Subscribe(func(t mode.Transition) { h.j.add("mode " + string(t.To)) })
	return h
}

func (h *harness) explorer(cfg Config, opts ...Option) *Explorer {
	base := []Option{
		WithClock(h.clock.Now),
		WithSleep(h.clock.Sleep),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	}
	return New(cfg, motors{h.j}, h.sensors, h.machine, append(base, opts...)...)
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// heardOnce is a wake word that fires once after it has been armed.
type heardOnce struct {
	mu    sync.Mutex
	armed bool
}

func (w *heardOnce) arm() {
	w.mu.Lock()
	w.armed = true
	w.mu.Unlock()
}

func (w *heardOnce) Detected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		return false
	}
	w.armed = false
	return true
}

type reply string

func (r reply) Complete(context.Context, string, string) (string, error) { return string(r), nil }

type plainPrompt struct{}

func (plainPrompt) SystemPrompt(digest string) string { return "robot\n" + digest }

type noMemory struct{}

func (noMemory) FormatForPrompt() string { return "" }

func (noMemory) AddObservation(context.Context, model.Entity, string) error { return nil }

type gestures struct{ j *journal }

func (g gestures) Perform(_ context.Context, name string) error {
	g.j.add("act " + name)
	return nil
}

// voice journals each sentence and hears the wake word while speaking.
type voice struct {
	j    *journal
	wake *heardOnce
}

func (v voice) Speak(_ context.Context, text string) error {
	v.j.add("say " + text)
	v.wake.arm()
	return nil
}

// pipeline builds a real conversation pipeline that shares the wake word with
// the explorer.
func (h *harness) pipeline(raw string, wake *heardOnce) *conversation.Pipeline {
	d := robot.NewDispatcher(actions.Default(), h.machine, gestures{h.j}, robot.WithDispatchSleep(h.clock.Sleep))
	return conversation.NewPipeline(reply(raw), plainPrompt{}, noMemory{}, d, voice{h.j, wake},
		conversation.WithWakeWord(wake),
	)
}
