package sim

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/robot-brain/internal/protocol"
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

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newRobot(c *clock, opts ...Option) *Robot {
	base := []Option{WithClock(c.Now), WithRand(rand.New(rand.NewPCG(1, 2)))}
	return New(append(base, opts...)...)
}

func TestDrivingClosesGap(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	r := newRobot(c, WithDistance(100))

	require.NoError(t, r.Forward(ctx, 20))
	c.Advance(2 * time.Second)
	d, err := r.ReadDistance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 80, d, 0.001)

	moving, err := r.WheelsMoving(ctx)
	require.NoError(t, err)
	assert.True(t, moving)

	require.NoError(t, r.Backward(ctx, 20))
	c.Advance(time.Second)
	d, _ = r.ReadDistance(ctx)
	assert.InDelta(t, 90, d, 0.001)
}

func TestWheelsStallAgainstWall(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	r := newRobot(c, WithDistance(10))

	require.NoError(t, r.Forward(ctx, 20))
	c.Advance(10 * time.Second)
	d, _ := r.ReadDistance(ctx)
	assert.Equal(t, MinDistance, d)

	moving, _ := r.WheelsMoving(ctx)
	assert.False(t, moving)

	require.NoError(t, r.Stop(ctx))
	moving, _ = r.WheelsMoving(ctx)
	assert.False(t, moving)
}

func TestSteeringFacesNewWall(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	r := newRobot(c, WithDistance(MinDistance))

	require.NoError(t, r.Steer(ctx, 30))
	d, _ := r.ReadDistance(ctx)
	assert.GreaterOrEqual(t, d, 20.0)
	assert.LessOrEqual(t, d, MaxDistance)

	require.NoError(t, r.Steer(ctx, 0))
	again, _ := r.ReadDistance(ctx)
	assert.Equal(t, d, again, "centering keeps the heading")
}

func TestBatteryDrains(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	r := newRobot(c, WithBattery(50, 10))

	c.Advance(90 * time.Second)
	pct, err := r.ReadBattery(ctx)
	require.NoError(t, err)
	assert.Equal(t, 35, pct)

	r.SetBattery(4)
	pct, _ = r.ReadBattery(ctx)
	assert.Equal(t, 4, pct)
}

func TestCliffAndHead(t *testing.T) {
	ctx := context.Background()
	r := New()
	edge, _ := r.ReadCliff(ctx)
	assert.False(t, edge)
	r.SetCliff(true)
	edge, _ = r.ReadCliff(ctx)
	assert.True(t, edge)

	require.NoError(t, r.Pan(ctx, -45))
	require.NoError(t, r.Tilt(ctx, 30))
	pan, tilt := r.Head()
	assert.Equal(t, -45, pan)
	assert.Equal(t, 30, tilt)

	_, ok := r.ReadJoystick(ctx)
	assert.False(t, ok)
}

func TestConsoleLineIsWakeWordAndUtterance(t *testing.T) {
	ctx := context.Background()
	in, w := io.Pipe()
	var out bytes.Buffer
	c := NewConsole(in, &out)

	go func() { _, _ = io.WriteString(w, "hej robot hur mår du\n") }()
	heard, err := c.WaitForWakeWord(ctx, 5*time.Second)
	require.NoError(t, err)
	require.True(t, heard)

	audio, err := c.Record(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hej robot hur mår du", string(audio))

	require.NoError(t, c.Speak(ctx, "Jag mår bra!"))
	assert.Equal(t, "robot> Jag mår bra!\n", out.String())

	require.NoError(t, w.Close())
	<-c.Done()
	_, err = c.WaitForWakeWord(ctx, time.Second)
	assert.ErrorIs(t, err, io.EOF)
}

func TestConsoleBlankLineThenUtterance(t *testing.T) {
	ctx := context.Background()
	c := NewConsole(strings.NewReader("\nvad ser du\n"), io.Discard)

	heard, err := c.WaitForWakeWord(ctx, 5*time.Second)
	require.NoError(t, err)
	require.True(t, heard)

	audio, err := c.Record(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vad ser du", string(audio))
}

func TestConsoleWaitTimesOut(t *testing.T) {
	in, w := io.Pipe()
	defer w.Close()
	c := NewConsole(in, io.Discard)

	heard, err := c.WaitForWakeWord(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, heard)
	assert.False(t, c.Detected())
}

func TestConsoleDetectedKeepsLine(t *testing.T) {
	in, w := io.Pipe()
	c := NewConsole(in, io.Discard)
	go func() { _, _ = io.WriteString(w, "stopp där\n") }()

	require.Eventually(t, c.Detected, 2*time.Second, 5*time.Millisecond)
	audio, err := c.Record(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stopp där", string(audio))
	w.Close()
}

func TestScenesCycle(t *testing.T) {
	s := NewScenes("a", "b")
	var got []string
	for range 3 {
		d, err := s.DescribeScene(context.Background(), nil)
		require.NoError(t, err)
		got = append(got, d)
	}
	assert.Equal(t, []string{"a", "b", "a"}, got)

	cam := &Camera{}
	f1, _ := cam.Capture(context.Background())
	f2, _ := cam.Capture(context.Background())
	assert.NotEqual(t, f1, f2)
}

func TestParrotSpeaksProtocol(t *testing.T) {
	reply, err := Parrot{}.Complete(context.Background(), "persona", "Jag heter Leon")
	require.NoError(t, err)

	p := protocol.Parse(reply)
	assert.Equal(t, []string{"nod"}, p.Actions)
	assert.Equal(t, "Du sa: Jag heter Leon", p.Speech)
	require.NotNil(t, p.Memory)

	reply, _ = Parrot{}.Complete(context.Background(), "persona", "[SYSTEM: Batteri: 18%.]")
	assert.Equal(t, []string{"look_around"}, protocol.Parse(reply).Actions)
}

func TestExecSink(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	var out bytes.Buffer
	sink := ExecSink{Command: []string{"cat"}, Stdout: &out}
	require.NoError(t, sink.Play(context.Background(), strings.NewReader("pcm bytes")))
	assert.Equal(t, "pcm bytes", out.String())

	require.NoError(t, ExecSink{}.Play(context.Background(), strings.NewReader("dropped")))

	err := ExecSink{Command: []string{"definitely-not-a-player"}}.Play(context.Background(), strings.NewReader("x"))
	assert.Error(t, err)
}
