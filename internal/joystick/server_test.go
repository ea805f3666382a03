package joystick

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestLatestStaleness(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	s := NewServer(0, WithClock(c.Now))

	_, ok := s.Latest()
	assert.False(t, ok, "no frame yet")

	s.Update(Frame{K: []float64{-20, 60}})
	js, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, robot.Joystick{X: -20, Y: 60}, js)

	c.Advance(DefaultStale)
	_, ok = s.Latest()
	assert.True(t, ok)

	c.Advance(time.Millisecond)
	_, ok = s.Latest()
	assert.False(t, ok)
}

func TestUpdateClampsAndIgnoresPartialFrames(t *testing.T) {
	s := NewServer(time.Minute)
	s.Update(Frame{K: []float64{250, -180.7}})
	js, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, robot.Joystick{X: 100, Y: -100}, js)

	s.Update(Frame{K: []float64{10}})
	s.Update(Frame{})
	js, _ = s.Latest()
	assert.Equal(t, robot.Joystick{X: 100, Y: -100}, js)
}

func TestWebsocketFrames(t *testing.T) {
	s := NewServer(time.Minute)
	srv := httptest.NewServer(s)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"K":[12,-40],"A":true}`)))

	require.Eventually(t, func() bool {
		js, ok := s.Latest()
		return ok && js == robot.Joystick{X: 12, Y: -40}
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.Clients())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return s.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestListenAndServeStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(0).ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
}

type motors struct{ calls []string }

func (m *motors) Forward(_ context.Context, s int) error {
	m.calls = append(m.calls, fmt.Sprintf("forward %d", s))
	return nil
}
func (m *motors) Backward(_ context.Context, s int) error {
	m.calls = append(m.calls, fmt.Sprintf("backward %d", s))
	return nil
}
func (m *motors) Steer(_ context.Context, a int) error {
	m.calls = append(m.calls, fmt.Sprintf("steer %d", a))
	return nil
}
func (m *motors) Stop(context.Context) error      { m.calls = append(m.calls, "stop"); return nil }
func (m *motors) Pan(context.Context, int) error  { return nil }
func (m *motors) Tilt(context.Context, int) error { return nil }

func TestDrive(t *testing.T) {
	tests := []struct {
		name  string
		stick robot.Joystick
		want  []string
	}{
		{"forward right", robot.Joystick{X: 100, Y: 50}, []string{"steer 30", "forward 50"}},
		{"backward left", robot.Joystick{X: -50, Y: -60}, []string{"steer -15", "backward 60"}},
		{"dead zone stops", robot.Joystick{X: 0, Y: 4}, []string{"steer 0", "stop"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &motors{}
			require.NoError(t, Drive(context.Background(), m, tt.stick))
			assert.Equal(t, tt.want, m.calls)
		})
	}
}

type baseSensors struct{}

func (baseSensors) ReadDistance(context.Context) (float64, error) { return 42, nil }
func (baseSensors) ReadCliff(context.Context) (bool, error)       { return false, nil }
func (baseSensors) ReadJoystick(context.Context) (robot.Joystick, bool) {
	return robot.Joystick{X: 99, Y: 99}, true
}
func (baseSensors) ReadBattery(context.Context) (int, error)   { return 80, nil }
func (baseSensors) WheelsMoving(context.Context) (bool, error) { return true, nil }

func TestWithSensorsOverridesStick(t *testing.T) {
	s := NewServer(time.Minute)
	sens := WithSensors(baseSensors{}, s)

	_, ok := sens.ReadJoystick(context.Background())
	assert.False(t, ok)

	s.Update(Frame{K: []float64{0, 30}})
	js, ok := sens.ReadJoystick(context.Background())
	require.True(t, ok)
	assert.Equal(t, robot.Joystick{Y: 30}, js)

	d, err := sens.ReadDistance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42.0, d)
}
