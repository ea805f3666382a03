// Package sim provides a simulated robot so the brain can run on a laptop:
// a drivetrain moving through a one-dimensional room, a console standing in
// for the microphone and speaker, and a canned camera.
package sim

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rcliao/robot-brain/internal/robot"
)

// Room limits in centimeters.
const (
	MinDistance = 5.0
	MaxDistance = 200.0
)

// cmPerSpeed is how far one unit of speed moves the car per second.
const cmPerSpeed = 0.5

// Robot simulates the car's motors and sensors. Driving forward closes the
// gap to the wall ahead; steering while moving faces a new wall. The wheels
// stop turning when the car is pressed against a wall.
type Robot struct {
	mu       sync.Mutex
	now      func() time.Time
	rand     *rand.Rand
	last     time.Time
	speed    int
	steer    int
	pan      int
	tilt     int
	distance float64
	battery  float64
	drain    float64
	cliff    bool
}

// Option configures a Robot.
type Option func(*Robot)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Robot) { r.now = now }
}

// WithRand fixes the random source used to place walls.
func WithRand(rng *rand.Rand) Option {
	return func(r *Robot) { r.rand = rng }
}

// WithBattery sets the starting charge and the drain in percent per minute.
func WithBattery(percent, perMinute float64) Option {
	return func(r *Robot) {
		r.battery = percent
		r.drain = perMinute
	}
}

// WithDistance sets the starting gap to the wall ahead.
func WithDistance(cm float64) Option {
	return func(r *Robot) { r.distance = cm }
}

// New returns a robot in the middle of a room with a full battery.
func New(opts ...Option) *Robot {
	r := &Robot{
		now:      time.Now,
		rand:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 7)),
		distance: 100,
		battery:  100,
		drain:    0.5,
	}
	for _, o := range opts {
		o(r)
	}
	r.last = r.now()
	return r
}

// advance integrates motion and drain up to now. Caller holds the lock.
func (r *Robot) advance() {
	now := r.now()
	dt := now.Sub(r.last).Seconds()
	r.last = now
	if dt <= 0 {
		return
	}
	r.battery = max(0, r.battery-r.drain*dt/60)
	r.distance -= float64(r.speed) * cmPerSpeed * dt
	r.distance = min(max(r.distance, MinDistance), MaxDistance)
}

func (r *Robot) drive(speed int) {
	r.mu.Lock()
	r.advance()
	r.speed = speed
	r.mu.Unlock()
}

// Forward drives ahead.
func (r *Robot) Forward(_ context.Context, speed int) error {
	log.Debug().Str("component", "sim").Int("speed", speed).Msg("forward")
	r.drive(speed)
	return nil
}

// Backward reverses.
func (r *Robot) Backward(_ context.Context, speed int) error {
	log.Debug().Str("component", "sim").Int("speed", speed).Msg("backward")
	r.drive(-speed)
	return nil
}

// Steer sets the wheel angle. A real turn faces a new wall.
func (r *Robot) Steer(_ context.Context, angle int) error {
	log.Debug().Str("component", "sim").Int("angle", angle).Msg("steer")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	if angle != 0 && angle != r.steer {
		r.distance = 20 + r.rand.Float64()*(MaxDistance-20)
	}
	r.steer = angle
	return nil
}

// Stop halts the drivetrain.
func (r *Robot) Stop(context.Context) error {
	log.Debug().Str("component", "sim").Msg("stop")
	r.drive(0)
	return nil
}

// Pan turns the head sideways.
func (r *Robot) Pan(_ context.Context, angle int) error {
	r.mu.Lock()
	r.pan = angle
	r.mu.Unlock()
	return nil
}

// Tilt tips the head.
func (r *Robot) Tilt(_ context.Context, angle int) error {
	r.mu.Lock()
	r.tilt = angle
	r.mu.Unlock()
	return nil
}

// Head returns the pan and tilt angles.
func (r *Robot) Head() (pan, tilt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pan, r.tilt
}

// Speed returns the signed drive speed.
func (r *Robot) Speed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speed
}

// SetCliff puts the car on or off a table edge.
func (r *Robot) SetCliff(edge bool) {
	r.mu.Lock()
	r.cliff = edge
	r.mu.Unlock()
}

// SetBattery overrides the charge.
func (r *Robot) SetBattery(percent float64) {
	r.mu.Lock()
	r.advance()
	r.battery = percent
	r.mu.Unlock()
}

// ReadDistance returns the gap to the wall ahead.
func (r *Robot) ReadDistance(context.Context) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	return r.distance, nil
}

// ReadCliff reports a table edge.
func (r *Robot) ReadCliff(context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cliff, nil
}

// ReadJoystick never has operator input; the joystick server overlays it.
func (r *Robot) ReadJoystick(context.Context) (robot.Joystick, bool) {
	return robot.Joystick{}, false
}

// ReadBattery returns the charge rounded down.
func (r *Robot) ReadBattery(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	return int(r.battery), nil
}

// WheelsMoving is false when stopped or pushing against a wall.
func (r *Robot) WheelsMoving(context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	if r.speed == 0 {
		return false, nil
	}
	return r.speed < 0 || r.distance > MinDistance, nil
}
