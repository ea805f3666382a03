package robot

import (
	"context"
	"fmt"
	"time"

	"github.com/rcliao/robot-brain/internal/actions"
)

// DriveSpeed is the speed used by conversational body actions.
const DriveSpeed = 30

// Body implements every registered action as a choreography over Motors.
type Body struct {
	motors Motors
	sleep  func(context.Context, time.Duration) error
	moves  map[string]func(context.Context) error
}

// BodyOption configures a Body.
type BodyOption func(*Body)

// WithSleep overrides how the body waits between motor commands.
func WithSleep(fn func(context.Context, time.Duration) error) BodyOption {
	return func(b *Body) { b.sleep = fn }
}

// NewBody wires the built-in choreographies to motors.
func NewBody(m Motors, opts ...BodyOption) *Body {
	b := &Body{motors: m, sleep: Sleep}
	for _, o := range opts {
		o(b)
	}
	b.moves = map[string]func(context.Context) error{
		actions.MoveForward:   b.moveForward,
		actions.MoveBackward:  b.moveBackward,
		actions.TurnLeft:      func(ctx context.Context) error { return b.turn(ctx, -30) },
		actions.TurnRight:     func(ctx context.Context) error { return b.turn(ctx, 30) },
		actions.Stop:          b.motors.Stop,
		actions.RockBackForth: b.rock,
		actions.Dance:         b.dance,

		actions.LookUp:       func(ctx context.Context) error { return b.motors.Tilt(ctx, 30) },
		actions.LookDown:     func(ctx context.Context) error { return b.motors.Tilt(ctx, -30) },
		actions.LookLeft:     func(ctx context.Context) error { return b.motors.Pan(ctx, -45) },
		actions.LookRight:    func(ctx context.Context) error { return b.motors.Pan(ctx, 45) },
		actions.LookAround:   b.lookAround,
		actions.LookAtPerson: b.center,
		actions.Nod:          func(ctx context.Context) error { return b.wiggle(ctx, b.motors.Tilt, -15, 10) },
		actions.ShakeHead:    func(ctx context.Context) error { return b.wiggle(ctx, b.motors.Pan, -25, 25) },
		actions.TiltHead:     b.tiltHead,
		actions.ResetHead:    b.center,
	}
	return b
}

// Perform runs the named action.
func (b *Body) Perform(ctx context.Context, action string) error {
	fn, ok := b.moves[actions.Normalize(action)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	return fn(ctx)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// steps runs motor commands in order, stopping at the first error.
func steps(ctx context.Context, fns ...func(context.Context) error) error {
	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *Body) wait(d time.Duration) func(context.Context) error {
	return func(ctx context.Context) error { return b.sleep(ctx, d) }
}

func steer(m Motors, angle int) func(context.Context) error {
	return func(ctx context.Context) error { return m.Steer(ctx, angle) }
}

func forward(m Motors, speed int) func(context.Context) error {
	return func(ctx context.Context) error { return m.Forward(ctx, speed) }
}

func backward(m Motors, speed int) func(context.Context) error {
	return func(ctx context.Context) error { return m.Backward(ctx, speed) }
}

// drive runs the motors for d and always stops them, even when canceled.
func (b *Body) drive(ctx context.Context, start func(context.Context) error, d time.Duration) error {
	err := steps(ctx, start, b.wait(d))
	if stopErr := b.motors.Stop(context.WithoutCancel(ctx)); err == nil {
		err = stopErr
	}
	return err
}

func (b *Body) moveForward(ctx context.Context) error {
	if err := b.motors.Steer(ctx, 0); err != nil {
		return err
	}
	return b.drive(ctx, forward(b.motors, DriveSpeed), 1500*time.Millisecond)
}

func (b *Body) moveBackward(ctx context.Context) error {
	if err := b.motors.Steer(ctx, 0); err != nil {
		return err
	}
	return b.drive(ctx, backward(b.motors, DriveSpeed), 1500*time.Millisecond)
}

func (b *Body) turn(ctx context.Context, angle int) error {
	if err := b.motors.Steer(ctx, angle); err != nil {
		return err
	}
	err := b.drive(ctx, forward(b.motors, DriveSpeed), time.Second)
	if serr := b.motors.Steer(context.WithoutCancel(ctx), 0); err == nil {
		err = serr
	}
	return err
}

func (b *Body) rock(ctx context.Context) error {
	var fns []func(context.Context) error
	for i := 0; i < 4; i++ {
		fns = append(fns,
			forward(b.motors, 40), b.wait(150*time.Millisecond),
			backward(b.motors, 40), b.wait(150*time.Millisecond))
	}
	err := steps(ctx, fns...)
	if serr := b.motors.Stop(context.WithoutCancel(ctx)); err == nil {
		err = serr
	}
	return err
}

func (b *Body) dance(ctx context.Context) error {
	var fns []func(context.Context) error
	for i := 0; i < 3; i++ {
		fns = append(fns,
			steer(b.motors, -20), forward(b.motors, DriveSpeed), b.wait(300*time.Millisecond),
			steer(b.motors, 20), backward(b.motors, DriveSpeed), b.wait(300*time.Millisecond))
	}
	err := steps(ctx, fns...)
	rest := context.WithoutCancel(ctx)
	if serr := steps(rest, steer(b.motors, 0), b.motors.Stop); err == nil {
		err = serr
	}
	if err != nil {
		return err
	}
	return b.lookAround(ctx)
}

func (b *Body) lookAround(ctx context.Context) error {
	pan := func(a int) func(context.Context) error {
		return func(ctx context.Context) error { return b.motors.Pan(ctx, a) }
	}
	half := 500 * time.Millisecond
	return steps(ctx, pan(-60), b.wait(half), pan(0), b.wait(half), pan(60), b.wait(half), pan(0))
}

func (b *Body) center(ctx context.Context) error {
	if err := b.motors.Pan(ctx, 0); err != nil {
		return err
	}
	return b.motors.Tilt(ctx, 0)
}

func (b *Body) tiltHead(ctx context.Context) error {
	if err := b.motors.Pan(ctx, 20); err != nil {
		return err
	}
	return b.motors.Tilt(ctx, -10)
}

// wiggle swings one servo between two angles three times and recenters it.
func (b *Body) wiggle(ctx context.Context, servo func(context.Context, int) error, a, c int) error {
	set := func(angle int) func(context.Context) error {
		return func(ctx context.Context) error { return servo(ctx, angle) }
	}
	var fns []func(context.Context) error
	for i := 0; i < 3; i++ {
		fns = append(fns, set(a), b.wait(150*time.Millisecond), set(c), b.wait(150*time.Millisecond))
	}
	fns = append(fns, set(0))
	return steps(ctx, fns...)
}
