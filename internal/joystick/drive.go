package joystick

import (
	"context"
	"errors"

	"github.com/rcliao/robot-brain/internal/robot"
)

// MaxSteer is the wheel angle at full stick deflection.
const MaxSteer = 30

// Drive applies a stick sample to the motors: X steers, Y drives forward or
// backward. Inside the dead zone the robot stops.
func Drive(ctx context.Context, m robot.Motors, js robot.Joystick) error {
	steer := m.Steer(ctx, js.X*MaxSteer/100)
	var move error
	switch {
	case js.Y > robot.JoystickDeadzone:
		move = m.Forward(ctx, js.Y)
	case js.Y < -robot.JoystickDeadzone:
		move = m.Backward(ctx, -js.Y)
	default:
		move = m.Stop(ctx)
	}
	return errors.Join(steer, move)
}

// sensors overlays the websocket stick on another sensor set.
type sensors struct {
	robot.Sensors
	server *Server
}

// WithSensors returns sensors whose ReadJoystick comes from the server.
func WithSensors(base robot.Sensors, s *Server) robot.Sensors {
	return sensors{Sensors: base, server: s}
}

func (s sensors) ReadJoystick(context.Context) (robot.Joystick, bool) {
	return s.server.Latest()
}
