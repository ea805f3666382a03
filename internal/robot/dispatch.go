package robot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rcliao/robot-brain/internal/actions"
	"github.com/rcliao/robot-brain/internal/metrics"
	"github.com/rcliao/robot-brain/internal/mode"
)

// ModeReader exposes the current mode to the dispatcher's gate.
type ModeReader interface {
	Current() mode.Mode
}

// Report summarizes one dispatch.
type Report struct {
	Executed []string `json:"executed"`
	Dropped  []string `json:"dropped,omitempty"`
	Unknown  []string `json:"unknown,omitempty"`
	Failed   []string `json:"failed,omitempty"`
}

// Dispatcher gates parsed actions through the current mode and runs the
// allowed ones in order. It never fails: unknown, gated and failing actions
// are logged and skipped.
type Dispatcher struct {
	registry *actions.Registry
	modes    ModeReader
	actuator Actuator
	pause    time.Duration
	sleep    func(context.Context, time.Duration) error
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPause sets the delay between consecutive actions.
func WithPause(pause time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.pause = pause }
}

// WithDispatchSleep overrides how the dispatcher waits between actions.
func WithDispatchSleep(fn func(context.Context, time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) { d.sleep = fn }
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(reg *actions.Registry, modes ModeReader, act Actuator, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		modes:    modes,
		actuator: act,
		pause:    300 * time.Millisecond,
		sleep:    Sleep,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Allowed reports whether the gate lets the action through in mode m.
func Allowed(a actions.Action, m mode.Mode) bool {
	if a.IsBody() {
		return mode.IsBodyActionAllowed(m)
	}
	return mode.IsHeadActionAllowed(m)
}

// Dispatch runs names in order. The gate is checked per action against the
// mode at the time the action is reached.
func (d *Dispatcher) Dispatch(ctx context.Context, names []string) Report {
	rep := Report{Executed: []string{}}
	for i, name := range names {
		if ctx.Err() != nil {
			log.Warn().Str("component", "actions").Strs("skipped", names[i:]).Msg("dispatch canceled")
			break
		}

		a, ok := d.registry.Lookup(name)
		if !ok {
			log.Warn().Str("component", "actions").Str("action", name).Msg("unknown action skipped")
			metrics.Actions.WithLabelValues("unknown", "unknown").Inc()
			rep.Unknown = append(rep.Unknown, name)
			continue
		}

		cur := d.modes.Current()
		if !Allowed(a, cur) {
			log.Info().Str("component", "actions").Str("action", a.Name).Str("mode", string(cur)).Msg("action dropped by mode gate")
			metrics.Actions.WithLabelValues(a.Name, "dropped").Inc()
			rep.Dropped = append(rep.Dropped, a.Name)
			continue
		}

		if len(rep.Executed)+len(rep.Failed) > 0 && d.pause > 0 {
			if err := d.sleep(ctx, d.pause); err != nil {
				break
			}
		}

		if err := d.perform(ctx, a.Name); err != nil {
			log.Error().Err(err).Str("component", "actions").Str("action", a.Name).Msg("action failed")
			metrics.Actions.WithLabelValues(a.Name, "failed").Inc()
			rep.Failed = append(rep.Failed, a.Name)
			continue
		}
		log.Debug().Str("component", "actions").Str("action", a.Name).Msg("action executed")
		metrics.Actions.WithLabelValues(a.Name, "executed").Inc()
		rep.Executed = append(rep.Executed, a.Name)
	}
	return rep
}

func (d *Dispatcher) perform(ctx context.Context, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %s panicked: %v", name, r)
		}
	}()
	return d.actuator.Perform(ctx, name)
}

// SafeStop stops the drivetrain and recenters the head. The drivetrain is
// left alone while the operator has manual control.
func (d *Dispatcher) SafeStop(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	names := []string{actions.ResetHead}
	if d.modes.Current() != mode.ManualControl {
		names = append([]string{actions.Stop}, names...)
	}
	for _, n := range names {
		if err := d.perform(ctx, n); err != nil {
			log.Error().Err(err).Str("component", "actions").Str("action", n).Msg("safe stop failed")
		}
	}
}
