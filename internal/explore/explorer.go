// Package explore drives the robot around the room while nobody is talking
// to it, stopping for cliffs, obstacles, the wake word and the joystick.
package explore

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rcliao/robot-brain/internal/conversation"
	"github.com/rcliao/robot-brain/internal/metrics"
	"github.com/rcliao/robot-brain/internal/mode"
	"github.com/rcliao/robot-brain/internal/robot"
)

// Reason says why a run ended.
type Reason string

const (
	ReasonWakeWord      Reason = "wake_word"
	ReasonTableMode     Reason = "table_mode"
	ReasonTimeout       Reason = "timeout"
	ReasonManualControl Reason = "manual_control"
	ReasonStuck         Reason = "stuck"
	ReasonModeChanged   Reason = "mode_changed"
	ReasonCanceled      Reason = "canceled"
	ReasonError         Reason = "error"
)

// Config holds distances in centimeters, speeds in motor units and timings.
type Config struct {
	SafeDistance     float64       `mapstructure:"safe_distance" yaml:"safe_distance"`
	DangerDistance   float64       `mapstructure:"danger_distance" yaml:"danger_distance"`
	Speed            int           `mapstructure:"speed" yaml:"speed"`
	BackupSpeed      int           `mapstructure:"backup_speed" yaml:"backup_speed"`
	MaxDuration      time.Duration `mapstructure:"max_duration" yaml:"max_duration"`
	Poll             time.Duration `mapstructure:"poll" yaml:"poll"`
	ThoughtMin       time.Duration `mapstructure:"thought_min" yaml:"thought_min"`
	ThoughtMax       time.Duration `mapstructure:"thought_max" yaml:"thought_max"`
	NoveltyThreshold float64       `mapstructure:"novelty_threshold" yaml:"novelty_threshold"`
	NoveltyHistory   int           `mapstructure:"novelty_history" yaml:"novelty_history"`
	StallAfter       time.Duration `mapstructure:"stall_after" yaml:"stall_after"`
}

// DefaultConfig returns the standard exploration settings.
func DefaultConfig() Config {
	return Config{
		SafeDistance:     30,
		DangerDistance:   15,
		Speed:            20,
		BackupSpeed:      20,
		MaxDuration:      time.Hour,
		Poll:             100 * time.Millisecond,
		ThoughtMin:       30 * time.Second,
		ThoughtMax:       60 * time.Second,
		NoveltyThreshold: 0.3,
		NoveltyHistory:   DefaultNoveltyHistory,
		StallAfter:       2 * time.Second,
	}
}

// Readings below this are sensor noise and are treated as open space.
const (
	minReliableDistance = 2
	openDistance        = 100
)

// Narrator turns a system event into speech and gestures.
type Narrator interface {
	Narrate(ctx context.Context, ev mode.SystemEvent) conversation.Result
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithWakeWord sets the non-blocking wake-word check.
func WithWakeWord(w robot.WakeWord) Option {
	return func(e *Explorer) { e.wake = w }
}

// WithVision enables periodic thoughts about what the camera sees.
func WithVision(c robot.Camera, d robot.SceneDescriber, n *Novelty) Option {
	return func(e *Explorer) {
		e.camera, e.describer, e.novelty = c, d, n
	}
}

// WithNarrator sets where novel scenes are sent.
func WithNarrator(n Narrator) Option {
	return func(e *Explorer) { e.narrator = n }
}

// WithRand overrides the random source for turn angles and thought intervals.
func WithRand(r *rand.Rand) Option {
	return func(e *Explorer) { e.rand = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Explorer) { e.now = now }
}

// WithSleep overrides how the loop waits.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(e *Explorer) { e.sleep = fn }
}

// WithCycleHook registers fn to run at the top of every cycle, before the
// stop checks. The supervisor uses it to sample the battery.
func WithCycleHook(fn func(context.Context)) Option {
	return func(e *Explorer) { e.hook = fn }
}

// Explorer runs the exploration loop. It owns the motors for the duration of
// Run and hands mode changes to the machine only after they are stopped.
type Explorer struct {
	cfg       Config
	motors    robot.Motors
	sensors   robot.Sensors
	machine   *mode.Machine
	wake      robot.WakeWord
	camera    robot.Camera
	describer robot.SceneDescriber
	novelty   *Novelty
	narrator  Narrator
	hook      func(context.Context)

	rand  *rand.Rand
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates an Explorer.
func New(cfg Config, m robot.Motors, s robot.Sensors, machine *mode.Machine, opts ...Option) *Explorer {
	e := &Explorer{
		cfg:     cfg,
		motors:  m,
		sensors: s,
		machine: machine,
		rand:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:     time.Now,
		sleep:   robot.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run is the per-call loop state.
type run struct {
	start        time.Time
	lastThought  time.Time
	nextThought  time.Duration
	driving      bool
	stalledSince time.Time
	woken        bool
}

// Run explores until a stop condition, the mode changing under it, or ctx
// being canceled. The motors are stopped on every exit, including panics.
func (e *Explorer) Run(ctx context.Context) (reason Reason, err error) {
	logger := log.With().Str("component", "explore").Logger()
	logger.Info().Dur("max_duration", e.cfg.MaxDuration).Msg("exploration started")

	defer func() {
		if r := recover(); r != nil {
			reason, err = ReasonError, fmt.Errorf("exploration panic: %v", r)
		}
		e.stop(ctx)
		metrics.ExplorationExits.WithLabelValues(string(reason)).Inc()
		ev := logger.Info()
		if err != nil {
			ev = logger.Error().Err(err)
		}
		ev.Str("reason", string(reason)).Msg("exploration ended")
	}()

	now := e.now()
	st := &run{start: now, lastThought: now, nextThought: e.thoughtInterval()}

	for {
		if ctx.Err() != nil {
			return ReasonCanceled, nil
		}
		if e.hook != nil {
			e.hook(ctx)
		}
		if cur := e.machine.Current(); cur != mode.Exploring {
			logger.Info().Str("mode", string(cur)).Msg("mode changed under exploration")
			return ReasonModeChanged, nil
		}

		if reason, done := e.checkStops(ctx, st, logger); done {
			return reason, nil
		}

		if err := e.step(ctx, st, logger); err != nil {
			if ctx.Err() != nil {
				return ReasonCanceled, nil
			}
			logger.Warn().Err(err).Msg("maneuver failed")
		}
		if st.woken {
			logger.Info().Msg("wake word during thought")
			e.stop(ctx)
			e.machine.Handle(mode.EventWakeWord)
			return ReasonWakeWord, nil
		}
		if st.stalled(e.now(), e.cfg.StallAfter) {
			e.stop(ctx)
			e.machine.Handle(mode.EventStall)
			return ReasonStuck, nil
		}

		if err := e.sleep(ctx, e.cfg.Poll); err != nil {
			return ReasonCanceled, nil
		}
	}
}

// checkStops runs the stop conditions in priority order. Each one stops the
// motors before telling the machine.
func (e *Explorer) checkStops(ctx context.Context, st *run, logger zerolog.Logger) (Reason, bool) {
	if e.cfg.MaxDuration > 0 && e.now().Sub(st.start) >= e.cfg.MaxDuration {
		logger.Info().Msg("exploration timeout")
		e.stop(ctx)
		e.machine.Handle(mode.EventExploreTimeout)
		return ReasonTimeout, true
	}

	if e.wake != nil && e.wake.Detected() {
		logger.Info().Msg("wake word during exploration")
		e.stop(ctx)
		e.machine.Handle(mode.EventWakeWord)
		return ReasonWakeWord, true
	}

	if e.cliff(ctx) {
		logger.Warn().Msg("cliff detected")
		e.retreat(ctx)
		e.machine.Handle(mode.EventCliff)
		return ReasonTableMode, true
	}

	if js, ok := e.sensors.ReadJoystick(ctx); ok && js.Active() {
		logger.Info().Int("x", js.X).Int("y", js.Y).Msg("joystick takeover")
		e.stop(ctx)
		e.machine.Handle(mode.EventJoystick)
		return ReasonManualControl, true
	}
	return "", false
}

// step picks a maneuver from the distance reading and, when the way is clear,
// may pause for a thought.
func (e *Explorer) step(ctx context.Context, st *run, logger zerolog.Logger) error {
	d := e.distance(ctx)
	switch {
	case d < e.cfg.DangerDistance:
		logger.Debug().Float64("distance", d).Msg("danger, backing up")
		st.driving = false
		return e.backupAndTurn(ctx)
	case d < e.cfg.SafeDistance:
		logger.Debug().Float64("distance", d).Msg("caution, turning")
		st.driving = false
		return e.turnSlightly(ctx)
	}

	if !st.driving {
		if err := e.moveForward(ctx); err != nil {
			return err
		}
		st.driving = true
		st.stalledSince = time.Time{}
	}
	e.watchWheels(ctx, st)

	if e.now().Sub(st.lastThought) >= st.nextThought {
		st.driving = false
		st.woken = e.think(ctx, logger)
		st.lastThought = e.now()
		st.nextThought = e.thoughtInterval()
	}
	return nil
}

func (st *run) stalled(now time.Time, after time.Duration) bool {
	return after > 0 && st.driving && !st.stalledSince.IsZero() && now.Sub(st.stalledSince) >= after
}

// watchWheels tracks how long the wheels have been still while driving. Read
// errors count as moving.
func (e *Explorer) watchWheels(ctx context.Context, st *run) {
	moving, err := e.sensors.WheelsMoving(ctx)
	if err != nil || moving {
		st.stalledSince = time.Time{}
		return
	}
	if st.stalledSince.IsZero() {
		st.stalledSince = e.now()
	}
}

// think pauses, looks around and narrates the scene if it is new enough. It
// reports whether the narration was cut short by the wake word.
func (e *Explorer) think(ctx context.Context, logger zerolog.Logger) bool {
	if err := e.pauseAndLook(ctx); err != nil {
		logger.Warn().Err(err).Msg("look around failed")
	}
	if e.camera == nil || e.describer == nil || e.novelty == nil {
		return false
	}

	frame, err := e.camera.Capture(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("capture failed")
		return false
	}
	desc, err := e.describer.DescribeScene(ctx, frame)
	if err != nil {
		logger.Warn().Err(err).Msg("scene description failed")
		return false
	}
	score, err := e.novelty.Score(ctx, desc)
	if err != nil {
		logger.Warn().Err(err).Msg("novelty failed")
		return false
	}
	logger.Info().Str("scene", desc).Float64("novelty", score).Msg("thought")

	if score > e.cfg.NoveltyThreshold && e.narrator != nil {
		return e.narrator.Narrate(ctx, mode.ThoughtEvent(desc)).Interrupted
	}
	return false
}

// distance reads the ultrasonic sensor; failures and implausibly small
// readings count as open space.
func (e *Explorer) distance(ctx context.Context) float64 {
	d, err := e.sensors.ReadDistance(ctx)
	if err != nil || d < minReliableDistance {
		return openDistance
	}
	return d
}

// cliff reads the edge sensor; failures count as no cliff.
func (e *Explorer) cliff(ctx context.Context) bool {
	c, err := e.sensors.ReadCliff(ctx)
	if err != nil {
		log.Debug().Err(err).Str("component", "explore").Msg("cliff read failed")
		return false
	}
	return c
}

func (e *Explorer) thoughtInterval() time.Duration {
	lo, hi := e.cfg.ThoughtMin, e.cfg.ThoughtMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(e.rand.Int64N(int64(hi-lo)+1))
}

// angle returns a random angle in [lo, hi] with a random sign.
func (e *Explorer) angle(lo, hi int) int {
	a := lo + e.rand.IntN(hi-lo+1)
	if e.rand.IntN(2) == 0 {
		return -a
	}
	return a
}

// stop halts the motors even when ctx is already canceled.
func (e *Explorer) stop(ctx context.Context) {
	if err := e.motors.Stop(context.WithoutCancel(ctx)); err != nil {
		log.Error().Err(err).Str("component", "explore").Msg("stop failed")
	}
}

// retreat backs off a cliff edge: stop, short reverse, stop.
func (e *Explorer) retreat(ctx context.Context) {
	e.stop(ctx)
	bg := context.WithoutCancel(ctx)
	if err := e.motors.Backward(bg, e.cfg.BackupSpeed); err != nil {
		log.Error().Err(err).Str("component", "explore").Msg("reverse failed")
	}
	_ = e.sleep(bg, 300*time.Millisecond)
	e.stop(ctx)
}

func (e *Explorer) backupAndTurn(ctx context.Context) error {
	e.stop(ctx)
	m := e.motors
	err := errors.Join(
		m.Backward(ctx, e.cfg.BackupSpeed),
		e.sleep(ctx, 500*time.Millisecond),
	)
	if err == nil {
		err = errors.Join(
			m.Steer(ctx, e.angle(30, 60)),
			m.Backward(ctx, e.cfg.BackupSpeed),
			e.sleep(ctx, 500*time.Millisecond),
		)
	}
	return errors.Join(err, m.Steer(ctx, 0), m.Stop(context.WithoutCancel(ctx)))
}

func (e *Explorer) turnSlightly(ctx context.Context) error {
	m := e.motors
	err := errors.Join(
		m.Steer(ctx, e.angle(10, 25)),
		m.Forward(ctx, e.cfg.Speed),
		e.sleep(ctx, 300*time.Millisecond),
	)
	return errors.Join(err, m.Steer(ctx, 0))
}

func (e *Explorer) pauseAndLook(ctx context.Context) error {
	e.stop(ctx)
	m := e.motors
	return errors.Join(
		m.Pan(ctx, -45),
		e.sleep(ctx, 400*time.Millisecond),
		m.Pan(ctx, 45),
		e.sleep(ctx, 400*time.Millisecond),
		m.Pan(ctx, 0),
	)
}

func (e *Explorer) moveForward(ctx context.Context) error {
	return errors.Join(e.motors.Steer(ctx, 0), e.motors.Forward(ctx, e.cfg.Speed))
}
