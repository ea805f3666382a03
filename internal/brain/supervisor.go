// Package brain runs the top-level control loop: it listens for the wake
// word, hands utterances to the conversation loop, lets the robot explore
// when idle and narrates mode changes.
package brain

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rcliao/robot-brain/internal/conversation"
	"github.com/rcliao/robot-brain/internal/explore"
	"github.com/rcliao/robot-brain/internal/joystick"
	"github.com/rcliao/robot-brain/internal/metrics"
	"github.com/rcliao/robot-brain/internal/mode"
	"github.com/rcliao/robot-brain/internal/robot"
)

// ErrTooManyFailures is returned by Run after MaxFailures exchanges in a row
// went wrong.
var ErrTooManyFailures = errors.New("too many consecutive failures")

// Config holds the supervisor's timings.
type Config struct {
	ListenTimeout   time.Duration `mapstructure:"listen_timeout" yaml:"listen_timeout"`
	Idle            time.Duration `mapstructure:"idle" yaml:"idle"`
	BatteryInterval time.Duration `mapstructure:"battery_interval" yaml:"battery_interval"`
	RideMin         time.Duration `mapstructure:"ride_min" yaml:"ride_min"`
	RideMax         time.Duration `mapstructure:"ride_max" yaml:"ride_max"`
	MaxFailures     int           `mapstructure:"max_failures" yaml:"max_failures"`
}

// DefaultConfig returns the standard supervisor timings.
func DefaultConfig() Config {
	return Config{
		ListenTimeout:   500 * time.Millisecond,
		Idle:            100 * time.Millisecond,
		BatteryInterval: 10 * time.Second,
		RideMin:         10 * time.Second,
		RideMax:         20 * time.Second,
		MaxFailures:     3,
	}
}

// Explorer runs one exploration until it stops.
type Explorer interface {
	Run(ctx context.Context) (explore.Reason, error)
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) { s.now = now }
}

// WithSleep overrides how idle modes wait.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(s *Supervisor) { s.sleep = fn }
}

// WithRand overrides the random source for ride commentary intervals.
func WithRand(r *rand.Rand) Option {
	return func(s *Supervisor) { s.rand = r }
}

// WithManualDrive lets the operator's stick drive m while in manual control.
func WithManualDrive(m robot.Motors) Option {
	return func(s *Supervisor) { s.motors = m }
}

// Supervisor owns the control goroutine.
type Supervisor struct {
	cfg      Config
	machine  *mode.Machine
	loop     *conversation.Loop
	sensors  robot.Sensors
	listener robot.Listener
	explorer Explorer
	motors   robot.Motors

	mu       sync.Mutex
	pending  []mode.SystemEvent
	nextRide time.Time

	battery     mode.BatteryNarrator
	lastBattery time.Time
	failures    int
	skipWait    bool

	rand  *rand.Rand
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New creates a supervisor and subscribes it to the machine's transitions.
// explorer may be nil, in which case exploring just idles.
func New(cfg Config, machine *mode.Machine, loop *conversation.Loop, sensors robot.Sensors, listener robot.Listener, explorer Explorer, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:      cfg,
		machine:  machine,
		loop:     loop,
		sensors:  sensors,
		listener: listener,
		explorer: explorer,
		rand:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1)),
		now:      time.Now,
		sleep:    robot.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MaxFailures <= 0 {
		s.cfg.MaxFailures = 3
	}
	machine.Subscribe(s.onTransition)
	return s
}

func (s *Supervisor) onTransition(t mode.Transition) {
	metrics.ObserveTransition(t)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok := mode.EventForTransition(t); ok {
		s.pending = append(s.pending, ev)
	}
	switch {
	case t.To == mode.ManualControl:
		s.nextRide = t.Timestamp.Add(s.rideInterval())
	case t.From == mode.ManualControl:
		s.nextRide = time.Time{}
	}
}

// Pending returns the queued narrations without consuming them.
func (s *Supervisor) Pending() []mode.SystemEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mode.SystemEvent(nil), s.pending...)
}

func (s *Supervisor) enqueue(ev mode.SystemEvent) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
}

func (s *Supervisor) rideInterval() time.Duration {
	lo, hi := s.cfg.RideMin, s.cfg.RideMax
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rand.Int64N(int64(hi-lo)+1))
}

// Tick samples the battery and the joystick and applies timeouts.
func (s *Supervisor) Tick(ctx context.Context) {
	s.SampleBattery(ctx)
	if js, ok := s.sensors.ReadJoystick(ctx); ok && js.Active() {
		s.machine.Handle(mode.EventJoystick)
	}
	s.machine.Tick()
}

// SampleBattery reads the battery at most once per BatteryInterval, feeds the
// machine and queues milestone narrations.
func (s *Supervisor) SampleBattery(ctx context.Context) {
	now := s.now()
	if !s.lastBattery.IsZero() && now.Sub(s.lastBattery) < s.cfg.BatteryInterval {
		return
	}
	s.lastBattery = now

	pct, err := s.sensors.ReadBattery(ctx)
	if err != nil {
		log.Debug().Err(err).Str("component", "brain").Msg("battery read failed")
		return
	}
	metrics.Battery.Set(float64(pct))
	if ev, ok := s.battery.Observe(pct); ok {
		s.enqueue(ev)
	}
	s.machine.Battery(pct)
}

// flush narrates queued system events in order.
func (s *Supervisor) flush(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		ev := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		s.loop.Pipeline().Narrate(ctx, ev)
	}
}

// Run drives the robot until ctx is canceled or too many exchanges fail in a
// row. The drivetrain is stopped on return.
func (s *Supervisor) Run(ctx context.Context) error {
	logger := log.With().Str("component", "brain").Logger()
	logger.Info().Str("mode", string(s.machine.Current())).Msg("supervisor started")
	defer s.loop.Pipeline().SafeStop(ctx)

	for {
		if ctx.Err() != nil {
			logger.Info().Msg("supervisor stopped")
			return nil
		}
		s.Tick(ctx)
		s.flush(ctx)

		var err error
		switch s.machine.Current() {
		case mode.Exploring:
			s.explore(ctx)
		case mode.ManualControl:
			s.drive(ctx)
			s.ride(ctx)
			err = s.sleep(ctx, s.cfg.Idle)
		case mode.WakingUp:
			err = s.sleep(ctx, s.cfg.Idle)
		case mode.Sleep:
			s.dream(ctx)
		default:
			err = s.listen(ctx)
		}
		if errors.Is(err, ErrTooManyFailures) {
			return err
		}
	}
}

func (s *Supervisor) explore(ctx context.Context) {
	if s.explorer == nil {
		_ = s.sleep(ctx, s.cfg.Idle)
		return
	}
	reason, err := s.explorer.Run(ctx)
	if err != nil {
		log.Error().Err(err).Str("component", "brain").Msg("exploration failed")
	}
	if reason == explore.ReasonWakeWord {
		s.skipWait = true
	}
}

// drive forwards the stick to the motors while it is fresh.
func (s *Supervisor) drive(ctx context.Context) {
	if s.motors == nil {
		return
	}
	js, ok := s.sensors.ReadJoystick(ctx)
	if !ok {
		js = robot.Joystick{}
	}
	if err := joystick.Drive(ctx, s.motors, js); err != nil {
		log.Warn().Err(err).Str("component", "brain").Msg("manual drive failed")
	}
}

// ride comments on the operator's driving every RideMin..RideMax.
func (s *Supervisor) ride(ctx context.Context) {
	s.mu.Lock()
	due := !s.nextRide.IsZero() && !s.now().Before(s.nextRide)
	if due {
		s.nextRide = s.now().Add(s.rideInterval())
	}
	s.mu.Unlock()
	if !due {
		return
	}
	if js, ok := s.sensors.ReadJoystick(ctx); ok && js.Active() {
		s.loop.Pipeline().Narrate(ctx, mode.RideEvent(js.Y))
	}
}

// dream waits for the wake word while asleep.
func (s *Supervisor) dream(ctx context.Context) {
	heard, err := s.listener.WaitForWakeWord(ctx, s.cfg.ListenTimeout)
	if err != nil {
		log.Debug().Err(err).Str("component", "brain").Msg("wake word wait failed")
		_ = s.sleep(ctx, s.cfg.Idle)
		return
	}
	if heard {
		s.machine.Handle(mode.EventWake)
	}
}

// listen waits for the wake word, records one utterance and runs an exchange.
func (s *Supervisor) listen(ctx context.Context) error {
	if s.skipWait {
		s.skipWait = false
	} else {
		heard, err := s.listener.WaitForWakeWord(ctx, s.cfg.ListenTimeout)
		if err != nil {
			log.Debug().Err(err).Str("component", "brain").Msg("wake word wait failed")
			return s.sleep(ctx, s.cfg.Idle)
		}
		if !heard {
			return nil
		}
	}
	s.machine.Handle(mode.EventWakeWord)

	audio, err := s.listener.Record(ctx)
	var res conversation.Result
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		res = s.loop.HandleText(ctx, "")
	} else {
		res = s.loop.HandleAudio(ctx, audio)
	}

	if res.Interrupted {
		s.skipWait = true
	}
	return s.record(ctx, res.Err)
}

// record counts consecutive failures and gives up after MaxFailures.
func (s *Supervisor) record(ctx context.Context, err error) error {
	if err == nil {
		s.failures = 0
		return nil
	}
	s.failures++
	log.Warn().Err(err).Str("component", "brain").Int("failures", s.failures).Msg("exchange failed")
	if s.failures < s.cfg.MaxFailures {
		return nil
	}
	s.loop.Pipeline().Say(ctx, conversation.FallbackTrouble)
	return ErrTooManyFailures
}
