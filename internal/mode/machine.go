package mode

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds the timing and battery thresholds of the machine.
type Config struct {
	ConversationTimeout  time.Duration `mapstructure:"conversation_timeout" yaml:"conversation_timeout"`
	ManualControlTimeout time.Duration `mapstructure:"manual_control_timeout" yaml:"manual_control_timeout"`
	StuckTimeout         time.Duration `mapstructure:"stuck_timeout" yaml:"stuck_timeout"`
	WakeUpDuration       time.Duration `mapstructure:"wake_up_duration" yaml:"wake_up_duration"`
	LowBattery           int           `mapstructure:"low_battery" yaml:"low_battery"`
	RecoverBattery       int           `mapstructure:"recover_battery" yaml:"recover_battery"`
	CriticalBattery      int           `mapstructure:"critical_battery" yaml:"critical_battery"`
	HistorySize          int           `mapstructure:"history_size" yaml:"history_size"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ConversationTimeout:  30 * time.Second,
		ManualControlTimeout: 5 * time.Second,
		StuckTimeout:         30 * time.Second,
		WakeUpDuration:       2 * time.Second,
		LowBattery:           20,
		RecoverBattery:       25,
		CriticalBattery:      5,
		HistorySize:          100,
	}
}

// Transition records a mode change.
type Transition struct {
	From      Mode      `json:"from"`
	To        Mode      `json:"to"`
	Event     Event     `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the time source used for timeouts.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithInitial sets the starting mode.
func WithInitial(mode Mode) Option {
	return func(m *Machine) { m.current = mode }
}

// Machine owns the current mode. It is the only writer of the mode value;
// every other component reads it. Safe for concurrent use.
type Machine struct {
	mu  sync.RWMutex
	cfg Config
	now func() time.Time

	current      Mode
	previous     Mode // restored when manual control ends
	enteredAt    time.Time
	lastInput    time.Time
	lastJoystick time.Time
	batteryLow   bool

	history     []Transition
	subscribers []func(Transition)
}

// New creates a machine in listening mode.
func New(cfg Config, opts ...Option) *Machine {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	m := &Machine{
		cfg:     cfg,
		now:     time.Now,
		current: Listening,
		history: make([]Transition, 0, cfg.HistorySize),
	}
	for _, o := range opts {
		o(m)
	}
	t := m.now()
	m.enteredAt, m.lastInput = t, t
	return m
}

// Current returns the active mode.
func (m *Machine) Current() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Previous returns the mode that manual control will restore.
func (m *Machine) Previous() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.previous
}

// BodyAllowed reports whether body actions may be dispatched right now.
func (m *Machine) BodyAllowed() bool {
	return IsBodyActionAllowed(m.Current())
}

// Since returns how long the current mode has been active.
func (m *Machine) Since() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now().Sub(m.enteredAt)
}

// History returns recorded transitions, oldest first.
func (m *Machine) History() []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// Subscribe registers fn to be called after every transition. Callbacks run
// on the goroutine that caused the transition, outside the machine's lock.
func (m *Machine) Subscribe(fn func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Handle applies an edge-triggered event. It returns the transition and true
// if the mode changed.
func (m *Machine) Handle(ev Event) (Transition, bool) {
	m.mu.Lock()
	now := m.now()
	to, ok := m.next(ev, now)
	var t Transition
	if ok {
		t = m.enter(to, ev, now)
	}
	subs := m.subscribers
	m.mu.Unlock()

	if ok {
		notify(subs, t)
	}
	return t, ok
}

// next computes the target mode for ev and updates activity timestamps.
// Caller holds the lock.
func (m *Machine) next(ev Event, now time.Time) (Mode, bool) {
	cur := m.current
	switch ev {
	case EventWakeWord:
		m.lastInput = now
		switch cur {
		case Listening, LowBattery:
			return Conversation, true
		case Exploring, Stuck:
			return Listening, true
		}

	case EventUtterance:
		m.lastInput = now
		if cur == Listening {
			return Conversation, true
		}

	case EventJoystick:
		m.lastJoystick = now
		switch cur {
		case TableMode, ManualControl, Sleep, WakingUp:
			return "", false
		}
		m.previous = cur
		return ManualControl, true

	case EventCliff:
		switch cur {
		case TableMode, Sleep, WakingUp:
			return "", false
		}
		return TableMode, true

	case EventFloorConfirmed:
		if cur == TableMode {
			return Listening, true
		}

	case EventExploreTimeout:
		if cur == Exploring {
			return Listening, true
		}

	case EventStall:
		if IsDriving(cur) {
			return Stuck, true
		}

	case EventWake:
		if cur == Sleep {
			return WakingUp, true
		}
	}
	return "", false
}

// enter switches to mode to. Caller holds the lock.
func (m *Machine) enter(to Mode, ev Event, now time.Time) Transition {
	t := Transition{From: m.current, To: to, Event: ev, Timestamp: now}
	if m.current == ManualControl && to != ManualControl {
		m.previous = ""
	}
	m.current = to
	m.enteredAt = now
	if to == Conversation {
		m.lastInput = now
	}

	if len(m.history) >= m.cfg.HistorySize {
		m.history = append(m.history[:0], m.history[1:]...)
	}
	m.history = append(m.history, t)

	log.Info().Str("component", "mode").
		Str("from", string(t.From)).
		Str("to", string(t.To)).
		Str("event", string(ev)).
		Msg("mode transition")
	return t
}

// Battery applies a battery reading. At or below the critical level any mode
// goes to sleep; at or below the low level idle modes go to low_battery;
// above the recovery level low_battery returns to listening.
func (m *Machine) Battery(percent int) (Transition, bool) {
	m.mu.Lock()
	now := m.now()
	cur := m.current

	var to Mode
	switch {
	case percent <= m.cfg.CriticalBattery:
		m.batteryLow = true
		if cur != Sleep {
			to = Sleep
		}
	case percent <= m.cfg.LowBattery:
		m.batteryLow = true
		if cur == Listening || cur == Exploring {
			to = LowBattery
		}
	case percent > m.cfg.RecoverBattery:
		m.batteryLow = false
		if cur == LowBattery {
			to = Listening
		}
	}

	var t Transition
	if to != "" {
		t = m.enter(to, EventBattery, now)
	}
	subs := m.subscribers
	m.mu.Unlock()

	if to != "" {
		notify(subs, t)
	}
	return t, to != ""
}

// BatteryLow reports whether the last reading was at or below the low level
// and has not yet recovered.
func (m *Machine) BatteryLow() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.batteryLow
}

// Tick evaluates timeout transitions. It is called on every control-loop
// iteration.
func (m *Machine) Tick() (Transition, bool) {
	m.mu.Lock()
	now := m.now()
	var to Mode
	switch m.current {
	case Conversation:
		if m.cfg.ConversationTimeout > 0 && now.Sub(m.lastInput) >= m.cfg.ConversationTimeout {
			to = Exploring
			if m.batteryLow {
				to = LowBattery
			}
		}
	case ManualControl:
		if now.Sub(m.lastJoystick) >= m.cfg.ManualControlTimeout {
			to = m.previous
			if to == "" || to == ManualControl {
				to = Listening
			}
		}
	case Stuck:
		if now.Sub(m.enteredAt) >= m.cfg.StuckTimeout {
			to = Listening
		}
	case WakingUp:
		if now.Sub(m.enteredAt) >= m.cfg.WakeUpDuration {
			to = Listening
		}
	}

	var t Transition
	if to != "" {
		t = m.enter(to, EventTimeout, now)
	}
	subs := m.subscribers
	m.mu.Unlock()

	if to != "" {
		notify(subs, t)
	}
	return t, to != ""
}

func notify(subs []func(Transition), t Transition) {
	for _, fn := range subs {
		fn(t)
	}
}
