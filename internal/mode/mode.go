// Package mode implements the operating-mode state machine that gates which
// actions may reach the actuators.
package mode

// Mode is the single active operating mode.
type Mode string

const (
	Listening     Mode = "listening"
	Conversation  Mode = "conversation"
	Exploring     Mode = "exploring"
	TableMode     Mode = "table_mode"
	ManualControl Mode = "manual_control"
	Stuck         Mode = "stuck"
	LowBattery    Mode = "low_battery"
	Sleep         Mode = "sleep"
	WakingUp      Mode = "waking_up"
)

// All lists every mode.
var All = []Mode{Listening, Conversation, Exploring, TableMode, ManualControl, Stuck, LowBattery, Sleep, WakingUp}

// Event is an external stimulus that may cause a transition.
type Event string

const (
	EventWakeWord       Event = "wake_word"
	EventUtterance      Event = "utterance"
	EventCliff          Event = "cliff"
	EventExploreTimeout Event = "explore_timeout"
	EventJoystick       Event = "joystick"
	EventFloorConfirmed Event = "floor_confirmed"
	EventStall          Event = "stall"
	EventWake           Event = "wake"
	EventBattery        Event = "battery"
	EventTimeout        Event = "timeout"
)

// IsBodyActionAllowed reports whether drivetrain actions may be dispatched.
func IsBodyActionAllowed(m Mode) bool {
	return m != TableMode && m != ManualControl
}

// IsHeadActionAllowed reports whether head actions may be dispatched.
func IsHeadActionAllowed(Mode) bool {
	return true
}

// IsDriving reports whether the robot is expected to move on its own.
// Conversational moves are short fixed choreographies and never stall.
func IsDriving(m Mode) bool {
	return m == Exploring
}

func (m Mode) String() string { return string(m) }
