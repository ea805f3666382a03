// Package robot defines the collaborators the brain drives (motors, sensors,
// language model, speech) and the action dispatcher that sits between parsed
// replies and the actuators.
package robot

import (
	"context"
	"errors"
	"io"
	"time"
)

// Collaborator error kinds. Implementations wrap these so callers can pick a
// fallback with errors.Is.
var (
	ErrTranscription = errors.New("transcription failed")
	ErrLLM           = errors.New("language model failed")
	ErrSpeech        = errors.New("speech failed")
	ErrUnknownAction = errors.New("unknown action")
	ErrSensor        = errors.New("sensor read failed")
)

// Motors is the raw drivetrain and camera head.
type Motors interface {
	Forward(ctx context.Context, speed int) error
	Backward(ctx context.Context, speed int) error
	// Steer sets the front wheel angle in degrees; negative is left.
	Steer(ctx context.Context, angle int) error
	Stop(ctx context.Context) error
	Pan(ctx context.Context, angle int) error
	Tilt(ctx context.Context, angle int) error
}

// Actuator performs a registered action by name.
type Actuator interface {
	Perform(ctx context.Context, action string) error
}

// Joystick is one sample of the operator's stick. Axes range -100..100.
type Joystick struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// JoystickDeadzone is the axis magnitude above which the stick counts as active.
const JoystickDeadzone = 5

// Active reports whether the stick is outside the dead zone.
func (j Joystick) Active() bool {
	return abs(j.X) > JoystickDeadzone || abs(j.Y) > JoystickDeadzone
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Sensors reads the robot's sensors.
type Sensors interface {
	ReadDistance(ctx context.Context) (float64, error)
	ReadCliff(ctx context.Context) (bool, error)
	// ReadJoystick returns false when no operator input is available.
	ReadJoystick(ctx context.Context) (Joystick, bool)
	ReadBattery(ctx context.Context) (int, error)
	// WheelsMoving reports whether the wheels are turning.
	WheelsMoving(ctx context.Context) (bool, error)
}

// Camera captures still frames.
type Camera interface {
	Capture(ctx context.Context) ([]byte, error)
}

// SceneDescriber turns an image into a short natural-language description.
type SceneDescriber interface {
	DescribeScene(ctx context.Context, image []byte) (string, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// LLM completes a single system+user prompt.
type LLM interface {
	Complete(ctx context.Context, systemPrompt, message string) (string, error)
}

// Message is one turn of chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatLLM is an LLM that accepts prior turns.
type ChatLLM interface {
	LLM
	Chat(ctx context.Context, systemPrompt string, history []Message) (string, error)
}

// Speaker speaks text aloud.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// AudioSink plays encoded audio.
type AudioSink interface {
	Play(ctx context.Context, audio io.Reader) error
}

// WakeWord is a non-blocking check for the wake word having been heard since
// the last call.
type WakeWord interface {
	Detected() bool
}

// Listener captures the user's voice.
type Listener interface {
	// WaitForWakeWord blocks up to timeout and reports whether the wake word
	// was heard.
	WaitForWakeWord(ctx context.Context, timeout time.Duration) (bool, error)
	// Record captures one utterance.
	Record(ctx context.Context) ([]byte, error)
}
