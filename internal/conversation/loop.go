package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rcliao/robot-brain/internal/mode"
	"github.com/rcliao/robot-brain/internal/robot"
	"github.com/rcliao/robot-brain/internal/speech"
)

// FloorPhrases confirm, while on a table, that the robot is back on the floor.
var FloorPhrases = []string{"på golvet", "du är nere", "inte på bordet"}

// ConfirmsFloor reports whether text contains a floor phrase.
func ConfirmsFloor(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range FloorPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Loop turns recorded audio or typed text into an exchange and keeps the
// mode machine informed.
type Loop struct {
	pipeline    *Pipeline
	transcriber robot.Transcriber
	machine     *mode.Machine
}

// NewLoop creates a loop. transcriber may be nil for text-only use.
func NewLoop(p *Pipeline, t robot.Transcriber, m *mode.Machine) *Loop {
	return &Loop{pipeline: p, transcriber: t, machine: m}
}

// Pipeline returns the underlying pipeline.
func (l *Loop) Pipeline() *Pipeline { return l.pipeline }

// HandleAudio transcribes audio and handles the text.
func (l *Loop) HandleAudio(ctx context.Context, audio []byte) Result {
	if l.transcriber == nil {
		return l.fail(ctx, "", fmt.Errorf("%w: no transcriber configured", robot.ErrTranscription))
	}
	var text string
	err := l.pipeline.retry.Do(ctx, "transcribe", func(ctx context.Context) error {
		var err error
		text, err = l.transcriber.Transcribe(ctx, audio)
		return err
	})
	if err != nil {
		return l.fail(ctx, "", errors.Join(robot.ErrTranscription, err))
	}
	return l.HandleText(ctx, text)
}

// HandleText validates an utterance and runs an exchange.
func (l *Loop) HandleText(ctx context.Context, text string) Result {
	text = strings.TrimSpace(text)
	if ok, reason := speech.Validate(text); !ok {
		return l.fail(ctx, text, fmt.Errorf("%w: %s", robot.ErrTranscription, reason))
	}
	log.Info().Str("component", "chat").Str("text", text).Msg("user said")

	if l.machine.Current() == mode.TableMode && ConfirmsFloor(text) {
		l.machine.Handle(mode.EventFloorConfirmed)
	}
	l.machine.Handle(mode.EventUtterance)

	return l.pipeline.Respond(ctx, text)
}

func (l *Loop) fail(ctx context.Context, text string, err error) Result {
	log.Warn().Err(err).Str("component", "chat").Msg("could not understand user")
	res := Result{Input: text, Fallback: true, Err: err}
	l.pipeline.dispatcher.SafeStop(ctx)
	res.Spoken, _ = l.pipeline.say(ctx, FallbackTranscribe)
	return res
}
