// Package conversation runs one exchange with the language model: prompt
// assembly, the model call, parsing, gated action dispatch, memory and speech.
package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rcliao/robot-brain/internal/metrics"
	"github.com/rcliao/robot-brain/internal/mode"
	"github.com/rcliao/robot-brain/internal/model"
	"github.com/rcliao/robot-brain/internal/protocol"
	"github.com/rcliao/robot-brain/internal/robot"
	"github.com/rcliao/robot-brain/internal/speech"
)

// Fallback utterances.
const (
	FallbackLLM        = "Jag kan inte tänka just nu, försök igen!"
	FallbackTranscribe = "Jag hörde inte vad du sa. Försök igen!"
	FallbackTrouble    = "Jag har problem. Fråga pappa om hjälp."
)

// Prompter builds the system prompt around a memory digest.
type Prompter interface {
	SystemPrompt(digest string) string
}

// Memory is the part of the memory store the pipeline uses.
type Memory interface {
	FormatForPrompt() string
	AddObservation(ctx context.Context, entity model.Entity, text string) error
}

// Result describes one exchange.
type Result struct {
	ID          string               `json:"id"`
	Input       string               `json:"input"`
	Raw         string               `json:"raw,omitempty"`
	Response    model.ParsedResponse `json:"response"`
	Report      robot.Report         `json:"report"`
	Spoken      []string             `json:"spoken,omitempty"`
	Interrupted bool                 `json:"interrupted,omitempty"`
	Fallback    bool                 `json:"fallback,omitempty"`
	Err         error                `json:"-"`
}

// Pipeline runs exchanges. It is used from the single control goroutine.
type Pipeline struct {
	llm        robot.LLM
	prompter   Prompter
	memory     Memory
	dispatcher *robot.Dispatcher
	speaker    robot.Speaker
	wake       robot.WakeWord
	retry      robot.RetryPolicy
	history    *History
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWakeWord lets a wake word interrupt speech between sentences.
func WithWakeWord(w robot.WakeWord) Option {
	return func(p *Pipeline) { p.wake = w }
}

// WithRetry overrides the retry policy for model and speech calls.
func WithRetry(r robot.RetryPolicy) Option {
	return func(p *Pipeline) { p.retry = r }
}

// WithHistory overrides the chat history.
func WithHistory(h *History) Option {
	return func(p *Pipeline) { p.history = h }
}

// NewPipeline creates a pipeline.
func NewPipeline(llm robot.LLM, prompter Prompter, memory Memory, d *robot.Dispatcher, speaker robot.Speaker, opts ...Option) *Pipeline {
	p := &Pipeline{
		llm:        llm,
		prompter:   prompter,
		memory:     memory,
		dispatcher: d,
		speaker:    speaker,
		retry:      robot.DefaultRetryPolicy(),
		history:    NewHistory(DefaultHistoryPairs),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// History returns the chat history.
func (p *Pipeline) History() *History { return p.history }

// Respond answers a user utterance, with chat history when the model
// supports it.
func (p *Pipeline) Respond(ctx context.Context, text string) Result {
	res := p.exchange(ctx, text, true)
	if res.Err == nil {
		p.history.Add(text, res.Raw)
	}
	return res
}

// Narrate routes a system event through the same pipeline as a user turn,
// without touching the chat history.
func (p *Pipeline) Narrate(ctx context.Context, ev mode.SystemEvent) Result {
	log.Info().Str("component", "chat").Str("event", ev.Kind).Msg("system event")
	return p.exchange(ctx, ev.Prompt(), false)
}

func (p *Pipeline) exchange(ctx context.Context, input string, withHistory bool) Result {
	start := time.Now()
	defer func() { metrics.ExchangeLatency.Observe(time.Since(start).Seconds()) }()

	res := Result{ID: uuid.NewString(), Input: input}
	logger := log.With().Str("component", "chat").Str("exchange", res.ID).Logger()

	system := p.prompter.SystemPrompt(p.memory.FormatForPrompt())

	var raw string
	err := p.retry.Do(ctx, "llm", func(ctx context.Context) error {
		var err error
		if chat, ok := p.llm.(robot.ChatLLM); ok && withHistory {
			raw, err = chat.Chat(ctx, system, p.history.With(input))
		} else {
			raw, err = p.llm.Complete(ctx, system, input)
		}
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("language model failed, using fallback")
		res.Err = errors.Join(robot.ErrLLM, err)
		res.Fallback = true
		p.dispatcher.SafeStop(ctx)
		res.Spoken, _ = p.say(ctx, FallbackLLM)
		return res
	}

	res.Raw = raw
	res.Response = protocol.Parse(raw)
	logger.Info().
		Strs("actions", res.Response.Actions).
		Bool("memory", res.Response.Memory != nil).
		Msg("parsed response")

	res.Report = p.dispatcher.Dispatch(ctx, res.Response.Actions)

	if m := res.Response.Memory; m != nil {
		err := p.memory.AddObservation(ctx, m.Entity, m.Observation)
		metrics.MemoryWrites.WithLabelValues(string(m.Entity), metrics.Result(err)).Inc()
		if err != nil {
			logger.Error().Err(err).Str("entity", string(m.Entity)).Msg("memory dropped")
		}
	}

	res.Spoken, res.Interrupted = p.say(ctx, res.Response.Speech)
	p.dispatcher.SafeStop(ctx)
	return res
}

// SafeStop stops the drivetrain and recenters the head.
func (p *Pipeline) SafeStop(ctx context.Context) {
	p.dispatcher.SafeStop(ctx)
}

// Say speaks text sentence by sentence outside of an exchange.
func (p *Pipeline) Say(ctx context.Context, text string) {
	p.say(ctx, text)
}

// say speaks sentence by sentence. A wake word heard between sentences stops
// playback. Speech failures are logged and skipped.
func (p *Pipeline) say(ctx context.Context, text string) ([]string, bool) {
	var spoken []string
	for i, s := range speech.Sentences(text) {
		if i > 0 && p.wake != nil && p.wake.Detected() {
			log.Info().Str("component", "chat").Msg("speech interrupted by wake word")
			return spoken, true
		}
		err := p.retry.Do(ctx, "speak", func(ctx context.Context) error {
			return p.speaker.Speak(ctx, s)
		})
		if err != nil {
			log.Warn().Err(err).Str("component", "chat").Str("sentence", s).Msg("speech failed")
			continue
		}
		spoken = append(spoken, s)
	}
	return spoken, false
}
