// Package openai implements the robot's language, speech and vision
// collaborators on top of the OpenAI API.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/rcliao/robot-brain/internal/robot"
)

// ScenePrompt asks the vision model for a short list of what it sees.
const ScenePrompt = "Beskriv kort vad du ser. Lista 3-5 objekt på svenska. Max 20 ord."

// Config selects models and voice.
type Config struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	BaseURL         string  `mapstructure:"base_url" yaml:"base_url"`
	Model           string  `mapstructure:"model" yaml:"model"`
	VisionModel     string  `mapstructure:"vision_model" yaml:"vision_model"`
	TranscribeModel string  `mapstructure:"transcribe_model" yaml:"transcribe_model"`
	Language        string  `mapstructure:"language" yaml:"language"`
	TTSModel        string  `mapstructure:"tts_model" yaml:"tts_model"`
	Voice           string  `mapstructure:"voice" yaml:"voice"`
	Speed           float64 `mapstructure:"speed" yaml:"speed"`
	AudioFormat     string  `mapstructure:"audio_format" yaml:"audio_format"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	SceneMaxTokens  int     `mapstructure:"scene_max_tokens" yaml:"scene_max_tokens"`
}

// DefaultConfig returns the standard models: gpt-4o-mini for chat and
// vision, whisper-1 in Swedish, tts-1 with the onyx voice.
func DefaultConfig() Config {
	return Config{
		Model:           goopenai.GPT4oMini,
		VisionModel:     goopenai.GPT4oMini,
		TranscribeModel: goopenai.Whisper1,
		Language:        "sv",
		TTSModel:        string(goopenai.TTSModel1),
		Voice:           string(goopenai.VoiceOnyx),
		Speed:           0.95,
		AudioFormat:     "pcm",
		MaxTokens:       200,
		SceneMaxTokens:  50,
	}
}

// NewAPI builds the underlying API client.
func NewAPI(cfg Config) *goopenai.Client {
	conf := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	return goopenai.NewClientWithConfig(conf)
}

// Client implements robot.ChatLLM, robot.Transcriber, robot.Speaker and
// robot.SceneDescriber.
type Client struct {
	api  *goopenai.Client
	cfg  Config
	sink robot.AudioSink
}

// New creates a client. Synthesized speech is played on sink; a nil sink
// makes Speak fail with robot.ErrSpeech.
func New(cfg Config, sink robot.AudioSink) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	return &Client{api: NewAPI(cfg), cfg: cfg, sink: sink}, nil
}

// API exposes the underlying client for the embedding provider.
func (c *Client) API() *goopenai.Client { return c.api }

// Complete sends a single system+user prompt.
func (c *Client) Complete(ctx context.Context, systemPrompt, message string) (string, error) {
	return c.Chat(ctx, systemPrompt, []robot.Message{{Role: robot.RoleUser, Content: message}})
}

// Chat sends the system prompt followed by prior turns.
func (c *Client) Chat(ctx context.Context, systemPrompt string, history []robot.Message) (string, error) {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt})
	for _, m := range history {
		role := goopenai.ChatMessageRoleUser
		if m.Role == robot.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		Messages:  msgs,
		MaxTokens: c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", robot.ErrLLM, err)
	}
	return firstChoice(resp, robot.ErrLLM)
}

// Transcribe sends recorded WAV audio to the speech-to-text model.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty recording", robot.ErrTranscription)
	}
	resp, err := c.api.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    c.cfg.TranscribeModel,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(audio),
		Language: c.cfg.Language,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", robot.ErrTranscription, err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Speak synthesizes text and plays it on the sink.
func (c *Client) Speak(ctx context.Context, text string) error {
	if c.sink == nil {
		return fmt.Errorf("%w: no audio sink", robot.ErrSpeech)
	}
	resp, err := c.api.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(c.cfg.TTSModel),
		Input:          text,
		Voice:          goopenai.SpeechVoice(c.cfg.Voice),
		Speed:          c.cfg.Speed,
		ResponseFormat: goopenai.SpeechResponseFormat(c.cfg.AudioFormat),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", robot.ErrSpeech, err)
	}
	defer resp.Close()

	if err := c.sink.Play(ctx, resp); err != nil {
		return fmt.Errorf("%w: play: %w", robot.ErrSpeech, err)
	}
	return nil
}

// DescribeScene asks the vision model what a JPEG frame shows.
func (c *Client) DescribeScene(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("%w: empty frame", robot.ErrSensor)
	}
	url := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.cfg.VisionModel,
		Messages: []goopenai.ChatCompletionMessage{{
			Role: goopenai.ChatMessageRoleUser,
			MultiContent: []goopenai.ChatMessagePart{
				{Type: goopenai.ChatMessagePartTypeText, Text: ScenePrompt},
				{
					Type:     goopenai.ChatMessagePartTypeImageURL,
					ImageURL: &goopenai.ChatMessageImageURL{URL: url, Detail: goopenai.ImageURLDetailLow},
				},
			},
		}},
		MaxTokens: c.cfg.SceneMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("describe scene: %w", err)
	}
	return firstChoice(resp, errors.New("describe scene"))
}

func firstChoice(resp goopenai.ChatCompletionResponse, kind error) (string, error) {
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", kind)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty reply", kind)
	}
	return text, nil
}
