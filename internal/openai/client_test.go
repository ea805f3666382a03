package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/robot-brain/internal/robot"
)

type sink struct {
	mu     sync.Mutex
	played [][]byte
}

func (s *sink) Play(_ context.Context, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.played = append(s.played, b)
	s.mu.Unlock()
	return nil
}

type fakeAPI struct {
	mu       sync.Mutex
	chats    []goopenai.ChatCompletionRequest
	speech   []goopenai.CreateSpeechRequest
	language string
	reply    string
	fail     bool
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if f.fail {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		var req goopenai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.chats = append(f.chats, req)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(goopenai.ChatCompletionResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Model:  req.Model,
			Choices: []goopenai.ChatCompletionChoice{{
				Message:      goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: f.reply},
				FinishReason: goopenai.FinishReasonStop,
			}},
		})
	})
	mux.HandleFunc("/v1/audio/transcriptions", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		f.mu.Lock()
		f.language = r.FormValue("language")
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"  hej robot, vad gör du?  "}`))
	})
	mux.HandleFunc("/v1/audio/speech", func(w http.ResponseWriter, r *http.Request) {
		var req goopenai.CreateSpeechRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.speech = append(f.speech, req)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("PCMDATA"))
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI, s robot.AudioSink) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL + "/v1"
	c, err := New(cfg, s)
	require.NoError(t, err)
	return c
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(DefaultConfig(), nil)
	require.Error(t, err)
}

func TestChatSendsHistory(t *testing.T) {
	api := &fakeAPI{reply: "  ACTIONS: nod\nHej Leon!  "}
	c := newTestClient(t, api, nil)

	got, err := c.Chat(context.Background(), "du är en robot", []robot.Message{
		{Role: robot.RoleUser, Content: "hej"},
		{Role: robot.RoleAssistant, Content: "Hej!"},
		{Role: robot.RoleUser, Content: "vad heter du"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ACTIONS: nod\nHej Leon!", got)

	require.Len(t, api.chats, 1)
	req := api.chats[0]
	assert.Equal(t, goopenai.GPT4oMini, req.Model)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, goopenai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "du är en robot", req.Messages[0].Content)
	assert.Equal(t, goopenai.ChatMessageRoleAssistant, req.Messages[2].Role)
	assert.Equal(t, "vad heter du", req.Messages[3].Content)
}

func TestCompleteWrapsFailure(t *testing.T) {
	api := &fakeAPI{fail: true}
	c := newTestClient(t, api, nil)

	_, err := c.Complete(context.Background(), "sys", "hej")
	require.Error(t, err)
	assert.ErrorIs(t, err, robot.ErrLLM)
}

func TestEmptyReplyIsError(t *testing.T) {
	api := &fakeAPI{reply: "   "}
	c := newTestClient(t, api, nil)

	_, err := c.Complete(context.Background(), "sys", "hej")
	assert.ErrorIs(t, err, robot.ErrLLM)
}

func TestTranscribe(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, nil)

	text, err := c.Transcribe(context.Background(), []byte("RIFF....WAVE"))
	require.NoError(t, err)
	assert.Equal(t, "hej robot, vad gör du?", text)
	assert.Equal(t, "sv", api.language)

	_, err = c.Transcribe(context.Background(), nil)
	assert.ErrorIs(t, err, robot.ErrTranscription)
}

func TestSpeakPlaysAudio(t *testing.T) {
	api := &fakeAPI{}
	s := &sink{}
	c := newTestClient(t, api, s)

	require.NoError(t, c.Speak(context.Background(), "Hej Leon!"))
	require.Len(t, s.played, 1)
	assert.True(t, bytes.Equal([]byte("PCMDATA"), s.played[0]))

	require.Len(t, api.speech, 1)
	req := api.speech[0]
	assert.Equal(t, "Hej Leon!", req.Input)
	assert.Equal(t, goopenai.VoiceOnyx, req.Voice)
	assert.InDelta(t, 0.95, req.Speed, 1e-9)
}

func TestSpeakWithoutSink(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, nil)
	assert.ErrorIs(t, c.Speak(context.Background(), "hej"), robot.ErrSpeech)
}

func TestDescribeSceneSendsLowDetailImage(t *testing.T) {
	api := &fakeAPI{reply: "En stol, en boll och en matta."}
	c := newTestClient(t, api, nil)

	desc, err := c.DescribeScene(context.Background(), []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)
	assert.Equal(t, "En stol, en boll och en matta.", desc)

	require.Len(t, api.chats, 1)
	msg := api.chats[0].Messages[0]
	require.Len(t, msg.MultiContent, 2)
	assert.Equal(t, ScenePrompt, msg.MultiContent[0].Text)
	img := msg.MultiContent[1].ImageURL
	require.NotNil(t, img)
	assert.True(t, strings.HasPrefix(img.URL, "data:image/jpeg;base64,"))
	assert.Equal(t, goopenai.ImageURLDetailLow, img.Detail)
	assert.Equal(t, 50, api.chats[0].MaxTokens)
}
