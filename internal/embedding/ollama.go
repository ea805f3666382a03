package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

// Ollama defaults. The model is kept loaded between thoughts, which arrive
// every 30 to 60 seconds.
const (
	DefaultOllamaURL  = "http://localhost:11434"
	ollamaKeepAlive   = "5m"
	ollamaTimeout     = 10 * time.Second
	maxOllamaErrorLen = 512
)

// Known vector sizes for common embedding models. Unknown models start at
// 768 and learn their size from the first scene.
var ollamaDims = map[string]int{
	"nomic-embed-text":  768,
	"all-minilm":        384,
	"mxbai-embed-large": 1024,
}

// ErrNoVector is returned when the embedding server answers without a vector.
var ErrNoVector = errors.New("no scene vector")

// OllamaEmbedder fingerprints scene descriptions with a local Ollama server.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client

	mu   sync.Mutex
	dims int
}

// sceneRequest is the body of POST /api/embeddings.
type sceneRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	KeepAlive string `json:"keep_alive,omitempty"`
}

type sceneVector struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaEmbedder creates an embedder using Ollama's API. An empty baseURL
// falls back to OLLAMA_HOST, then localhost.
func NewOllamaEmbedder(baseURL, model string) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	dims, ok := ollamaDims[model]
	if !ok {
		dims = 768
	}
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: ollamaTimeout},
	}
}

// Embed returns the fingerprint of one scene description.
func (e *OllamaEmbedder) Embed(ctx context.Context, scene string) (Vector, error) {
	body, err := json.Marshal(sceneRequest{Model: e.model, Prompt: scene, KeepAlive: ollamaKeepAlive})
	if err != nil {
		return nil, fmt.Errorf("encode scene: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fingerprint scene: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fingerprint scene with %s: %w", e.model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxOllamaErrorLen))
		return nil, fmt.Errorf("fingerprint scene with %s: status %d: %s", e.model, resp.StatusCode, bytes.TrimSpace(b))
	}

	var out sceneVector
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode scene vector: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("fingerprint scene with %s: %w", e.model, ErrNoVector)
	}

	e.mu.Lock()
	e.dims = len(out.Embedding)
	e.mu.Unlock()
	return out.Embedding, nil
}

// Dims is the vector size of the last scene, or the model's known size before
// the first one.
func (e *OllamaEmbedder) Dims() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dims
}
