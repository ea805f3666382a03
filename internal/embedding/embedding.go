// Package embedding turns scene descriptions into vectors so the exploration
// loop can tell how novel a view is.
package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	openai "github.com/sashabaranov/go-openai"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// --- Local hashing provider ---

// HashEmbedder is an offline bag-of-words embedder: each lowercased word is
// hashed into one of dims buckets. Good enough to compare short scene
// descriptions without a network call.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hashing embedder. dims defaults to 256.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	v := make(Vector, e.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(e.dims)]++
	}
	return v, nil
}

func (e *HashEmbedder) Dims() int { return e.dims }

// --- OpenAI provider ---

// OpenAIEmbedder uses the OpenAI embeddings endpoint, or any compatible API
// reachable through the client's base URL.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dims   int
}

// NewOpenAIEmbedder creates an embedder on an existing client.
func NewOpenAIEmbedder(client *openai.Client, model string, dims int) *OpenAIEmbedder {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if dims == 0 {
		dims = 1536
	}
	return &OpenAIEmbedder{client: client, model: model, dims: dims}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Data[0].Embedding, nil
}

func (e *OpenAIEmbedder) Dims() int { return e.dims }

// --- Factory ---

// Config selects an embedding provider.
type Config struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // hash | ollama | openai
	Model    string `mapstructure:"model" yaml:"model"`
	URL      string `mapstructure:"url" yaml:"url"`
	Dims     int    `mapstructure:"dims" yaml:"dims"`
}

// New creates the configured embedder. client is only used by the openai
// provider and may be nil otherwise.
func New(cfg Config, client *openai.Client) (Embedder, error) {
	switch cfg.Provider {
	case "", "hash":
		return NewHashEmbedder(cfg.Dims), nil
	case "ollama":
		model := cfg.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaEmbedder(cfg.URL, model), nil
	case "openai":
		if client == nil {
			return nil, fmt.Errorf("openai embeddings need an API client")
		}
		return NewOpenAIEmbedder(client, cfg.Model, cfg.Dims), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
