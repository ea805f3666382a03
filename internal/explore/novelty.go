package explore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rcliao/robot-brain/internal/embedding"
)

// DefaultNoveltyHistory is how many recent scenes a new one is compared to.
const DefaultNoveltyHistory = 5

// Novelty scores how different a scene is from the last few seen.
type Novelty struct {
	mu       sync.Mutex
	embedder embedding.Embedder
	size     int
	history  []embedding.Vector
}

// NewNovelty creates a scorer keeping the last size fingerprints.
func NewNovelty(e embedding.Embedder, size int) *Novelty {
	if size <= 0 {
		size = DefaultNoveltyHistory
	}
	return &Novelty{embedder: e, size: size}
}

// Score returns a value in [0, 1]: 1 for the first scene, otherwise one minus
// the average (non-negative) cosine similarity to the history. The scene is
// then added to the history.
func (n *Novelty) Score(ctx context.Context, description string) (float64, error) {
	if strings.TrimSpace(description) == "" {
		return 0, nil
	}
	v, err := n.embedder.Embed(ctx, description)
	if err != nil {
		return 0, fmt.Errorf("fingerprint scene: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	score := 1.0
	if len(n.history) > 0 {
		var sum float64
		for _, past := range n.history {
			sum += embedding.CosineSimilarity(v, past)
		}
		score = 1 - max(0, sum/float64(len(n.history)))
	}

	n.history = append(n.history, v)
	if len(n.history) > n.size {
		n.history = n.history[len(n.history)-n.size:]
	}
	return score, nil
}

// Reset forgets the history.
func (n *Novelty) Reset() {
	n.mu.Lock()
	n.history = nil
	n.mu.Unlock()
}
