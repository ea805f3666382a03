package store

import (
	"sort"
	"strings"

	"github.com/rcliao/robot-brain/internal/model"
)

// SearchParams holds parameters for searching observations.
type SearchParams struct {
	Entity model.Entity
	Query  string
	Limit  int
}

// SearchResult is a matching observation with its entity.
type SearchResult struct {
	Entity model.Entity `json:"entity"`
	model.Observation
}

// Search finds observations whose content contains the query, case
// insensitively, newest first.
func (s *Store) Search(p SearchParams) []SearchResult {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	q := strings.ToLower(strings.TrimSpace(p.Query))

	doc := s.Snapshot()
	var results []SearchResult
	for e, el := range doc.Entities {
		if el == nil || (p.Entity != "" && e != p.Entity) {
			continue
		}
		for _, o := range el.Observations {
			if q == "" || strings.Contains(strings.ToLower(o.Content), q) {
				results = append(results, SearchResult{Entity: e, Observation: o})
			}
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
