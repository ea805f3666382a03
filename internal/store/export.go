package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/rcliao/robot-brain/internal/model"
)

// ExportRecord is one observation in the flat export format.
type ExportRecord struct {
	Entity model.Entity `json:"entity"`
	model.Observation
}

// ExportAll returns every observation, optionally filtered to one entity,
// ordered by entity then timestamp.
func (s *Store) ExportAll(entity model.Entity) []ExportRecord {
	doc := s.Snapshot()
	var out []ExportRecord
	for _, e := range doc.OrderedEntities() {
		if entity != "" && e != entity {
			continue
		}
		el := doc.Entities[e]
		if el == nil {
			continue
		}
		for _, o := range el.Observations {
			out = append(out, ExportRecord{Entity: e, Observation: o})
		}
	}
	return out
}

// Import appends records in timestamp order through AddObservation, so caps
// and persistence apply as for live observations. Returns the number imported.
func (s *Store) Import(ctx context.Context, records []ExportRecord) (int, error) {
	sorted := make([]ExportRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	imported := 0
	for _, r := range sorted {
		if r.Content == "" {
			continue
		}
		if err := s.AddObservation(ctx, r.Entity, r.Content); err != nil {
			return imported, fmt.Errorf("import %s: %w", r.Entity, err)
		}
		imported++
	}
	return imported, nil
}
