package store

import (
	"sort"
	"time"
)

// Stats holds memory statistics.
type Stats struct {
	Path              string        `json:"path,omitempty"`
	TotalObservations int           `json:"total_observations"`
	Entities          []EntityStats `json:"entities"`
}

// EntityStats holds per-entity counts.
type EntityStats struct {
	Entity string    `json:"entity"`
	Count  int       `json:"count"`
	Oldest time.Time `json:"oldest"`
	Newest time.Time `json:"newest"`
}

// Stats returns per-entity statistics, largest entity first.
func (s *Store) Stats() *Stats {
	doc := s.Snapshot()
	st := &Stats{}
	for e, el := range doc.Entities {
		if el == nil || len(el.Observations) == 0 {
			continue
		}
		obs := el.Observations
		st.TotalObservations += len(obs)
		st.Entities = append(st.Entities, EntityStats{
			Entity: string(e),
			Count:  len(obs),
			Oldest: obs[0].Timestamp,
			Newest: obs[len(obs)-1].Timestamp,
		})
	}
	sort.Slice(st.Entities, func(i, j int) bool {
		if st.Entities[i].Count != st.Entities[j].Count {
			return st.Entities[i].Count > st.Entities[j].Count
		}
		return st.Entities[i].Entity < st.Entities[j].Entity
	})
	return st
}
