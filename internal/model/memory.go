// Package model defines the core data types shared by the robot brain.
package model

import (
	"sort"
	"time"
)

// Entity is the subject an observation is about.
type Entity string

// Well-known entities. Anything else is an ad-hoc entity named by an explicit
// MEMORY tag.
const (
	EntityUser        Entity = "Leon"
	EntityEnvironment Entity = "environment"
	EntitySelf        Entity = "self"
	EntityGeneral     Entity = "general"
)

// PriorityEntities is the order entities appear in the prompt digest.
var PriorityEntities = []Entity{EntityUser, EntitySelf, EntityEnvironment}

// Observation is one remembered fact about an entity.
type Observation struct {
	ID        string    `json:"id,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// EntityLog holds the observations of one entity, oldest first.
type EntityLog struct {
	Observations []Observation `json:"observations"`
}

// Document is the persisted shape of the whole memory store.
type Document struct {
	Entities map[Entity]*EntityLog `json:"entities"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Entities: map[Entity]*EntityLog{}}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := NewDocument()
	if d == nil {
		return out
	}
	for e, log := range d.Entities {
		if log == nil {
			continue
		}
		obs := make([]Observation, len(log.Observations))
		copy(obs, log.Observations)
		out.Entities[e] = &EntityLog{Observations: obs}
	}
	return out
}

// Count returns the total number of observations.
func (d *Document) Count() int {
	n := 0
	for _, log := range d.Entities {
		if log != nil {
			n += len(log.Observations)
		}
	}
	return n
}

// OrderedEntities lists entities in digest order: the priority entities,
// then general, then ad-hoc entities alphabetically.
func (d *Document) OrderedEntities() []Entity {
	seen := map[Entity]bool{}
	var out []Entity
	for _, e := range PriorityEntities {
		if _, ok := d.Entities[e]; ok {
			out = append(out, e)
			seen[e] = true
		}
	}
	if _, ok := d.Entities[EntityGeneral]; ok {
		out = append(out, EntityGeneral)
		seen[EntityGeneral] = true
	}
	var rest []Entity
	for e := range d.Entities {
		if !seen[e] {
			rest = append(rest, e)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}

// MemoryNote is the (entity, observation) pair carried by a MEMORY line.
type MemoryNote struct {
	Entity      Entity `json:"entity"`
	Observation string `json:"observation"`
}

// ParsedResponse is the result of parsing one language-model turn.
type ParsedResponse struct {
	Actions []string    `json:"actions"`
	Speech  string      `json:"speech"`
	Memory  *MemoryNote `json:"memory,omitempty"`
}
