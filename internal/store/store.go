// Package store provides the entity-keyed observation log and its persistence backends.
package store

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/rcliao/robot-brain/internal/model"
)

// Limits of the observation log.
const (
	MaxObservationsPerEntity = 20
	MaxPromptPerEntity       = 5
	MaxPromptObservations    = 15
)

// Backend persists the whole memory document. Save must replace the stored
// document atomically: a reader sees either the old or the new content.
type Backend interface {
	Load(ctx context.Context) (*model.Document, error)
	Save(ctx context.Context, doc *model.Document) error
	Close() error
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMaxPerEntity overrides the per-entity cap.
func WithMaxPerEntity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxPerEntity = n
		}
	}
}

// WithOnWrite registers a callback invoked after every AddObservation attempt
// with the entity and the final error (nil on success).
func WithOnWrite(fn func(entity model.Entity, err error)) Option {
	return func(s *Store) { s.onWrite = fn }
}

// Store is the in-process view of the observation log. It is safe for
// concurrent use; every mutation is persisted before it returns.
type Store struct {
	mu           sync.Mutex
	backend      Backend
	doc          *model.Document
	now          func() time.Time
	entropy      *rand.Rand
	maxPerEntity int
	onWrite      func(model.Entity, error)
}

// Open loads the document from the backend. A backend that fails to load
// leaves the store empty rather than failing startup.
func Open(ctx context.Context, b Backend, opts ...Option) *Store {
	s := &Store{
		backend:      b,
		now:          time.Now,
		entropy:      rand.New(rand.NewSource(time.Now().UnixNano())),
		maxPerEntity: MaxObservationsPerEntity,
	}
	for _, o := range opts {
		o(s)
	}

	doc, err := b.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Str("component", "memory").Msg("load failed, starting fresh")
		doc = model.NewDocument()
	}
	if doc == nil || doc.Entities == nil {
		doc = model.NewDocument()
	}
	s.doc = doc
	log.Info().Str("component", "memory").
		Int("entities", len(doc.Entities)).
		Int("observations", doc.Count()).
		Msg("memory loaded")
	return s
}

func (s *Store) newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// AddObservation appends an observation to an entity, prunes the entity to
// the most recent entries and persists the store. Blank text is a no-op.
// A failed save is retried once; if it fails again the observation is
// dropped and the error returned.
func (s *Store) AddObservation(ctx context.Context, entity model.Entity, text string) (err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if entity == "" {
		entity = model.EntityGeneral
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if s.onWrite != nil {
			s.onWrite(entity, err)
		}
	}()

	prev := s.doc.Clone()

	el, ok := s.doc.Entities[entity]
	if !ok || el == nil {
		log.Info().Str("component", "memory").Str("entity", string(entity)).Msg("creating entity")
		el = &model.EntityLog{}
		s.doc.Entities[entity] = el
	}
	ts := s.now()
	el.Observations = append(el.Observations, model.Observation{
		ID:        s.newID(ts),
		Content:   text,
		Timestamp: ts,
	})
	if n := len(el.Observations) - s.maxPerEntity; n > 0 {
		el.Observations = append([]model.Observation(nil), el.Observations[n:]...)
		log.Debug().Str("component", "memory").Str("entity", string(entity)).Int("pruned", n).Msg("pruned observations")
	}

	if err := s.save(ctx); err != nil {
		s.doc = prev
		log.Error().Err(err).Str("component", "memory").Str("entity", string(entity)).Msg("observation dropped")
		return fmt.Errorf("save memory: %w", err)
	}
	log.Info().Str("component", "memory").Str("entity", string(entity)).Str("content", text).Msg("observation added")
	return nil
}

func (s *Store) save(ctx context.Context) error {
	err := s.backend.Save(ctx, s.doc.Clone())
	if err == nil {
		return nil
	}
	log.Warn().Err(err).Str("component", "memory").Msg("save failed, retrying once")
	return s.backend.Save(ctx, s.doc.Clone())
}

// Observations returns a copy of an entity's observations, oldest first.
func (s *Store) Observations(entity model.Entity) []model.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	el := s.doc.Entities[entity]
	if el == nil {
		return nil
	}
	out := make([]model.Observation, len(el.Observations))
	copy(out, el.Observations)
	return out
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() *model.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
