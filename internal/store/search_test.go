package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/robot-brain/internal/model"
)

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.AddObservation(ctx, model.EntityUser, "gillar tåg"))
	require.NoError(t, s.AddObservation(ctx, model.EntityUser, "har en katt"))
	require.NoError(t, s.AddObservation(ctx, model.EntityEnvironment, "Tåget står under sängen"))
	require.NoError(t, s.AddObservation(ctx, model.EntitySelf, "jag är röd"))
}

func TestSearch(t *testing.T) {
	s, _ := newTestStore(t)
	seed(t, s)

	got := s.Search(SearchParams{Query: "TÅG"})
	require.Len(t, got, 2)
	assert.Equal(t, model.EntityEnvironment, got[0].Entity, "newest first")
	assert.Equal(t, "gillar tåg", got[1].Content)

	got = s.Search(SearchParams{Query: "tåg", Entity: model.EntityUser})
	require.Len(t, got, 1)

	got = s.Search(SearchParams{Limit: 1})
	require.Len(t, got, 1)
	assert.Equal(t, "jag är röd", got[0].Content)
}

func TestStats(t *testing.T) {
	s, _ := newTestStore(t)
	seed(t, s)

	st := s.Stats()

	assert.Equal(t, 4, st.TotalObservations)
	require.Len(t, st.Entities, 3)
	assert.Equal(t, "Leon", st.Entities[0].Entity)
	assert.Equal(t, 2, st.Entities[0].Count)
	assert.True(t, st.Entities[0].Newest.After(st.Entities[0].Oldest))
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestStore(t)
	seed(t, src)

	records := src.ExportAll("")
	require.Len(t, records, 4)
	assert.Equal(t, model.EntityUser, records[0].Entity)
	assert.Len(t, src.ExportAll(model.EntityUser), 2)

	dst, _ := newTestStore(t)
	n, err := dst.Import(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, src.FormatForPrompt(), dst.FormatForPrompt())
}
