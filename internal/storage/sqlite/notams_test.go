package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/co-notam/internal/notam"
	"github.com/yegors/co-notam/pkg/logger"
)

func openTestStorage(t *testing.T) *NotamStorage {
	t.Helper()
	s, err := NewNotamStorage(filepath.Join(t.TempDir(), "notams.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleNotams() []*notam.Notam {
	start := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Hour)
	return []*notam.Notam{
		{
			ID:               "A1234/24",
			Text:             "RWY 09L/27R CLSD DUE TO WIP",
			Location:         "EGLL",
			FIR:              "EGTT",
			QCode:            "QMRLC",
			Source:           "api",
			Position:         &notam.Point{Lat: 51.4706, Lon: -0.4619},
			EffectiveStart:   start,
			EffectiveEnd:     &end,
			IssuedAt:         start.Add(-24 * time.Hour),
			Fields:           map[string]string{"type": "N"},
			PrimaryCategory:  notam.CategoryRunway,
			CustomCategories: notam.NewSet(notam.CategoryRunway),
			CustomTags:       notam.NewSet(notam.TagClosed, notam.TagWorkInProgress),
		},
		{
			ID:             "B0001/24",
			Text:           "OBST CRANE ERECTED",
			Location:       "EGKK",
			EffectiveStart: start.Add(time.Hour),
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t)

	written, err := s.Save(ctx, sampleNotams())
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	first := loaded[0]
	assert.Equal(t, "A1234/24", first.ID)
	assert.Equal(t, notam.CategoryRunway, first.PrimaryCategory)
	assert.True(t, first.CustomTags.Equal(notam.NewSet(notam.TagClosed, notam.TagWorkInProgress)))
	require.NotNil(t, first.Position)
	assert.InDelta(t, 51.4706, first.Position.Lat, 1e-9)
	require.NotNil(t, first.EffectiveEnd)
	assert.Equal(t, "N", first.Fields["type"])

	second := loaded[1]
	assert.False(t, second.IsCategorized())
	assert.Nil(t, second.EffectiveEnd)
	assert.Nil(t, second.Position)
}

func TestSaveUpserts(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t)

	notams := sampleNotams()
	_, err := s.Save(ctx, notams)
	require.NoError(t, err)

	notams[1].PrimaryCategory = notam.CategoryObstacle
	notams[1].CustomCategories = notam.NewSet(notam.CategoryObstacle)
	_, err = s.Save(ctx, notams[1:])
	require.NoError(t, err)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, ok, err := s.Get(ctx, "B0001/24")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, notam.CategoryObstacle, got.PrimaryCategory)

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveRejectsInvalid(t *testing.T) {
	s := openTestStorage(t)
	_, err := s.Save(context.Background(), []*notam.Notam{{ID: " "}})
	assert.ErrorIs(t, err, notam.ErrMalformedInput)

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := openTestStorage(t)
	_, err := s.Save(ctx, sampleNotams())
	require.NoError(t, err)

	deleted, err := s.DeleteExpired(ctx, time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, deleted, "window ends exactly at the cutoff")

	deleted, err = s.DeleteExpired(ctx, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "B0001/24", loaded[0].ID, "permanent NOTAMs are kept")
}
