package documents

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/vision-showcase/internal/models"
)

var base = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func doc(name string, offset time.Duration) models.AnalysisDocument {
	return models.AnalysisDocument{
		FileName:           name,
		DetectedLabels:     []string{"Cat", "Whiskers"},
		DominantColors:     []models.Color{{Red: 200, Green: 120, Blue: 40}},
		ProcessedTimestamp: base.Add(offset),
	}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("pending until written", func(t *testing.T) {
		ok, err := s.Exists(ctx, "cat.jpg")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.Get(ctx, "cat.jpg")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.Put(ctx, doc("cat.jpg", 0)))

		for i := 0; i < 3; i++ {
			ok, err = s.Exists(ctx, "cat.jpg")
			require.NoError(t, err)
			assert.True(t, ok)
		}

		got, err := s.Get(ctx, "cat.jpg")
		require.NoError(t, err)
		assert.Equal(t, "cat.jpg", got.ID)
		assert.Equal(t, []string{"Cat", "Whiskers"}, got.DetectedLabels)
		assert.Equal(t, []models.Color{{Red: 200, Green: 120, Blue: 40}}, got.DominantColors)
		assert.True(t, base.Equal(got.ProcessedTimestamp))
	})

	t.Run("recent is newest first and capped", func(t *testing.T) {
		for i := 1; i <= 7; i++ {
			require.NoError(t, s.Put(ctx, doc(fmt.Sprintf("img-%d.png", i), time.Duration(i)*time.Minute)))
		}
		got, err := s.Recent(ctx, 4)
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, []string{"img-7.png", "img-6.png", "img-5.png", "img-4.png"}, ids(got))
		for i := 1; i < len(got); i++ {
			assert.True(t, got[i-1].ProcessedTimestamp.After(got[i].ProcessedTimestamp))
		}
	})

	t.Run("reprocessing replaces the document", func(t *testing.T) {
		updated := doc("img-1.png", time.Hour)
		updated.DetectedLabels = []string{"Dog"}
		require.NoError(t, s.Put(ctx, updated))

		got, err := s.Recent(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, "img-1.png", got[0].ID)
		assert.Equal(t, []string{"Dog"}, got[0].DetectedLabels)

		seen := 0
		for _, d := range got {
			if d.ID == "img-1.png" {
				seen++
			}
		}
		assert.Equal(t, 1, seen, "overwritten document listed once")
	})

	t.Run("zero limit", func(t *testing.T) {
		got, err := s.Recent(ctx, 0)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("rejects documents without a name", func(t *testing.T) {
		err := s.Put(ctx, models.AnalysisDocument{ID: "x"})
		assert.ErrorIs(t, err, models.ErrMissingFileName)
	})
}

func ids(docs []models.AnalysisDocument) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
