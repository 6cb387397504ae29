package documents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBadgerStore(t *testing.T) {
	s, err := OpenBadger("", zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestBadgerStorePersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadger(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, doc("cat.jpg", 0)))
	require.NoError(t, s.Close())

	s, err = OpenBadger(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	ok, err := s.Exists(ctx, "cat.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBadgerRecentBeforeEpoch(t *testing.T) {
	s, err := OpenBadger("", nil)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	old := doc("old.jpg", 0)
	old.ProcessedTimestamp = time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(ctx, old))
	require.NoError(t, s.Put(ctx, doc("new.jpg", 0)))

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"new.jpg", "old.jpg"}, ids(got))
}
