package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"storykeeper/internal/domain/favorite"
	"storykeeper/internal/domain/outbox"
	"storykeeper/internal/domain/story"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStorage(path, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testStory(id string, createdAt time.Time) *story.Story {
	lat := -6.2
	lon := 106.8
	return &story.Story{
		ID:          id,
		Name:        "user",
		Description: "description for " + id,
		PhotoURL:    "https://example.com/" + id + ".jpg",
		Lat:         &lat,
		Lon:         &lon,
		CreatedAt:   createdAt,
		Synced:      true,
	}
}

func TestSQLiteStorage_ReinitPreservesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewSQLiteStorage(path, slog.Default())
	require.NoError(t, err)
	require.NoError(t, s.PutStory(ctx, testStory("a", time.Now())))
	require.NoError(t, s.Close())

	// Re-opening runs migrations again; existing data must survive.
	s2, err := NewSQLiteStorage(path, slog.Default())
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetStory(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}

func TestSQLiteStorage_StoryRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// Insert out of chronological order.
	stories := []*story.Story{
		testStory("mid", base.Add(1*time.Hour)),
		testStory("oldest", base),
		testStory("newest", base.Add(2*time.Hour)),
	}
	for _, st := range stories {
		require.NoError(t, s.PutStory(ctx, st))
	}

	got, err := s.ListStories(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Chronological index: newest first.
	assert.Equal(t, "newest", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, "oldest", got[2].ID)

	// Fields survive the round trip.
	assert.Equal(t, "description for oldest", got[2].Description)
	require.NotNil(t, got[2].Lat)
	assert.InDelta(t, -6.2, *got[2].Lat, 1e-9)
	assert.True(t, got[2].Synced)
}

func TestSQLiteStorage_NilCoordinates(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	st := testStory("nogeo", time.Now())
	st.Lat = nil
	st.Lon = nil
	require.NoError(t, s.PutStory(ctx, st))

	got, err := s.GetStory(ctx, "nogeo")
	require.NoError(t, err)
	assert.Nil(t, got.Lat)
	assert.Nil(t, got.Lon)
}

func TestSQLiteStorage_ReplaceStories(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.PutStory(ctx, testStory("old-1", time.Now())))
	require.NoError(t, s.PutStory(ctx, testStory("old-2", time.Now())))

	fresh := []*story.Story{
		testStory("new-1", time.Now()),
	}
	require.NoError(t, s.ReplaceStories(ctx, fresh))

	got, err := s.ListStories(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new-1", got[0].ID)

	// Replacement, not merge: old records are gone.
	_, err = s.GetStory(ctx, "old-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStorage_GetStoryNotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetStory(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStorage_FavoriteRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	ref := &favorite.Reference{
		StoryID: "fav-1",
		Story:   *testStory("fav-1", time.Now()),
		AddedAt: time.Now(),
	}
	require.NoError(t, s.PutFavorite(ctx, ref))

	// Putting the same favorite again is a no-op, not an error.
	require.NoError(t, s.PutFavorite(ctx, ref))

	refs, err := s.ListFavorites(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "fav-1", refs[0].StoryID)
	assert.Equal(t, ref.Story.Description, refs[0].Story.Description)

	require.NoError(t, s.DeleteFavorite(ctx, "fav-1"))
	refs, err = s.ListFavorites(ctx)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestSQLiteStorage_OutboxOrderAndLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	payload, err := json.Marshal(map[string]string{"description": "hiking"})
	require.NoError(t, err)

	for _, ts := range []int64{300, 100, 200} {
		require.NoError(t, s.AppendAction(ctx, &outbox.Action{
			Timestamp: ts,
			Type:      outbox.ActionAddStory,
			Payload:   payload,
		}))
	}

	actions, err := s.ListActions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 3)

	// Strict ascending timestamp order.
	assert.Equal(t, int64(100), actions[0].Timestamp)
	assert.Equal(t, int64(200), actions[1].Timestamp)
	assert.Equal(t, int64(300), actions[2].Timestamp)

	require.NoError(t, s.MarkActionSynced(ctx, 100))
	require.NoError(t, s.MarkActionSynced(ctx, 300))

	deleted, err := s.DeleteSyncedActions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	actions, err = s.ListActions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, int64(200), actions[0].Timestamp)
	assert.False(t, actions[0].Synced)
}

func TestSQLiteStorage_OutboxDuplicateTimestamp(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	a := &outbox.Action{Timestamp: 42, Type: outbox.ActionAddStory, Payload: json.RawMessage(`{}`)}
	require.NoError(t, s.AppendAction(ctx, a))

	err := s.AppendAction(ctx, a)
	assert.ErrorIs(t, err, ErrTxFailed)
}

func TestSQLiteStorage_KV(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.GetValue(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetValue(ctx, KeyToken, "bearer-1"))
	require.NoError(t, s.SetValue(ctx, KeyToken, "bearer-2"))

	v, err := s.GetValue(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "bearer-2", v)

	require.NoError(t, s.DeleteValue(ctx, KeyToken))
	_, err = s.GetValue(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrNotFound)
}
