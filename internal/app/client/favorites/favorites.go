// Package favorites maintains the user's favorite set as a locally owned
// view over cached stories. Each reference carries a denormalized story copy
// so the favorites view renders offline regardless of the story cache.
package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"storykeeper/internal/app/client/storage"
	"storykeeper/internal/domain/favorite"
	"storykeeper/internal/domain/story"
)

// ErrInvalidStory means the story is too incomplete to favorite.
var ErrInvalidStory = errors.New("story is not valid for favoriting")

type Manager struct {
	store storage.Storage
	log   *slog.Logger

	mu       sync.Mutex
	ids      map[string]struct{}
	inflight map[string]struct{}
}

// NewManager loads the fast-lookup id set. When the kv entry is missing or
// unreadable it is regenerated from the durable table, which is the source
// of truth.
func NewManager(ctx context.Context, store storage.Storage, log *slog.Logger) (*Manager, error) {
	m := &Manager{
		store:    store,
		log:      log,
		ids:      make(map[string]struct{}),
		inflight: make(map[string]struct{}),
	}

	raw, err := store.GetValue(ctx, storage.KeyFavoriteIDs)
	if err == nil {
		var ids []string
		if jsonErr := json.Unmarshal([]byte(raw), &ids); jsonErr == nil {
			for _, id := range ids {
				m.ids[id] = struct{}{}
			}
			return m, nil
		}
		log.Warn("favorite id list unreadable, rebuilding from durable table")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	refs, err := store.ListFavorites(ctx)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		m.ids[ref.StoryID] = struct{}{}
	}
	if err := m.persistIDs(ctx); err != nil {
		log.Warn("failed to persist rebuilt favorite ids", "error", err)
	}
	return m, nil
}

// IsFavorite is the synchronous membership check backed by the in-memory id
// set.
func (m *Manager) IsFavorite(storyID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ids[storyID]
	return ok
}

// Add favorites a story. Adding an already-favorited story is a no-op
// returning success. The durable table is written before the lookup key, so
// a crash in between leaves a stale key that the next load regenerates.
func (m *Manager) Add(ctx context.Context, st *story.Story) error {
	if !st.Valid() {
		return ErrInvalidStory
	}

	release, busy := m.acquire(st.ID)
	if busy {
		// A toggle for this story is mid-flight; collapse the double-click.
		return nil
	}
	defer release()

	if m.IsFavorite(st.ID) {
		return nil
	}

	ref := &favorite.Reference{
		StoryID: st.ID,
		Story:   *st,
		AddedAt: time.Now(),
	}
	if err := m.store.PutFavorite(ctx, ref); err != nil {
		return err
	}

	m.mu.Lock()
	m.ids[st.ID] = struct{}{}
	m.mu.Unlock()

	if err := m.persistIDs(ctx); err != nil {
		m.log.Warn("failed to persist favorite ids", "error", err)
	}
	return nil
}

// Remove unfavorites a story. Removing a story that is not favorited is a
// no-op returning success.
func (m *Manager) Remove(ctx context.Context, storyID string) error {
	release, busy := m.acquire(storyID)
	if busy {
		return nil
	}
	defer release()

	if !m.IsFavorite(storyID) {
		return nil
	}

	if err := m.store.DeleteFavorite(ctx, storyID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.ids, storyID)
	m.mu.Unlock()

	if err := m.persistIDs(ctx); err != nil {
		m.log.Warn("failed to persist favorite ids", "error", err)
	}
	return nil
}

// List returns the denormalized favorites, newest first. Orphaned or corrupt
// references are skipped and logged, never surfaced.
func (m *Manager) List(ctx context.Context) ([]*story.Story, error) {
	refs, err := m.store.ListFavorites(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) || errors.Is(err, storage.ErrTxFailed) {
			m.log.Warn("favorites read degraded, returning empty set", "error", err)
			return []*story.Story{}, nil
		}
		return nil, err
	}

	stories := make([]*story.Story, 0, len(refs))
	for _, ref := range refs {
		if ref.Orphaned() {
			m.log.Warn("skipping orphaned favorite", "story_id", ref.StoryID)
			continue
		}
		st := ref.Story
		stories = append(stories, &st)
	}
	return stories, nil
}

// acquire takes the per-story in-flight slot. The returned release func must
// be called when busy is false.
func (m *Manager) acquire(storyID string) (release func(), busy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.inflight[storyID]; ok {
		return nil, true
	}
	m.inflight[storyID] = struct{}{}

	return func() {
		m.mu.Lock()
		delete(m.inflight, storyID)
		m.mu.Unlock()
	}, false
}

func (m *Manager) persistIDs(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.ids))
	for id := range m.ids {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)

	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return m.store.SetValue(ctx, storage.KeyFavoriteIDs, string(raw))
}
