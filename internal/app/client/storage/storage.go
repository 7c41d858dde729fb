// Package storage is the persistent local store: durable, transactional
// record storage for cached stories, favorite references and the
// pending-action outbox, plus a small key-value table for state that needs
// fast synchronous reads (bearer token, favorite id list).
package storage

import (
	"context"
	"errors"

	"storykeeper/internal/domain/favorite"
	"storykeeper/internal/domain/outbox"
	"storykeeper/internal/domain/story"
)

var (
	// ErrUnavailable means the platform has no usable persistent storage.
	ErrUnavailable = errors.New("local storage unavailable")
	// ErrTxFailed means a write conflict, quota problem or other transaction
	// failure. The write did not happen; partial writes are never observable.
	ErrTxFailed = errors.New("storage transaction failed")
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Well-known kv keys.
const (
	KeyToken       = "token"
	KeyFavoriteIDs = "favorite_ids"
)

type Storage interface {
	// Stories. ReplaceStories swaps the entire cache in one transaction;
	// concurrent readers never observe a half-replaced cache.
	PutStory(ctx context.Context, s *story.Story) error
	ReplaceStories(ctx context.Context, stories []*story.Story) error
	GetStory(ctx context.Context, id string) (*story.Story, error)
	// ListStories returns the cache ordered by createdAt descending.
	ListStories(ctx context.Context) ([]*story.Story, error)
	DeleteStory(ctx context.Context, id string) error
	ClearStories(ctx context.Context) error

	// Favorites.
	PutFavorite(ctx context.Context, ref *favorite.Reference) error
	GetFavorite(ctx context.Context, storyID string) (*favorite.Reference, error)
	ListFavorites(ctx context.Context) ([]*favorite.Reference, error)
	DeleteFavorite(ctx context.Context, storyID string) error

	// Outbox. Actions are keyed and ordered by timestamp; appending a
	// duplicate timestamp fails with ErrTxFailed.
	AppendAction(ctx context.Context, a *outbox.Action) error
	ListActions(ctx context.Context) ([]*outbox.Action, error)
	MarkActionSynced(ctx context.Context, timestamp int64) error
	DeleteSyncedActions(ctx context.Context) (int, error)

	// Key-value entries.
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error

	Close() error
}
