package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"

	"storykeeper/internal/domain/favorite"
	"storykeeper/internal/domain/outbox"
	"storykeeper/internal/domain/story"
)

type SQLiteStorage struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLiteStorage opens (or creates) the store at path and brings the
// schema up to date.
func NewSQLiteStorage(path string, log *slog.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &SQLiteStorage{db: db, log: log}, nil
}

func (s *SQLiteStorage) PutStory(ctx context.Context, st *story.Story) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stories (id, name, description, photo_url, lat, lon, created_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			photo_url = excluded.photo_url,
			lat = excluded.lat,
			lon = excluded.lon,
			created_at = excluded.created_at,
			synced = excluded.synced
	`, st.ID, st.Name, st.Description, st.PhotoURL, nullFloat(st.Lat), nullFloat(st.Lon),
		st.CreatedAt.UTC().Format(time.RFC3339Nano), st.Synced)
	if err != nil {
		return fmt.Errorf("%w: put story: %v", ErrTxFailed, err)
	}
	return nil
}

// ReplaceStories swaps the whole cache for the given set in one transaction.
func (s *SQLiteStorage) ReplaceStories(ctx context.Context, stories []*story.Story) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin replace: %v", ErrTxFailed, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM stories"); err != nil {
		return fmt.Errorf("%w: clear stories: %v", ErrTxFailed, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stories (id, name, description, photo_url, lat, lon, created_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", ErrTxFailed, err)
	}
	defer stmt.Close()

	for _, st := range stories {
		if st == nil || st.ID == "" {
			s.log.Warn("skipping invalid story in cache replacement")
			continue
		}
		if _, err := stmt.ExecContext(ctx, st.ID, st.Name, st.Description, st.PhotoURL,
			nullFloat(st.Lat), nullFloat(st.Lon),
			st.CreatedAt.UTC().Format(time.RFC3339Nano), st.Synced); err != nil {
			return fmt.Errorf("%w: insert story %s: %v", ErrTxFailed, st.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit replace: %v", ErrTxFailed, err)
	}
	return nil
}

func (s *SQLiteStorage) GetStory(ctx context.Context, id string) (*story.Story, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, photo_url, lat, lon, created_at, synced
		FROM stories WHERE id = ?
	`, id)

	st, err := scanStory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: story %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get story: %v", ErrTxFailed, err)
	}
	return st, nil
}

func (s *SQLiteStorage) ListStories(ctx context.Context) ([]*story.Story, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, photo_url, lat, lon, created_at, synced
		FROM stories ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list stories: %v", ErrTxFailed, err)
	}
	defer rows.Close()

	var stories []*story.Story
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan story: %v", ErrTxFailed, err)
		}
		stories = append(stories, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list stories: %v", ErrTxFailed, err)
	}
	return stories, nil
}

func (s *SQLiteStorage) DeleteStory(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM stories WHERE id = ?", id); err != nil {
		return fmt.Errorf("%w: delete story: %v", ErrTxFailed, err)
	}
	return nil
}

func (s *SQLiteStorage) ClearStories(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM stories"); err != nil {
		return fmt.Errorf("%w: clear stories: %v", ErrTxFailed, err)
	}
	return nil
}

func (s *SQLiteStorage) PutFavorite(ctx context.Context, ref *favorite.Reference) error {
	payload, err := json.Marshal(ref.Story)
	if err != nil {
		return fmt.Errorf("%w: marshal favorite: %v", ErrTxFailed, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO favorites (story_id, story, added_at)
		VALUES (?, ?, ?)
		ON CONFLICT(story_id) DO NOTHING
	`, ref.StoryID, string(payload), ref.AddedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: put favorite: %v", ErrTxFailed, err)
	}
	return nil
}

func (s *SQLiteStorage) GetFavorite(ctx context.Context, storyID string) (*favorite.Reference, error) {
	var payload, addedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT story, added_at FROM favorites WHERE story_id = ?", storyID,
	).Scan(&payload, &addedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: favorite %s", ErrNotFound, storyID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get favorite: %v", ErrTxFailed, err)
	}

	ref := &favorite.Reference{StoryID: storyID}
	if err := json.Unmarshal([]byte(payload), &ref.Story); err != nil {
		// Corrupt denormalized payload. Return the reference as orphaned so
		// callers can filter it; never fail the read.
		s.log.Warn("corrupt favorite payload", "story_id", storyID, "error", err)
	}
	ref.AddedAt, _ = time.Parse(time.RFC3339Nano, addedAt)
	return ref, nil
}

func (s *SQLiteStorage) ListFavorites(ctx context.Context) ([]*favorite.Reference, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT story_id, story, added_at FROM favorites ORDER BY added_at DESC")
	if err != nil {
		return nil, fmt.Errorf("%w: list favorites: %v", ErrTxFailed, err)
	}
	defer rows.Close()

	var refs []*favorite.Reference
	for rows.Next() {
		var storyID, payload, addedAt string
		if err := rows.Scan(&storyID, &payload, &addedAt); err != nil {
			return nil, fmt.Errorf("%w: scan favorite: %v", ErrTxFailed, err)
		}

		ref := &favorite.Reference{StoryID: storyID}
		if err := json.Unmarshal([]byte(payload), &ref.Story); err != nil {
			s.log.Warn("corrupt favorite payload", "story_id", storyID, "error", err)
		}
		ref.AddedAt, _ = time.Parse(time.RFC3339Nano, addedAt)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list favorites: %v", ErrTxFailed, err)
	}
	return refs, nil
}

func (s *SQLiteStorage) DeleteFavorite(ctx context.Context, storyID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM favorites WHERE story_id = ?", storyID); err != nil {
		return fmt.Errorf("%w: delete favorite: %v", ErrTxFailed, err)
	}
	return nil
}

func (s *SQLiteStorage) AppendAction(ctx context.Context, a *outbox.Action) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outbox (timestamp, type, payload, synced)
		VALUES (?, ?, ?, ?)
	`, a.Timestamp, string(a.Type), string(a.Payload), a.Synced)
	if err != nil {
		return fmt.Errorf("%w: append action: %v", ErrTxFailed, err)
	}
	return nil
}

// ListActions returns the outbox in ascending timestamp order, synced
// actions included.
func (s *SQLiteStorage) ListActions(ctx context.Context) ([]*outbox.Action, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT timestamp, type, payload, synced FROM outbox ORDER BY timestamp ASC")
	if err != nil {
		return nil, fmt.Errorf("%w: list actions: %v", ErrTxFailed, err)
	}
	defer rows.Close()

	var actions []*outbox.Action
	for rows.Next() {
		var a outbox.Action
		var typ, payload string
		if err := rows.Scan(&a.Timestamp, &typ, &payload, &a.Synced); err != nil {
			return nil, fmt.Errorf("%w: scan action: %v", ErrTxFailed, err)
		}
		a.Type = outbox.ActionType(typ)
		a.Payload = json.RawMessage(payload)
		actions = append(actions, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list actions: %v", ErrTxFailed, err)
	}
	return actions, nil
}

func (s *SQLiteStorage) MarkActionSynced(ctx context.Context, timestamp int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE outbox SET synced = 1 WHERE timestamp = ?", timestamp)
	if err != nil {
		return fmt.Errorf("%w: mark action synced: %v", ErrTxFailed, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: action %d", ErrNotFound, timestamp)
	}
	return nil
}

func (s *SQLiteStorage) DeleteSyncedActions(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM outbox WHERE synced = 1")
	if err != nil {
		return 0, fmt.Errorf("%w: delete synced actions: %v", ErrTxFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

func (s *SQLiteStorage) GetValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: key %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("%w: get value: %v", ErrTxFailed, err)
	}
	return value, nil
}

func (s *SQLiteStorage) SetValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("%w: set value: %v", ErrTxFailed, err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteValue(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("%w: delete value: %v", ErrTxFailed, err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (*story.Story, error) {
	var st story.Story
	var lat, lon sql.NullFloat64
	var createdAt string

	if err := row.Scan(&st.ID, &st.Name, &st.Description, &st.PhotoURL,
		&lat, &lon, &createdAt, &st.Synced); err != nil {
		return nil, err
	}

	if lat.Valid {
		st.Lat = &lat.Float64
	}
	if lon.Valid {
		st.Lon = &lon.Float64
	}
	st.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &st, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
