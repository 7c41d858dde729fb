package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storykeeper/internal/app/client/api"
	"storykeeper/internal/domain/outbox"
	"storykeeper/internal/domain/story"
)

// addStoryPayload is the persisted form of an offline story creation. Photo
// bytes ride inside the payload (base64 in JSON) so the action survives a
// process restart and replays byte-exact; a transient file reference would
// not.
type addStoryPayload struct {
	TempID  string              `json:"tempId"`
	Request story.CreateRequest `json:"request"`
}

// ReplayResult summarizes one replay pass.
type ReplayResult struct {
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Deleted   int           `json:"deleted"`
	Duration  time.Duration `json:"duration"`
}

// createOffline gives the story a temporary id, caches a provisional record
// for instant feedback and queues an addStory action.
func (c *Coordinator) createOffline(ctx context.Context, req story.CreateRequest) (*story.Story, error) {
	now := time.Now()
	ts := c.nextActionTimestamp(now)
	tempID := story.TempIDPrefix + fmt.Sprintf("%d", ts)

	name := c.UserName(ctx)
	if name == "" {
		name = "You"
	}

	provisional := &story.Story{
		ID:          tempID,
		Name:        name,
		Description: req.Description,
		Lat:         req.Lat,
		Lon:         req.Lon,
		CreatedAt:   now,
		Synced:      false,
	}

	if err := c.store.PutStory(ctx, provisional); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(addStoryPayload{TempID: tempID, Request: req})
	if err != nil {
		return nil, fmt.Errorf("marshal outbox payload: %w", err)
	}

	action := &outbox.Action{
		Timestamp: ts,
		Type:      outbox.ActionAddStory,
		Payload:   payload,
	}
	if err := c.store.AppendAction(ctx, action); err != nil {
		// Roll the provisional record back so cache and outbox stay in step.
		if delErr := c.store.DeleteStory(ctx, tempID); delErr != nil {
			c.log.Warn("failed to roll back provisional story", "id", tempID, "error", delErr)
		}
		return nil, err
	}

	c.log.Info("story queued for replay", "temp_id", tempID)
	return provisional, nil
}

// Replay drains the outbox: strictly ascending timestamp order, one network
// call at a time, one action's failure never blocking the rest. Actions
// already marked synced are skipped, which makes a double replay a no-op.
// Afterwards all synced actions are deleted.
func (c *Coordinator) Replay(ctx context.Context) (*ReplayResult, error) {
	c.mu.Lock()
	if c.replaying {
		c.mu.Unlock()
		return nil, ErrReplayInProgress
	}
	c.replaying = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.replaying = false
		c.mu.Unlock()
	}()

	if !c.session.LoggedIn() {
		return nil, ErrNotAuthenticated
	}

	start := time.Now()
	result := &ReplayResult{}

	actions, err := c.store.ListActions(ctx)
	if err != nil {
		return nil, err
	}

	expired := false
	for _, action := range actions {
		if action.Synced {
			result.Skipped++
			continue
		}
		if expired {
			// Session died mid-pass; everything after stays queued.
			result.Failed++
			continue
		}

		result.Attempted++
		if err := c.replayAction(ctx, action); err != nil {
			if errors.Is(err, ErrSessionExpired) {
				expired = true
			}
			result.Failed++
			c.log.Warn("action replay failed",
				"timestamp", action.Timestamp,
				"type", string(action.Type),
				"error", err,
			)
			continue
		}

		if err := c.store.MarkActionSynced(ctx, action.Timestamp); err != nil {
			c.log.Warn("failed to mark action synced", "timestamp", action.Timestamp, "error", err)
			result.Failed++
			continue
		}
		result.Succeeded++
	}

	deleted, err := c.store.DeleteSyncedActions(ctx)
	if err != nil {
		c.log.Warn("failed to prune synced actions", "error", err)
	}
	result.Deleted = deleted
	result.Duration = time.Since(start)

	c.log.Info("replay finished",
		"attempted", result.Attempted,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"deleted", result.Deleted,
	)
	c.emit(EventReplayFinished, fmt.Sprintf("%d of %d actions replayed", result.Succeeded, result.Attempted))

	if result.Succeeded > 0 && !expired {
		// Pull the server's view so temp records are superseded by their
		// server-assigned counterparts.
		if _, err := c.ReadStories(ctx); err != nil && !errors.Is(err, ErrSessionExpired) {
			c.log.Warn("post-replay refresh failed", "error", err)
		}
	}

	if expired {
		return result, ErrSessionExpired
	}
	return result, nil
}

func (c *Coordinator) replayAction(ctx context.Context, action *outbox.Action) error {
	switch action.Type {
	case outbox.ActionAddStory:
		return c.replayAddStory(ctx, action)
	case outbox.ActionToggleFavorite:
		// Favorites are locally owned; the queued action only documents the
		// mutation, there is nothing to send.
		return nil
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

func (c *Coordinator) replayAddStory(ctx context.Context, action *outbox.Action) error {
	var payload addStoryPayload
	if err := json.Unmarshal(action.Payload, &payload); err != nil {
		return fmt.Errorf("corrupt addStory payload: %w", err)
	}

	if _, err := c.remote.CreateStory(ctx, payload.Request); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			c.escalateSessionExpired(ctx, "replay rejected with 401")
			return ErrSessionExpired
		}
		return err
	}

	// The provisional record is now redundant; the refresh after the pass
	// brings in the server-assigned one.
	if payload.TempID != "" {
		if err := c.store.DeleteStory(ctx, payload.TempID); err != nil {
			c.log.Warn("failed to drop provisional story", "id", payload.TempID, "error", err)
		}
	}
	return nil
}

// Outbox returns the queue in replay order, for status display.
func (c *Coordinator) Outbox(ctx context.Context) ([]*outbox.Action, error) {
	return c.store.ListActions(ctx)
}
