// Package syncer is the sync coordinator: it orchestrates reads and writes
// across the local store and the remote API depending on connectivity and
// auth state, and owns the outbox replay protocol.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"storykeeper/internal/app/client/api"
	"storykeeper/internal/app/client/session"
	"storykeeper/internal/app/client/storage"
	"storykeeper/internal/domain/story"
)

var (
	// ErrSessionExpired means the stored token was rejected by the server.
	// The session has already been cleared; the caller should redirect to
	// login. The outbox is left untouched.
	ErrSessionExpired = errors.New("session expired")
	// ErrNotAuthenticated means the operation requires a logged-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrReplayInProgress means an outbox replay is already running.
	ErrReplayInProgress = errors.New("replay already in progress")
)

// RemoteClient is the surface of the story API the coordinator needs.
type RemoteClient interface {
	SetToken(token string)
	Register(ctx context.Context, req story.RegisterRequest) error
	Login(ctx context.Context, req story.LoginRequest) (*story.LoginResult, error)
	ListStories(ctx context.Context) ([]*story.Story, error)
	GetStory(ctx context.Context, id string) (*story.Story, error)
	CreateStory(ctx context.Context, req story.CreateRequest) (string, error)
	SubscribePush(ctx context.Context, sub api.Subscription) error
}

// Connectivity answers the single question "is the network worth trying".
type Connectivity interface {
	Online(ctx context.Context) bool
}

// opState labels the phases a coordinator operation moves through. States
// exist for logging and tests; transitions are linear per operation.
type opState string

const (
	stateIdle     opState = "idle"
	stateChecking opState = "checking-connectivity"
	stateRemote   opState = "remote-attempt"
	stateFallback opState = "local-fallback"
	stateDone     opState = "done"
	stateFailed   opState = "failed"
)

type EventType string

const (
	EventSessionExpired EventType = "SESSION_EXPIRED"
	EventBackOnline     EventType = "BACK_ONLINE"
	EventWentOffline    EventType = "WENT_OFFLINE"
	EventReplayFinished EventType = "REPLAY_FINISHED"
	EventNewStories     EventType = "NEW_STORIES"
)

type Event struct {
	Type    EventType
	Message string
}

const kvUserName = "user_name"

type Coordinator struct {
	store   storage.Storage
	remote  RemoteClient
	session *session.Session
	conn    Connectivity
	log     *slog.Logger

	mu         sync.Mutex
	replaying  bool
	polling    bool
	lastAction int64

	events chan Event
}

func New(store storage.Storage, remote RemoteClient, sess *session.Session, conn Connectivity, log *slog.Logger) *Coordinator {
	c := &Coordinator{
		store:   store,
		remote:  remote,
		session: sess,
		conn:    conn,
		log:     log,
		events:  make(chan Event, 16),
	}
	remote.SetToken(sess.Token())
	return c
}

// Events is the out-of-band channel the UI layer consumes. Events are
// dropped, not blocked on, when nobody is listening.
func (c *Coordinator) Events() <-chan Event {
	return c.events
}

func (c *Coordinator) emit(t EventType, msg string) {
	select {
	case c.events <- Event{Type: t, Message: msg}:
	default:
		c.log.Debug("event dropped, channel full", "type", string(t))
	}
}

func (c *Coordinator) LoggedIn() bool {
	return c.session.LoggedIn()
}

// UserName returns the display name captured at login, if any.
func (c *Coordinator) UserName(ctx context.Context) string {
	name, err := c.store.GetValue(ctx, kvUserName)
	if err != nil {
		return ""
	}
	return name
}

func (c *Coordinator) Register(ctx context.Context, req story.RegisterRequest) error {
	return c.remote.Register(ctx, req)
}

// Login authenticates, persists the token and remembers the display name.
func (c *Coordinator) Login(ctx context.Context, req story.LoginRequest) error {
	res, err := c.remote.Login(ctx, req)
	if err != nil {
		return err
	}

	if err := c.session.SetToken(ctx, res.Token); err != nil {
		return err
	}
	c.remote.SetToken(res.Token)

	if err := c.store.SetValue(ctx, kvUserName, res.Name); err != nil {
		c.log.Warn("failed to persist user name", "error", err)
	}
	return nil
}

// Logout clears the session and the cached stories. The outbox survives:
// anything created offline replays after the next login.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.remote.SetToken("")
	if err := c.session.Clear(ctx); err != nil {
		return err
	}
	if err := c.store.ClearStories(ctx); err != nil {
		c.log.Warn("failed to clear story cache on logout", "error", err)
	}
	if err := c.store.DeleteValue(ctx, kvUserName); err != nil {
		c.log.Warn("failed to clear user name on logout", "error", err)
	}
	return nil
}

// ReadStories is the cache-aware story listing. Online and authenticated it
// replaces the local cache wholesale with the server set; otherwise it
// degrades to the cache without raising.
func (c *Coordinator) ReadStories(ctx context.Context) ([]*story.Story, error) {
	state := stateIdle
	c.transition(&state, stateChecking, "read stories")

	if !c.session.LoggedIn() {
		// Not authenticated: local cache only, zero network calls.
		c.transition(&state, stateFallback, "read stories")
		return c.readLocal(ctx, &state)
	}

	if !c.conn.Online(ctx) {
		c.transition(&state, stateFallback, "read stories")
		return c.readLocal(ctx, &state)
	}

	c.transition(&state, stateRemote, "read stories")
	stories, err := c.remote.ListStories(ctx)
	switch {
	case err == nil:
		if storeErr := c.store.ReplaceStories(ctx, stories); storeErr != nil {
			// A failed cache write never blocks the network-driven flow.
			c.log.Warn("failed to refresh story cache", "error", storeErr)
		}
		c.transition(&state, stateDone, "read stories")
		return stories, nil

	case errors.Is(err, api.ErrUnauthorized):
		c.transition(&state, stateFailed, "read stories")
		c.escalateSessionExpired(ctx, "story list rejected with 401")
		return nil, ErrSessionExpired

	case errors.Is(err, api.ErrNetworkUnreachable), errors.Is(err, api.ErrServer):
		c.log.Info("degraded to local cache", "reason", err)
		c.transition(&state, stateFallback, "read stories")
		return c.readLocal(ctx, &state)

	default:
		c.transition(&state, stateFailed, "read stories")
		return nil, err
	}
}

func (c *Coordinator) readLocal(ctx context.Context, state *opState) ([]*story.Story, error) {
	stories, err := c.store.ListStories(ctx)
	if err != nil {
		// Degraded store: reads return empty rather than failing.
		c.log.Warn("local store read failed, returning empty set", "error", err)
		c.transition(state, stateDone, "read stories")
		return []*story.Story{}, nil
	}
	c.transition(state, stateDone, "read stories")
	return stories, nil
}

// GetStory fetches one story, remote first, falling back to the cache when
// the network is not an option.
func (c *Coordinator) GetStory(ctx context.Context, id string) (*story.Story, error) {
	if c.session.LoggedIn() && !story.IsTempID(id) && c.conn.Online(ctx) {
		st, err := c.remote.GetStory(ctx, id)
		switch {
		case err == nil:
			if storeErr := c.store.PutStory(ctx, st); storeErr != nil {
				c.log.Warn("failed to cache story", "id", id, "error", storeErr)
			}
			return st, nil
		case errors.Is(err, api.ErrUnauthorized):
			c.escalateSessionExpired(ctx, "story fetch rejected with 401")
			return nil, ErrSessionExpired
		case errors.Is(err, api.ErrNetworkUnreachable), errors.Is(err, api.ErrServer):
			c.log.Info("degraded to local cache", "reason", err)
		default:
			return nil, err
		}
	}

	return c.store.GetStory(ctx, id)
}

// CreateStory creates a story remotely when possible, and queues it in the
// outbox otherwise. Online failures are surfaced to the caller with no local
// fallback; the user can retry.
func (c *Coordinator) CreateStory(ctx context.Context, req story.CreateRequest) (*story.Story, error) {
	state := stateIdle
	c.transition(&state, stateChecking, "create story")

	if !c.session.LoggedIn() {
		c.transition(&state, stateFailed, "create story")
		return nil, ErrNotAuthenticated
	}

	if !c.conn.Online(ctx) {
		c.transition(&state, stateFallback, "create story")
		st, err := c.createOffline(ctx, req)
		if err != nil {
			c.transition(&state, stateFailed, "create story")
			return nil, err
		}
		c.transition(&state, stateDone, "create story")
		return st, nil
	}

	c.transition(&state, stateRemote, "create story")
	id, err := c.remote.CreateStory(ctx, req)
	switch {
	case err == nil:
		c.transition(&state, stateDone, "create story")
		// Refresh so the new story appears with its server id.
		if _, refreshErr := c.ReadStories(ctx); refreshErr != nil && !errors.Is(refreshErr, ErrSessionExpired) {
			c.log.Warn("post-create refresh failed", "error", refreshErr)
		}
		if id != "" {
			if st, getErr := c.store.GetStory(ctx, id); getErr == nil {
				return st, nil
			}
		}
		// The create envelope may omit the id and the refreshed cache may not
		// carry the new record yet; synthesize a snapshot from the request so
		// callers always get a story on success.
		return &story.Story{
			ID:          id,
			Name:        c.UserName(ctx),
			Description: req.Description,
			Lat:         req.Lat,
			Lon:         req.Lon,
			CreatedAt:   time.Now().UTC(),
			Synced:      true,
		}, nil

	case errors.Is(err, api.ErrUnauthorized):
		c.transition(&state, stateFailed, "create story")
		c.escalateSessionExpired(ctx, "story create rejected with 401")
		return nil, ErrSessionExpired

	default:
		c.transition(&state, stateFailed, "create story")
		return nil, err
	}
}

// SubscribePush registers a web-push subscription for the logged-in user.
func (c *Coordinator) SubscribePush(ctx context.Context, sub api.Subscription) error {
	if !c.session.LoggedIn() {
		return ErrNotAuthenticated
	}

	err := c.remote.SubscribePush(ctx, sub)
	if errors.Is(err, api.ErrUnauthorized) {
		c.escalateSessionExpired(ctx, "push subscribe rejected with 401")
		return ErrSessionExpired
	}
	return err
}

// HandleAuthError is the entry point for AUTH_ERROR signals broadcast by the
// network interception layer: same escalation as a 401 observed directly.
func (c *Coordinator) HandleAuthError(ctx context.Context, message string) {
	if !c.session.LoggedIn() {
		return
	}
	c.escalateSessionExpired(ctx, message)
}

// escalateSessionExpired clears the token and the story cache and tells the
// UI to redirect to login. The outbox is deliberately untouched: offline
// content must survive and replay after re-login.
func (c *Coordinator) escalateSessionExpired(ctx context.Context, reason string) {
	c.log.Info("session expired", "reason", reason)

	c.remote.SetToken("")
	if err := c.session.Clear(ctx); err != nil {
		c.log.Warn("failed to clear session", "error", err)
	}
	if err := c.store.ClearStories(ctx); err != nil {
		c.log.Warn("failed to invalidate story cache", "error", err)
	}

	c.emit(EventSessionExpired, reason)
}

func (c *Coordinator) transition(state *opState, next opState, op string) {
	c.log.Debug("state transition", "op", op, "from", string(*state), "to", string(next))
	*state = next
}

// nextActionTimestamp hands out strictly increasing outbox keys even when
// actions are created within the same millisecond.
func (c *Coordinator) nextActionTimestamp(now time.Time) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := now.UnixMilli()
	if ts <= c.lastAction {
		ts = c.lastAction + 1
	}
	c.lastAction = ts
	return ts
}
