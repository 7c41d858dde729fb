package syncer

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"storykeeper/internal/app/client/api"
	"storykeeper/internal/app/client/session"
	"storykeeper/internal/app/client/storage"
	"storykeeper/internal/domain/outbox"
	"storykeeper/internal/domain/story"
)

// MockRemote is a mock implementation of the RemoteClient interface.
type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) SetToken(token string) {
	m.Called(token)
}

func (m *MockRemote) Register(ctx context.Context, req story.RegisterRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRemote) Login(ctx context.Context, req story.LoginRequest) (*story.LoginResult, error) {
	args := m.Called(ctx, req)
	if res := args.Get(0); res != nil {
		return res.(*story.LoginResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRemote) ListStories(ctx context.Context) ([]*story.Story, error) {
	args := m.Called(ctx)
	if res := args.Get(0); res != nil {
		return res.([]*story.Story), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRemote) GetStory(ctx context.Context, id string) (*story.Story, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*story.Story), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRemote) CreateStory(ctx context.Context, req story.CreateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockRemote) SubscribePush(ctx context.Context, sub api.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

type stubConn struct {
	online bool
}

func (s *stubConn) Online(_ context.Context) bool {
	return s.online
}

type fixture struct {
	store  *storage.SQLiteStorage
	remote *MockRemote
	sess   *session.Session
	conn   *stubConn
	coord  *Coordinator
}

func newFixture(t *testing.T, loggedIn, online bool) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	if loggedIn {
		require.NoError(t, store.SetValue(ctx, storage.KeyToken, "tok-123"))
	}

	sess, err := session.Load(ctx, store)
	require.NoError(t, err)

	remote := new(MockRemote)
	remote.On("SetToken", mock.Anything).Return()

	conn := &stubConn{online: online}
	coord := New(store, remote, sess, conn, slog.Default())

	return &fixture{store: store, remote: remote, sess: sess, conn: conn, coord: coord}
}

func serverStories() []*story.Story {
	return []*story.Story{
		{ID: "srv-2", Name: "Bob", Description: "second", PhotoURL: "u2",
			CreatedAt: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), Synced: true},
		{ID: "srv-1", Name: "Alice", Description: "first", PhotoURL: "u1",
			CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Synced: true},
	}
}

func TestReadStories_NotAuthenticated_NoNetworkCalls(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := context.Background()

	require.NoError(t, f.store.PutStory(ctx, &story.Story{
		ID: "cached", Name: "n", Description: "d", PhotoURL: "u", CreatedAt: time.Now(),
	}))

	stories, err := f.coord.ReadStories(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "cached", stories[0].ID)

	// Zero network calls attempted.
	f.remote.AssertNotCalled(t, "ListStories", mock.Anything)
}

func TestReadStories_OnlineReplacesCacheWholesale(t *testing.T) {
	f := newFixture(t, true, true)
	ctx := context.Background()

	require.NoError(t, f.store.PutStory(ctx, &story.Story{
		ID: "stale", Name: "n", Description: "d", PhotoURL: "u", CreatedAt: time.Now(),
	}))

	f.remote.On("ListStories", mock.Anything).Return(serverStories(), nil)

	stories, err := f.coord.ReadStories(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 2)

	// Cache now exactly equals the fetched set: replacement, not merge.
	cached, err := f.store.ListStories(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 2)
	assert.Equal(t, "srv-2", cached[0].ID)
	assert.Equal(t, "srv-1", cached[1].ID)

	_, err = f.store.GetStory(ctx, "stale")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReadStories_OfflineUsesLocalCache(t *testing.T) {
	f := newFixture(t, true, false)
	ctx := context.Background()

	require.NoError(t, f.store.PutStory(ctx, &story.Story{
		ID: "cached", Name: "n", Description: "d", PhotoURL: "u", CreatedAt: time.Now(),
	}))

	stories, err := f.coord.ReadStories(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 1)

	f.remote.AssertNotCalled(t, "ListStories", mock.Anything)
}

func TestReadStories_NetworkErrorFallsBackSilently(t *testing.T) {
	f := newFixture(t, true, true)
	ctx := context.Background()

	require.NoError(t, f.store.PutStory(ctx, &story.Story{
		ID: "cached", Name: "n", Description: "d", PhotoURL: "u", CreatedAt: time.Now(),
	}))

	f.remote.On("ListStories", mock.Anything).Return(nil, api.ErrNetworkUnreachable)

	stories, err := f.coord.ReadStories(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "cached", stories[0].ID)
}

func TestReadStories_UnauthorizedClearsSessionNotOutbox(t *testing.T) {
	f := newFixture(t, true, true)
	ctx := context.Background()

	require.NoError(t, f.store.PutStory(ctx, &story.Story{
		ID: "cached", Name: "n", Description: "d", PhotoURL: "u", CreatedAt: time.Now(),
	}))
	require.NoError(t, f.store.AppendAction(ctx, &outbox.Action{
		Timestamp: 1, Type: outbox.ActionAddStory, Payload: []byte(`{}`),
	}))

	f.remote.On("ListStories", mock.Anything).Return(nil, api.ErrUnauthorized)

	_, err := f.coord.ReadStories(ctx)
	assert.ErrorIs(t, err, ErrSessionExpired)

	// Token cleared, logged-in flips false.
	assert.False(t, f.sess.LoggedIn())

	// Story cache invalidated.
	cached, err := f.store.ListStories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached)

	// The outbox is untouched.
	actions, err := f.store.ListActions(ctx)
	require.NoError(t, err)
	assert.Len(t, actions, 1)

	// And the expiry event reaches subscribers.
	select {
	case ev := <-f.coord.Events():
		assert.Equal(t, EventSessionExpired, ev.Type)
	default:
		t.Fatal("expected a SessionExpired event")
	}
}

func TestCreateStory_OfflineQueuesTempRecord(t *testing.T) {
	f := newFixture(t, true, false)
	ctx := context.Background()

	st, err := f.coord.CreateStory(ctx, story.CreateRequest{
		Description: "Hiking trip",
		Photo:       []byte{0xff, 0xd8, 0xff},
		PhotoName:   "trip.jpg",
	})
	require.NoError(t, err)
	require.NotNil(t, st)

	assert.Regexp(t, regexp.MustCompile(`^temp-\d+$`), st.ID)
	assert.False(t, st.Synced)

	// Exactly one cached story, visible immediately.
	cached, err := f.store.ListStories(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, st.ID, cached[0].ID)
	assert.Equal(t, "Hiking trip", cached[0].Description)

	// Exactly one outbox action of type addStory.
	actions, err := f.store.ListActions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, outbox.ActionAddStory, actions[0].Type)
	assert.False(t, actions[0].Synced)

	f.remote.AssertNotCalled(t, "CreateStory", mock.Anything, mock.Anything)
}

func TestCreateStory_OnlineNoLocalFallbackOnError(t *testing.T) {
	f := newFixture(t, true, true)
	ctx := context.Background()

	f.remote.On("CreateStory", mock.Anything, mock.Anything).Return("", api.ErrServer)

	_, err := f.coord.CreateStory(ctx, story.CreateRequest{Description: "d", Photo: []byte{1}})
	assert.ErrorIs(t, err, api.ErrServer)

	// No provisional record, no outbox entry: the user retries instead.
	cached, err := f.store.ListStories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached)

	actions, err := f.store.ListActions(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestCreateStory_OnlineWithoutServerIDReturnsStory(t *testing.T) {
	f := newFixture(t, true, true)
	ctx := context.Background()

	// The create envelope carries no id; success must still yield a story.
	f.remote.On("CreateStory", mock.Anything, mock.Anything).Return("", nil)
	f.remote.On("ListStories", mock.Anything).Return(serverStories(), nil)

	st, err := f.coord.CreateStory(ctx, story.CreateRequest{Description: "harbor at dusk", Photo: []byte{1}})
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "harbor at dusk", st.Description)
	assert.True(t, st.Synced)
	assert.False(t, story.IsTempID(st.ID))

	actions, err := f.store.ListActions(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions, "online create must not queue an outbox action")
}

func TestCreateStory_OnlineRefreshMissReturnsSynthesizedStory(t *testing.T) {
	f := newFixture(t, true, true)
	ctx := context.Background()

	// Server assigns an id, but the refreshed feed does not carry the new
	// record yet (eventual consistency upstream).
	f.remote.On("CreateStory", mock.Anything, mock.Anything).Return("srv-9", nil)
	f.remote.On("ListStories", mock.Anything).Return(serverStories(), nil)

	st, err := f.coord.CreateStory(ctx, story.CreateRequest{Description: "d", Photo: []byte{1}})
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "srv-9", st.ID)
	assert.True(t, st.Synced)
}

func TestCreateStory_NotAuthenticated(t *testing.T) {
	f := newFixture(t, false, true)

	_, err := f.coord.CreateStory(context.Background(), story.CreateRequest{Description: "d"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestOfflineCreateThenReplay_EndToEnd(t *testing.T) {
	f := newFixture(t, true, false)
	ctx := context.Background()

	// Offline: create a story.
	st, err := f.coord.CreateStory(ctx, story.CreateRequest{
		Description: "Hiking trip",
		Photo:       []byte{0xff, 0xd8, 0xff},
	})
	require.NoError(t, err)
	assert.True(t, story.IsTempID(st.ID))

	// Back online: replay drains the outbox and the refresh swaps the temp
	// record for the server-assigned one.
	f.conn.online = true
	f.remote.On("CreateStory", mock.Anything, mock.MatchedBy(func(req story.CreateRequest) bool {
		return req.Description == "Hiking trip" && len(req.Photo) == 3
	})).Return("srv-9", nil).Once()
	f.remote.On("ListStories", mock.Anything).Return([]*story.Story{
		{ID: "srv-9", Name: "Alice", Description: "Hiking trip", PhotoURL: "u",
			CreatedAt: time.Now(), Synced: true},
	}, nil)

	result, err := f.coord.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Deleted)

	// Synced action was deleted after the pass.
	actions, err := f.store.ListActions(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions)

	// Cache now holds the server record, not the temp one.
	cached, err := f.store.ListStories(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "srv-9", cached[0].ID)

	f.remote.AssertExpectations(t)
}

func TestReplay_TwiceIsIdempotent(t *testing.T) {
	f := newFixture(t, true, false)
	ctx := context.Background()

	_, err := f.coord.CreateStory(ctx, story.CreateRequest{Description: "once", Photo: []byte{1}})
	require.NoError(t, err)

	f.conn.online = true
	f.remote.On("CreateStory", mock.Anything, mock.Anything).Return("srv-1", nil).Once()
	f.remote.On("ListStories", mock.Anything).Return([]*story.Story{}, nil)

	_, err = f.coord.Replay(ctx)
	require.NoError(t, err)

	// Second pass with nothing new: no remote calls at all.
	result, err := f.coord.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Attempted)

	f.remote.AssertNumberOfCalls(t, "CreateStory", 1)
}

func TestReplay_OneFailureDoesNotBlockQueue(t *testing.T) {
	f := newFixture(t, true, false)
	ctx := context.Background()

	_, err := f.coord.CreateStory(ctx, story.CreateRequest{Description: "first", Photo: []byte{1}})
	require.NoError(t, err)
	_, err = f.coord.CreateStory(ctx, story.CreateRequest{Description: "second", Photo: []byte{2}})
	require.NoError(t, err)

	f.conn.online = true
	f.remote.On("CreateStory", mock.Anything, mock.MatchedBy(func(req story.CreateRequest) bool {
		return req.Description == "first"
	})).Return("", api.ErrServer)
	f.remote.On("CreateStory", mock.Anything, mock.MatchedBy(func(req story.CreateRequest) bool {
		return req.Description == "second"
	})).Return("srv-2", nil)
	f.remote.On("ListStories", mock.Anything).Return([]*story.Story{}, nil)

	result, err := f.coord.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	// The failed action stays queued for the next trigger.
	actions, err := f.store.ListActions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.False(t, actions[0].Synced)
}

func TestReplay_SessionExpiryKeepsOutbox(t *testing.T) {
	f := newFixture(t, true, false)
	ctx := context.Background()

	_, err := f.coord.CreateStory(ctx, story.CreateRequest{Description: "first", Photo: []byte{1}})
	require.NoError(t, err)
	_, err = f.coord.CreateStory(ctx, story.CreateRequest{Description: "second", Photo: []byte{2}})
	require.NoError(t, err)

	f.conn.online = true
	f.remote.On("CreateStory", mock.Anything, mock.Anything).Return("", api.ErrUnauthorized).Once()

	_, err = f.coord.Replay(ctx)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, f.sess.LoggedIn())

	// Both actions survive for replay after re-login.
	actions, err := f.store.ListActions(ctx)
	require.NoError(t, err)
	assert.Len(t, actions, 2)

	// Only the first action hit the network.
	f.remote.AssertNumberOfCalls(t, "CreateStory", 1)
}

func TestReplay_NotAuthenticated(t *testing.T) {
	f := newFixture(t, false, true)

	_, err := f.coord.Replay(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestHandleAuthError_EscalatesOnce(t *testing.T) {
	f := newFixture(t, true, true)
	ctx := context.Background()

	f.coord.HandleAuthError(ctx, "broadcast from proxy")
	assert.False(t, f.sess.LoggedIn())

	// Already logged out: a second broadcast is ignored.
	f.coord.HandleAuthError(ctx, "broadcast from proxy")

	var events int
	for {
		select {
		case <-f.coord.Events():
			events++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 1, events)
}

func TestLogin_PersistsTokenAndName(t *testing.T) {
	f := newFixture(t, false, true)
	ctx := context.Background()

	f.remote.On("Login", mock.Anything, mock.Anything).Return(&story.LoginResult{
		UserID: "u1", Name: "Alice", Token: "tok-xyz",
	}, nil)

	require.NoError(t, f.coord.Login(ctx, story.LoginRequest{Email: "a@b.c", Password: "pw"}))
	assert.True(t, f.sess.LoggedIn())
	assert.Equal(t, "tok-xyz", f.sess.Token())
	assert.Equal(t, "Alice", f.coord.UserName(ctx))

	// Token survives a fresh session load.
	sess2, err := session.Load(ctx, f.store)
	require.NoError(t, err)
	assert.Equal(t, "tok-xyz", sess2.Token())
}

func TestOutboxTimestampsAreMonotonic(t *testing.T) {
	f := newFixture(t, true, false)
	ctx := context.Background()

	// Rapid-fire creates, likely within the same millisecond.
	for i := 0; i < 5; i++ {
		_, err := f.coord.CreateStory(ctx, story.CreateRequest{Description: "d", Photo: []byte{1}})
		require.NoError(t, err)
	}

	actions, err := f.store.ListActions(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 5)
	for i := 1; i < len(actions); i++ {
		assert.Greater(t, actions[i].Timestamp, actions[i-1].Timestamp)
	}
}
