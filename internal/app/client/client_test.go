package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"storykeeper/internal/app/client/config"
	"storykeeper/internal/app/client/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:          "local",
		APIBaseURL:   "http://127.0.0.1:0/v1",
		DataPath:     filepath.Join(t.TempDir(), "data.db"),
		PollInterval: 60,
		HTTPTimeout:  5,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(app.Shutdown)
	return app
}

func TestApp_WebPushKeysArePersisted(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	app := newTestApp(t, cfg)
	first, err := app.WebPushKeys(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	app.Shutdown()

	// Reopening the same data file must yield the same key pair.
	app2, err := New(ctx, cfg, testLogger())
	require.NoError(t, err)
	defer app2.Shutdown()

	second, err := app2.WebPushKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.PublicKey(), second.PublicKey())
}

func TestApp_PushSubscriptionCarriesKeys(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	app := newTestApp(t, cfg)

	keys, err := app.WebPushKeys(ctx)
	require.NoError(t, err)

	sub := keys.Subscription("https://push.example.com/send/x")
	assert.NotEmpty(t, sub.Keys.P256DH)
	assert.NotEmpty(t, sub.Keys.Auth)
}

func TestApp_AuthErrorBroadcastClearsSession(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	// Seed a logged-in session before the app opens the store.
	store, err := storage.NewSQLiteStorage(cfg.DataPath, testLogger())
	require.NoError(t, err)
	require.NoError(t, store.SetValue(ctx, storage.KeyToken, "stale-token"))
	require.NoError(t, store.Close())

	events := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"AUTH_ERROR\",\"message\":\"session expired\"}\n\n")
	}))
	defer events.Close()
	cfg.ProxyEventsURL = events.URL

	app := newTestApp(t, cfg)
	require.True(t, app.Sync.LoggedIn())

	// The stream above ends after one event, so one consume pass suffices.
	require.NoError(t, app.consumeEventStream(ctx))

	assert.False(t, app.Sync.LoggedIn(), "auth broadcast should clear the session")
}

func TestApp_StartAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.DisableAutoSync = true

	app := newTestApp(t, cfg)
	app.Start(context.Background())
	app.Shutdown()
}
