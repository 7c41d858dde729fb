// Package client assembles the offline-first story client: local store,
// remote API client, sync coordinator, favorites manager and web-push keys,
// wired together behind one App facade the CLI talks to.
package client

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"golang.org/x/exp/slog"

	"storykeeper/internal/app/client/api"
	"storykeeper/internal/app/client/config"
	"storykeeper/internal/app/client/favorites"
	"storykeeper/internal/app/client/session"
	"storykeeper/internal/app/client/storage"
	"storykeeper/internal/app/client/syncer"
	"storykeeper/internal/app/client/webpush"
)

const kvWebPushKeys = "webpush_keys"

type App struct {
	config    *config.Config
	log       *slog.Logger
	storage   storage.Storage
	session   *session.Session
	remote    *api.Client
	Sync      *syncer.Coordinator
	Favorites *favorites.Manager

	keys   *webpush.KeyPair
	keysMu gosync.Mutex

	cancel context.CancelFunc
	wg     gosync.WaitGroup
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	store, err := storage.NewSQLiteStorage(cfg.DataPath, log)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	sess, err := session.Load(ctx, store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load session: %w", err)
	}

	remote := api.NewClient(cfg, log)

	probeURL := cfg.ConnectivityURL
	if probeURL == "" {
		probeURL = cfg.APIBaseURL
	}
	conn := syncer.NewHTTPProbe(probeURL)

	coordinator := syncer.New(store, remote, sess, conn, log)

	favs, err := favorites.NewManager(ctx, store, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init favorites: %w", err)
	}

	return &App{
		config:    cfg,
		log:       log,
		storage:   store,
		session:   sess,
		remote:    remote,
		Sync:      coordinator,
		Favorites: favs,
	}, nil
}

// Start launches the background workers: the connectivity/poll watcher and,
// when a proxy is configured, the auth-event listener. Both stop when
// Shutdown is called.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	if !a.config.DisableAutoSync {
		pollEvery := time.Duration(a.config.PollInterval) * time.Second
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.Sync.Watch(ctx, 10*time.Second, pollEvery)
		}()
	}

	if a.config.ProxyEventsURL != "" {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.listenAuthEvents(ctx)
		}()
	}
}

func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if err := a.storage.Close(); err != nil {
		a.log.Warn("closing local store", "error", err)
	}
}

// Storage exposes the local store for components that need direct access.
func (a *App) Storage() storage.Storage {
	return a.storage
}

// WebPushKeys returns the persisted client key pair, generating and storing
// one on first use.
func (a *App) WebPushKeys(ctx context.Context) (*webpush.KeyPair, error) {
	a.keysMu.Lock()
	defer a.keysMu.Unlock()

	if a.keys != nil {
		return a.keys, nil
	}

	raw, err := a.storage.GetValue(ctx, kvWebPushKeys)
	switch {
	case err == nil:
		keys, err := webpush.ImportKeys(raw)
		if err != nil {
			return nil, fmt.Errorf("stored web-push keys are corrupt: %w", err)
		}
		a.keys = keys
		return keys, nil
	case errors.Is(err, storage.ErrNotFound):
		// first use, fall through to generate
	default:
		return nil, fmt.Errorf("load web-push keys: %w", err)
	}

	keys, err := webpush.GenerateKeys()
	if err != nil {
		return nil, fmt.Errorf("generate web-push keys: %w", err)
	}
	exported, err := keys.Export()
	if err != nil {
		return nil, fmt.Errorf("export web-push keys: %w", err)
	}
	if err := a.storage.SetValue(ctx, kvWebPushKeys, exported); err != nil {
		return nil, fmt.Errorf("persist web-push keys: %w", err)
	}

	a.keys = keys
	return keys, nil
}

// SubscribePush registers this client for push notifications under the given
// endpoint, minting keys if needed.
func (a *App) SubscribePush(ctx context.Context, endpoint string) error {
	keys, err := a.WebPushKeys(ctx)
	if err != nil {
		return err
	}
	return a.Sync.SubscribePush(ctx, keys.Subscription(endpoint))
}

// DecryptPush decrypts an aes128gcm push message addressed to this client's
// key pair and returns the plaintext payload.
func (a *App) DecryptPush(ctx context.Context, message []byte) ([]byte, error) {
	keys, err := a.WebPushKeys(ctx)
	if err != nil {
		return nil, err
	}
	return keys.Decrypt(message)
}
