// Package proxy is the network interception layer: it shadows all outbound
// calls to the story service, applies a cache-or-network policy per request
// class and signals auth failures out-of-band. It operates purely on request
// and response bytes; the data model is invisible here.
package proxy

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

type Config struct {
	// Upstream is the origin every non-local request is forwarded to.
	Upstream string
	// APIPrefix marks story-service API paths (network-first with a short
	// cached fallback window).
	APIPrefix string
	// Asset cache bounds.
	MaxAssetEntries int
	AssetMaxAge     time.Duration
	// APIFallbackWindow is how long a cached API response may serve as an
	// offline fallback.
	APIFallbackWindow time.Duration
	// OfflinePage is served when a navigation request cannot reach upstream.
	OfflinePage []byte
}

const defaultOfflinePage = `<!doctype html>
<html><head><title>Offline</title></head>
<body><h1>You are offline</h1><p>Stories will load again once the connection returns.</p></body></html>`

var assetExtensions = map[string]struct{}{
	".js": {}, ".css": {}, ".woff": {}, ".woff2": {}, ".ttf": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".svg": {},
	".ico": {},
}

type Proxy struct {
	cfg      Config
	log      *slog.Logger
	upstream *url.URL
	client   *http.Client
	assets   *boundedCache
	apiCache *boundedCache
	hub      *Hub
}

func New(cfg Config, log *slog.Logger) (*Proxy, error) {
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("upstream url must be absolute: %q", cfg.Upstream)
	}

	if cfg.MaxAssetEntries <= 0 {
		cfg.MaxAssetEntries = 100
	}
	if cfg.AssetMaxAge <= 0 {
		cfg.AssetMaxAge = 24 * time.Hour
	}
	if cfg.APIFallbackWindow <= 0 {
		cfg.APIFallbackWindow = 5 * time.Minute
	}
	if len(cfg.OfflinePage) == 0 {
		cfg.OfflinePage = []byte(defaultOfflinePage)
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/v1"
	}

	return &Proxy{
		cfg:      cfg,
		log:      log,
		upstream: upstream,
		client:   &http.Client{Timeout: 30 * time.Second},
		assets:   newBoundedCache(cfg.MaxAssetEntries, cfg.AssetMaxAge),
		apiCache: newBoundedCache(cfg.MaxAssetEntries, cfg.APIFallbackWindow),
		hub:      NewHub(log),
	}, nil
}

// Hub exposes the broadcast hub, mainly for tests and embedding.
func (p *Proxy) Hub() *Hub {
	return p.hub
}

// Router builds the chi mux: the event stream, a health endpoint and the
// catch-all interception handler.
func (p *Proxy) Router() *chi.Mux {
	mux := chi.NewMux()
	mux.Use(p.requestLogger)

	mux.Get("/events", p.hub.ServeHTTP)
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.NotFound(p.handle)

	return mux
}

func (p *Proxy) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		p.log.Debug("intercepted request",
			"id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"class", string(classify(r, p.cfg.APIPrefix)),
		)
		next.ServeHTTP(w, r)
	})
}

type requestClass string

const (
	classNavigation requestClass = "navigation"
	classAsset      requestClass = "asset"
	classAPI        requestClass = "api"
)

func classify(r *http.Request, apiPrefix string) requestClass {
	if strings.HasPrefix(r.URL.Path, apiPrefix) {
		return classAPI
	}
	ext := strings.ToLower(path.Ext(r.URL.Path))
	if _, ok := assetExtensions[ext]; ok {
		return classAsset
	}
	if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html") {
		return classNavigation
	}
	return classAPI
}

func (p *Proxy) handle(w http.ResponseWriter, r *http.Request) {
	switch classify(r, p.cfg.APIPrefix) {
	case classNavigation:
		p.handleNavigation(w, r)
	case classAsset:
		p.handleAsset(w, r)
	default:
		p.handleAPI(w, r)
	}
}

// handleNavigation is network-first with a static offline page fallback.
func (p *Proxy) handleNavigation(w http.ResponseWriter, r *http.Request) {
	resp, err := p.forward(r)
	if err != nil {
		p.log.Info("navigation fell back to offline page", "path", r.URL.Path, "error", err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write(p.cfg.OfflinePage)
		return
	}
	writeResponse(w, resp)
}

// handleAsset is cache-first: a hit never touches the network, a miss is
// fetched and stored when cacheable.
func (p *Proxy) handleAsset(w http.ResponseWriter, r *http.Request) {
	key := cacheKey(r)

	if r.Method == http.MethodGet {
		if cached, ok := p.assets.Get(key); ok {
			writeCached(w, cached)
			return
		}
	}

	resp, err := p.forward(r)
	if err != nil {
		http.Error(w, "asset unavailable offline", http.StatusServiceUnavailable)
		return
	}

	if r.Method == http.MethodGet && resp.Status < 300 {
		p.assets.Put(key, resp)
	}
	writeResponse(w, resp)
}

// handleAPI is network-first with a short cached-fallback window for GETs.
// A 401 from upstream is broadcast to all application contexts before it is
// relayed.
func (p *Proxy) handleAPI(w http.ResponseWriter, r *http.Request) {
	key := cacheKey(r)

	resp, err := p.forward(r)
	if err != nil {
		if r.Method == http.MethodGet {
			if cached, ok := p.apiCache.Get(key); ok {
				p.log.Info("serving cached api response while offline", "path", r.URL.Path)
				writeCached(w, cached)
				return
			}
		}
		http.Error(w, `{"error":true,"message":"offline"}`, http.StatusServiceUnavailable)
		return
	}

	if resp.Status == http.StatusUnauthorized {
		p.log.Info("broadcasting auth error", "path", r.URL.Path)
		p.hub.Broadcast(Message{
			Type:    MessageTypeAuthError,
			Message: "authentication rejected by story service",
		})
	}

	if r.Method == http.MethodGet && resp.Status < 300 {
		p.apiCache.Put(key, resp)
	}
	writeResponse(w, resp)
}

// forward replays the request against upstream and buffers the response.
func (p *Proxy) forward(r *http.Request) (*cachedResponse, error) {
	target := *r.URL
	target.Scheme = p.upstream.Scheme
	target.Host = p.upstream.Host

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		return nil, err
	}
	req.Header = r.Header.Clone()
	req.Host = p.upstream.Host

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &cachedResponse{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}

func cacheKey(r *http.Request) string {
	return r.URL.Path + "?" + r.URL.RawQuery
}

func writeResponse(w http.ResponseWriter, resp *cachedResponse) {
	copyHeader(w, resp.Header)
	w.WriteHeader(resp.Status)
	io.Copy(w, bytes.NewReader(resp.Body))
}

func writeCached(w http.ResponseWriter, resp *cachedResponse) {
	copyHeader(w, resp.Header)
	w.Header().Set("X-Served-From", "storykeeper-proxy-cache")
	w.WriteHeader(resp.Status)
	io.Copy(w, bytes.NewReader(resp.Body))
}

func copyHeader(w http.ResponseWriter, h http.Header) {
	for k, values := range h {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
}
