// Package api is the typed client for the story service REST API. It maps
// HTTP outcomes onto the shared error taxonomy and nothing else: no retries,
// no caching, no fallback. Retry and degradation policy belong to the
// sync coordinator.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"storykeeper/internal/app/client/config"
	"storykeeper/internal/domain/story"
)

type Client struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	userAgent string

	// token is read by request goroutines while the sync coordinator and the
	// auth-event listener may swap it concurrently.
	mu    sync.RWMutex
	token string
}

func NewClient(cfg *config.Config, log *slog.Logger) *Client {
	timeout := time.Duration(cfg.HTTPTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		log:       log,
		baseURL:   cfg.APIBaseURL,
		userAgent: "StoryKeeper-Client/1.0",
	}
}

// SetToken sets the bearer token used for authenticated calls. An empty
// string clears it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// envelope is the common response wrapper of the story service.
type envelope struct {
	Error     bool               `json:"error"`
	Message   string             `json:"message"`
	LoginRes  *story.LoginResult `json:"loginResult,omitempty"`
	ListStory []*story.Story     `json:"listStory,omitempty"`
	Story     *story.Story       `json:"story,omitempty"`
	ID        string             `json:"id,omitempty"`
}

func (c *Client) Register(ctx context.Context, req story.RegisterRequest) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/register", req, false)
	return err
}

func (c *Client) Login(ctx context.Context, req story.LoginRequest) (*story.LoginResult, error) {
	env, err := c.doJSON(ctx, http.MethodPost, "/login", req, true)
	if err != nil {
		return nil, err
	}
	if env.LoginRes == nil || env.LoginRes.Token == "" {
		return nil, fmt.Errorf("%w: login response carried no token", ErrServer)
	}
	return env.LoginRes, nil
}

// ListStories fetches the full story list, with coordinates included.
func (c *Client) ListStories(ctx context.Context) ([]*story.Story, error) {
	env, err := c.doJSON(ctx, http.MethodGet, "/stories?location=1", nil, false)
	if err != nil {
		return nil, err
	}

	stories := env.ListStory
	for _, st := range stories {
		st.Synced = true
	}
	return stories, nil
}

func (c *Client) GetStory(ctx context.Context, id string) (*story.Story, error) {
	env, err := c.doJSON(ctx, http.MethodGet, "/stories/"+id, nil, false)
	if err != nil {
		return nil, err
	}
	if env.Story == nil {
		return nil, fmt.Errorf("%w: story response carried no story", ErrServer)
	}
	env.Story.Synced = true
	return env.Story, nil
}

// CreateStory uploads a new story as multipart form data and returns the
// server-assigned id (may be empty when the server omits it).
func (c *Client) CreateStory(ctx context.Context, req story.CreateRequest) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("description", req.Description); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if req.Lat != nil {
		if err := w.WriteField("lat", strconv.FormatFloat(*req.Lat, 'f', -1, 64)); err != nil {
			return "", fmt.Errorf("build multipart: %w", err)
		}
	}
	if req.Lon != nil {
		if err := w.WriteField("lon", strconv.FormatFloat(*req.Lon, 'f', -1, 64)); err != nil {
			return "", fmt.Errorf("build multipart: %w", err)
		}
	}

	photoName := req.PhotoName
	if photoName == "" {
		photoName = "photo.jpg"
	}
	part, err := w.CreateFormFile("photo", photoName)
	if err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(req.Photo); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("build multipart: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stories", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	c.setCommonHeaders(httpReq)

	env, err := c.send(httpReq, false)
	if err != nil {
		return "", err
	}
	return env.ID, nil
}

// Subscription is a web-push subscription in the wire shape the story
// service expects.
type Subscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

type SubscriptionKeys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

func (c *Client) SubscribePush(ctx context.Context, sub Subscription) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/notifications/subscribe", sub, false)
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, isLogin bool) (*envelope, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setCommonHeaders(req)

	return c.send(req, isLogin)
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) send(req *http.Request, isLogin bool) (*envelope, error) {
	c.log.Debug("sending request", "method", req.Method, "url", req.URL.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrNetworkUnreachable, err)
	}

	c.log.Debug("received response", "status", resp.StatusCode)

	var env envelope
	if len(data) > 0 {
		// A malformed body on a 2xx is a server fault; on errors the status
		// mapping below takes over regardless.
		if err := json.Unmarshal(data, &env); err != nil && resp.StatusCode < 400 {
			return nil, fmt.Errorf("%w: malformed response body", ErrServer)
		}
	}

	switch {
	case resp.StatusCode < 400:
		return &env, nil
	case resp.StatusCode == http.StatusBadRequest:
		msg := env.Message
		if msg == "" {
			msg = "bad request"
		}
		return nil, fmt.Errorf("%w: %s", ErrValidation, msg)
	case resp.StatusCode == http.StatusUnauthorized:
		if isLogin {
			return nil, ErrInvalidCredentials
		}
		return nil, ErrUnauthorized
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: unexpected status %d: %s", ErrServer, resp.StatusCode, env.Message)
	}
}
