package client

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const authErrorType = "AUTH_ERROR"

type proxyEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// listenAuthEvents follows the proxy's event stream and escalates AUTH_ERROR
// broadcasts to the sync coordinator. The stream is best effort: connection
// failures back off and retry until the context is cancelled.
func (a *App) listenAuthEvents(ctx context.Context) {
	backoff := time.Second
	for {
		if err := a.consumeEventStream(ctx); err != nil {
			a.log.Debug("event stream interrupted", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (a *App) consumeEventStream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.ProxyEventsURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// No timeout: the stream stays open until the proxy or the context
	// closes it.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	a.log.Info("listening for proxy events", "url", a.config.ProxyEventsURL)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event proxyEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			a.log.Warn("malformed proxy event", "error", err)
			continue
		}

		if event.Type == authErrorType {
			a.log.Info("received auth error broadcast", "message", event.Message)
			a.Sync.HandleAuthError(ctx, event.Message)
		}
	}
	return scanner.Err()
}
