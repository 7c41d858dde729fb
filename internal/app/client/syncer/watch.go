package syncer

import (
	"context"
	"errors"
	"time"
)

// Watch tracks connectivity transitions and polls for new stories until ctx
// is canceled. On an offline-to-online transition it drains the outbox, the
// Go rendering of the browser's window "online" listener kicking off
// syncOfflineData.
func (c *Coordinator) Watch(ctx context.Context, connCheckEvery, pollEvery time.Duration) {
	connTicker := time.NewTicker(connCheckEvery)
	defer connTicker.Stop()
	pollTicker := time.NewTicker(pollEvery)
	defer pollTicker.Stop()

	online := c.conn.Online(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case <-connTicker.C:
			now := c.conn.Online(ctx)
			switch {
			case now && !online:
				c.log.Info("connectivity restored")
				c.emit(EventBackOnline, "back online")
				if c.session.LoggedIn() {
					if _, err := c.Replay(ctx); err != nil && !errors.Is(err, ErrReplayInProgress) {
						c.log.Warn("replay after reconnect failed", "error", err)
					}
				}
			case !now && online:
				c.log.Info("connectivity lost")
				c.emit(EventWentOffline, "offline, some features are unavailable")
			}
			online = now

		case <-pollTicker.C:
			c.pollNewStories(ctx)
		}
	}
}

// pollNewStories is the fixed-interval check for fresh content. Overlapping
// ticks are collapsed with an in-flight flag; a tick that fires while the
// previous one still runs is dropped.
func (c *Coordinator) pollNewStories(ctx context.Context) {
	c.mu.Lock()
	if c.polling {
		c.mu.Unlock()
		return
	}
	c.polling = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.polling = false
		c.mu.Unlock()
	}()

	if !c.session.LoggedIn() || !c.conn.Online(ctx) {
		return
	}

	before, err := c.store.ListStories(ctx)
	if err != nil {
		c.log.Warn("poll: local read failed", "error", err)
		return
	}
	var newestBefore string
	if len(before) > 0 {
		newestBefore = before[0].ID
	}

	after, err := c.ReadStories(ctx)
	if err != nil {
		// Session expiry is already escalated inside ReadStories.
		return
	}

	if len(after) > 0 && after[0].ID != newestBefore {
		c.emit(EventNewStories, "new stories are available")
	}
}
