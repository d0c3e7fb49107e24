// CLAUDE:SUMMARY Registry update subscriptions: simulated ticker in development, websocket relay otherwise.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hazyhaar/masukame/idgen"
	"github.com/hazyhaar/masukame/siteconfig"
)

// Subscription is a live update feed. Close stops delivery.
type Subscription struct {
	ID   string
	Mode string // "simulated", "websocket" or "none"

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	connMu sync.Mutex
	conn   *websocket.Conn
}

// Done is closed once the feed has stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close stops the feed and closes the websocket, if any. Safe to call
// repeatedly.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		s.connMu.Lock()
		if s.conn != nil {
			err = s.conn.Close()
		}
		s.connMu.Unlock()
	})
	return err
}

// SimulatedUpdate is the canned event of the development feed.
func SimulatedUpdate(now time.Time) Update {
	return Update{
		Type: "status_update",
		Data: map[string]any{
			"serial":    "001",
			"status":    "Delivered",
			"timestamp": now.UnixMilli(),
		},
	}
}

// SubscribeToUpdates delivers registry events to fn until the
// subscription is closed, ctx is done or Destroy is called. Development
// configurations receive a simulated event every update interval;
// otherwise a configured websocket endpoint is relayed, each JSON text
// frame becoming one Update. Without an endpoint the subscription is inert.
func (c *Client) SubscribeToUpdates(ctx context.Context, fn func(Update)) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		ID:     idgen.Subscription.New(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	switch {
	case c.cfg.Env == siteconfig.Development:
		sub.Mode = "simulated"
		go c.runSimulated(subCtx, sub, fn)

	case c.cfg.Registry.WebsocketEndpoint != "":
		conn, err := c.dial(subCtx)
		if err != nil {
			cancel()
			return nil, err
		}
		sub.Mode = "websocket"
		sub.conn = conn
		go c.relay(subCtx, sub, conn, fn)

	default:
		sub.Mode = "none"
		go func() {
			<-subCtx.Done()
			close(sub.done)
		}()
	}

	c.subMu.Lock()
	c.subs[sub.ID] = sub
	c.subMu.Unlock()
	go func() {
		<-sub.done
		c.subMu.Lock()
		delete(c.subs, sub.ID)
		c.subMu.Unlock()
	}()

	c.logger.Info("registry: subscribed to updates", "subscription", sub.ID, "mode", sub.Mode)
	return sub, nil
}

func (c *Client) runSimulated(ctx context.Context, sub *Subscription, fn func(Update)) {
	defer close(sub.done)
	tick := time.NewTicker(c.tickInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-tick.C:
			fn(SimulatedUpdate(t))
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint := c.cfg.Registry.WebsocketEndpoint
	if c.socketGuard != nil {
		if err := c.socketGuard(endpoint); err != nil {
			return nil, fmt.Errorf("registry: websocket endpoint: %w", err)
		}
	}
	hdr := http.Header{}
	if c.cfg.Registry.APIKey != "" {
		hdr.Set("X-API-Key", c.cfg.Registry.APIKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, hdr)
	if err != nil {
		return nil, fmt.Errorf("registry: websocket dial: %w", err)
	}
	return conn, nil
}

func (c *Client) relay(ctx context.Context, sub *Subscription, conn *websocket.Conn, fn func(Update)) {
	defer close(sub.done)

	// Unblock ReadMessage when the context ends.
	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("registry: websocket closed", "subscription", sub.ID, "error", err)
				sub.cancel()
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		u, err := ParseUpdate(data)
		if err != nil {
			c.logger.Warn("registry: bad update frame", "subscription", sub.ID, "error", err)
			continue
		}
		fn(u)
	}
}
