package bettercap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// HandshakeTag is the event bettercap emits for a captured handshake.
const HandshakeTag = "wifi.client.handshake"

// EventsURL turns the api base into the websocket events endpoint.
func (c *Client) EventsURL() (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/events"
	return u.String(), nil
}

// Events reads the event stream and calls handler for every event
// until ctx is done or the connection drops.  It returns nil when ctx
// ends the stream.
func (c *Client) Events(ctx context.Context, handler func(Event)) error {
	endpoint, err := c.EventsURL()
	if err != nil {
		return fmt.Errorf("events url: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	if c.username != "" {
		req := &http.Request{Header: header}
		req.SetBasicAuth(c.username, c.password)
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()

	// unblock ReadMessage when ctx ends
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Debug("bettercap: skipping malformed event: %v", err)
			continue
		}
		handler(ev)
	}
}

// PollEvents keeps Events running until ctx is done, reconnecting
// after a dropped stream.
func (c *Client) PollEvents(ctx context.Context, handler func(Event)) {
	for {
		err := c.Events(ctx, handler)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.log.Warn("bettercap events: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
