// Package bettercap is a small client for the bettercap REST api: the
// session command endpoint, the session state and the websocket event
// stream.
package bettercap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pwerr "gopwn/internal/errors"
	"gopwn/internal/retry"
	"gopwn/util"
)

// Options configures a Client.
type Options struct {
	BaseURL  string // e.g. http://localhost:8081
	Username string
	Password string
	Timeout  time.Duration // per request
	Logger   *util.Logger
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client talks to one bettercap instance.  Safe for concurrent use.
type Client struct {
	base     string
	username string
	password string
	http     *http.Client
	log      *util.Logger
}

// New returns a client for opts.BaseURL.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	log := opts.Logger
	if log == nil {
		log = util.Nop()
	}
	return &Client{
		base:     strings.TrimRight(opts.BaseURL, "/"),
		username: opts.Username,
		password: opts.Password,
		http:     hc,
		log:      log,
	}
}

// BaseURL returns the api root the client was built with.
func (c *Client) BaseURL() string { return c.base }

// commandResponse is what POST /api/session answers.
type commandResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

// Run executes a session command such as "wifi.recon on".
func (c *Client) Run(ctx context.Context, cmd string) error {
	body, err := json.Marshal(map[string]string{"cmd": cmd})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/session", bytes.NewReader(body))
	if err != nil {
		return pwerr.WrapAPI("run", cmd, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("bettercap: %s", cmd)

	resp, err := c.http.Do(req)
	if err != nil {
		return pwerr.WrapAPI("run", cmd, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var out commandResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode/100 != 2 || !out.Success {
		msg := out.Msg
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return &pwerr.APIError{Op: "run", Cmd: cmd, Status: resp.StatusCode, Msg: msg}
	}
	return nil
}

// Session returns the full session state.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.get(ctx, "session", "/api/session", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// WiFi returns only the wifi module state.
func (c *Client) WiFi(ctx context.Context) (*WiFi, error) {
	var w WiFi
	if err := c.get(ctx, "wifi", "/api/session/wifi", &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Ready blocks until the api answers a session request or the backoff
// gives up.  A 401 is permanent: waiting will not fix credentials.
func (c *Client) Ready(ctx context.Context, b *retry.Backoff) error {
	if b == nil {
		b = retry.DefaultBackoff()
	}
	if b.OnRetry == nil {
		b.OnRetry = func(attempt int, err error, wait time.Duration) {
			c.log.Debug("waiting for bettercap (attempt %d, retry in %v): %v", attempt, wait.Truncate(time.Millisecond), err)
		}
	}
	err := b.Do(ctx, func(_ int) error {
		_, err := c.Session(ctx)
		var ae *pwerr.APIError
		if pwerr.As(err, &ae) && ae.Status == http.StatusUnauthorized {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", pwerr.ErrNotReady, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path string, v interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return pwerr.WrapAPI(op, "", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return pwerr.WrapAPI(op, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &pwerr.APIError{Op: op, Status: resp.StatusCode, Msg: strings.TrimSpace(string(raw))}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return pwerr.WrapAPI(op, "", fmt.Errorf("decode: %w", err))
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}
