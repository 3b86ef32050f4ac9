package bettercap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pwerr "gopwn/internal/errors"
	"gopwn/internal/retry"
)

// fakeAPI is a minimal bettercap: it records commands and serves a
// canned wifi session.
type fakeAPI struct {
	mu       sync.Mutex
	cmds     []string
	reject   map[string]string
	session  string
	unauthed bool
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if f.unauthed || !ok || user != "gopwn" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(f.session))
			return
		}
		var body struct {
			Cmd string `json:"cmd"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.cmds = append(f.cmds, body.Cmd)
		msg, rejected := f.reject[body.Cmd]
		f.mu.Unlock()

		if rejected {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "msg": msg})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "msg": ""})
	})
	mux.HandleFunc("/api/session/wifi", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"aps":[
			{"mac":"aa:aa:aa:aa:aa:01","hostname":"home","channel":6,"rssi":-40,"encryption":"WPA2",
			 "clients":[{"mac":"cc:cc:cc:cc:cc:01","vendor":"Apple","rssi":-50}]},
			{"mac":"aa:aa:aa:aa:aa:02","hostname":"<hidden>","channel":1,"rssi":-70,"encryption":"OPEN","clients":[]}
		]}`))
	})
	return mux
}

func (f *fakeAPI) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cmds...)
}

func newTestClient(t *testing.T, f *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/", Username: "gopwn", Password: "secret"})
}

// ── Run ──────────────────────────────────────────────────────────────

func TestClient_Run(t *testing.T) {
	f := &fakeAPI{}
	c := newTestClient(t, f)

	require.NoError(t, c.Run(context.Background(), "wifi.recon on"))
	require.NoError(t, c.Run(context.Background(), "wifi.recon.channel 6"))

	assert.Equal(t, []string{"wifi.recon on", "wifi.recon.channel 6"}, f.commands())
}

func TestClient_RunRejected(t *testing.T) {
	f := &fakeAPI{reject: map[string]string{"wifi.deauth cc:cc": "station cc:cc not found"}}
	c := newTestClient(t, f)

	err := c.Run(context.Background(), "wifi.deauth cc:cc")
	require.Error(t, err)

	var ae *pwerr.APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "wifi.deauth cc:cc", ae.Cmd)
	assert.True(t, pwerr.IsNotFound(err))
}

func TestClient_RunTransportError(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})

	err := c.Run(context.Background(), "wifi.recon on")
	var ae *pwerr.APIError
	require.ErrorAs(t, err, &ae)
	assert.Zero(t, ae.Status)
	assert.NotNil(t, ae.Err)
}

// ── reads ────────────────────────────────────────────────────────────

func TestClient_WiFi(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})

	w, err := c.WiFi(context.Background())
	require.NoError(t, err)
	require.Len(t, w.AccessPoints, 2)

	ap := w.AccessPoints[0]
	assert.Equal(t, "home", ap.Name())
	assert.Equal(t, 6, ap.Channel)
	require.Len(t, ap.Clients, 1)
	assert.Equal(t, "cc:cc:cc:cc:cc:01", ap.Clients[0].MAC)
	assert.Equal(t, "aa:aa:aa:aa:aa:02", w.AccessPoints[1].Name())
}

func TestClient_Session(t *testing.T) {
	f := &fakeAPI{session: `{"interfaces":[{"name":"wlan0"},{"name":"mon0"}],"modules":[{"name":"wifi","running":true}]}`}
	c := newTestClient(t, f)

	s, err := c.Session(context.Background())
	require.NoError(t, err)
	assert.True(t, s.HasInterface("mon0"))
	assert.False(t, s.HasInterface("mon1"))
	assert.True(t, s.Running("wifi"))
	assert.False(t, s.Running("ble.recon"))
}

// ── Ready ────────────────────────────────────────────────────────────

func TestClient_ReadyAfterRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	err := c.Ready(context.Background(), &retry.Backoff{InitialDelay: time.Millisecond, MaxAttempts: 5})

	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_ReadyUnauthorizedIsPermanent(t *testing.T) {
	f := &fakeAPI{unauthed: true}
	c := newTestClient(t, f)

	calls := 0
	b := &retry.Backoff{InitialDelay: time.Millisecond, MaxAttempts: 5,
		OnRetry: func(int, error, time.Duration) { calls++ }}

	err := c.Ready(context.Background(), b)
	require.ErrorIs(t, err, pwerr.ErrNotReady)
	assert.Zero(t, calls, "401 must not be retried")
}

// ── Events ───────────────────────────────────────────────────────────

func TestClient_EventsURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8081", "ws://localhost:8081/api/events"},
		{"https://unit.local:8083/", "wss://unit.local:8083/api/events"},
	}
	for _, tt := range tests {
		got, err := New(Options{BaseURL: tt.base}).EventsURL()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestClient_Events(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, _ := r.BasicAuth()
		assert.Equal(t, "gopwn", user)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"tag":"wifi.ap.new","data":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"tag":"wifi.client.handshake","data":{"file":"/root/handshakes/home.pcap","station":"cc:cc","ap":"aa:aa"}}`))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Username: "gopwn", Password: "secret"})

	var got []Event
	err := c.Events(context.Background(), func(ev Event) { got = append(got, ev) })
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "wifi.ap.new", got[0].Tag)
	assert.Equal(t, HandshakeTag, got[1].Tag)

	var hs Handshake
	require.NoError(t, json.Unmarshal(got[1].Data, &hs))
	assert.Equal(t, "cc:cc", hs.Station)
	assert.Equal(t, "aa:aa", hs.AP)
}

func TestClient_EventsStopsOnCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// idle until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(Options{BaseURL: srv.URL}).Events(ctx, func(Event) {}) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Events did not return after cancel")
	}
}
