package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpetrov/couchsync/internal/app"
	"github.com/dpetrov/couchsync/internal/core"
)

type staticChecker map[string]bool

func (c staticChecker) IsValid(id string) bool { return c[id] }

func newTestServer(t *testing.T) (*httptest.Server, *app.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := clockwork.NewRealClock()
	orch := &app.Orchestrator{
		Registry:   core.NewRegistry(clock),
		Avatars:    app.NewAvatarCache(),
		Clock:      clock,
		ServerName: "couchsync-test",
	}
	ctl := &Controller{
		Orch:       orch,
		Rooms:      staticChecker{"public": true},
		ReadLimit:  10 << 20,
		PingPeriod: 54 * time.Second,
	}

	r := gin.New()
	r.GET("/api/ws/sync", func(c *gin.Context) {
		ctl.HandleSync(context.Background(), c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, orch
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/sync?" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestHandleSync_RejectsUnknownRoom(t *testing.T) {
	srv, orch := newTestServer(t)

	for _, query := range []string{"room=nonexistent", ""} {
		ws := dial(t, srv, query)
		_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))

		_, _, err := ws.ReadMessage()
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		assert.Equal(t, CloseRoomNotFound, closeErr.Code)
		assert.Equal(t, "Room not found", closeErr.Text)
	}

	rooms, clients := orch.Registry.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, clients)
}

func TestHandleSync_AdmitsValidRoom(t *testing.T) {
	srv, orch := newTestServer(t)

	ws := dial(t, srv, "room=public&clientId=alice")

	info := readEvent(t, ws)
	assert.Equal(t, "server_info", info["type"])
	assert.Equal(t, "couchsync-test", info["name"])

	assert.Eventually(t, func() bool {
		members := orch.Registry.Members("public")
		return len(members) == 1 && members[0].ClientID() == "alice"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandleSync_GeneratesClientID(t *testing.T) {
	srv, orch := newTestServer(t)

	ws := dial(t, srv, "room=public")
	_ = readEvent(t, ws) // server_info

	members := orch.Registry.Members("public")
	require.Len(t, members, 1)
	assert.NotEmpty(t, members[0].ClientID())
}

func TestHandleSync_EndToEndSync(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := dial(t, srv, "room=public&clientId=alice")
	_ = readEvent(t, alice) // server_info

	bob := dial(t, srv, "room=public&clientId=bob")
	_ = readEvent(t, bob) // server_info
	_ = readEvent(t, bob) // client_joined alice

	joined := readEvent(t, alice) // client_joined bob
	assert.Equal(t, "client_joined", joined["type"])
	assert.Equal(t, "bob", joined["clientId"])

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"type":"seek","position":42.5}`)))

	sync := readEvent(t, bob)
	assert.Equal(t, "state_sync", sync["type"])
	assert.InDelta(t, 42.5, sync["position"].(float64), 0.5)
	assert.Equal(t, "alice", sync["by"])
}

func TestHandleSync_DisconnectBroadcastsLeft(t *testing.T) {
	srv, orch := newTestServer(t)

	alice := dial(t, srv, "room=public&clientId=alice")
	_ = readEvent(t, alice)

	bob := dial(t, srv, "room=public&clientId=bob")
	_ = readEvent(t, bob)
	_ = readEvent(t, bob)
	_ = readEvent(t, alice) // client_joined bob

	require.NoError(t, bob.Close())

	left := readEvent(t, alice)
	assert.Equal(t, "client_left", left["type"])
	assert.Equal(t, "bob", left["clientId"])

	assert.Eventually(t, func() bool {
		return len(orch.Registry.Members("public")) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
