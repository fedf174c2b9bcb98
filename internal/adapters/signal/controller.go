// Package signal adapts WebSocket connections onto the sync
// orchestrator: admission, the read/write pumps, and teardown.
package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dpetrov/couchsync/internal/app"
	"github.com/dpetrov/couchsync/internal/core"
	"github.com/dpetrov/couchsync/internal/rooms"
)

// CloseRoomNotFound is the protocol's reserved close code for a
// rejected room.
const CloseRoomNotFound = 4001

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Controller owns WebSocket admission and pump lifecycles.
type Controller struct {
	Orch       *app.Orchestrator
	Rooms      rooms.Checker
	ReadLimit  int64
	PingPeriod time.Duration
}

// HandleSync upgrades the request and admits (or rejects) the client.
// The connection URL carries `room` (validated against the allow-list)
// and optional `clientId` (synthesized when absent).
func (ctl *Controller) HandleSync(ctx context.Context, c *gin.Context) {
	roomID := c.Query("room")
	clientID := c.Query("clientId")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade failed")
		return
	}

	if roomID == "" || !ctl.Rooms.IsValid(roomID) {
		log.Info().Str("module", "signal").Str("room", roomID).Msg("room rejected")
		msg := websocket.FormatCloseMessage(CloseRoomNotFound, "Room not found")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}

	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn := newWSConn(ws)
	sess := core.NewSession(core.SessionID(uuid.NewString()), clientID, roomID, conn)
	log.Info().Str("module", "signal").Str("room", roomID).
		Str("client", clientID).Msg("connection admitted")

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Join(sess)
	go ctl.writePump(ctx, sess, conn)
	go ctl.readPump(ctx, cancel, sess, conn)
}

// wsConn implements core.SignalConnection over a gorilla conn.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn, send: make(chan core.Frame, 64)}
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return core.ErrBackpressure
	}
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
