package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxproof/eval-console/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The console UI is same-deployment; tighten this before exposing
		// the watch endpoint across origins.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// handleWatch upgrades to a WebSocket and pushes tracker views for one
// result until the client disconnects. The subscription holds the
// observation: closing the socket releases it, so no timer outlives the
// watcher.
func (g *Gateway) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing result id")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Msg("watch upgrade failed")
		return
	}

	sessionID := observability.NewSessionID()
	log := observability.WithSessionID(sessionID).With().Str("result_id", id).Logger()

	updates, cancel := g.tracker.Subscribe(id)
	observability.RecordWatchSessionStart()
	log.Info().Msg("watch session opened")

	defer func() {
		cancel()
		conn.Close()
		observability.RecordWatchSessionEnd()
		log.Info().Msg("watch session closed")
	}()

	// Reader goroutine: the client sends nothing meaningful, but reading is
	// required to notice closes and answer pings. Its exit signals teardown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Initial snapshot so the client renders without waiting for the next
	// poll to land.
	if err := g.writeView(conn, g.tracker.Snapshot(id)); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case view, ok := <-updates:
			if !ok {
				return
			}
			if err := g.writeView(conn, view); err != nil {
				log.Debug().Err(err).Msg("watch write failed")
				return
			}
			if view.Deleted {
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

func (g *Gateway) writeView(conn *websocket.Conn, view interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(view)
}
