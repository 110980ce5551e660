// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/slithercade/server/internal/game"
	"github.com/slithercade/server/internal/session"
)

// WSHandler upgrades the connection, materializes a session, and runs the
// read pump until the client goes away.
func WSHandler(logger *logrus.Logger, m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		p := game.NewPlayer(uuid.NewString())
		sess := &session.Session{
			Player: p,
			Cancel: cancel,
			Close: func(code websocket.StatusCode, reason string) {
				_ = c.Close(code, reason)
			},
		}

		m.Register(sess)
		logger.Infof("player %s connected from %s", p.ID, r.RemoteAddr)

		go writePump(ctx, c, p, logger)
		readPump(ctx, c, m, sess, logger)

		m.Remove(p.ID)
		logger.Infof("player %s disconnected", p.ID)
		c.Close(websocket.StatusNormalClosure, "Manual disconnect")
	}
}

// readPump consumes inbound frames until the connection closes. Unparsable
// frames answer with an error message but keep the connection open; the
// manager handles that after envelope decoding.
func readPump(ctx context.Context, c *websocket.Conn, m *session.Manager, sess *session.Session, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				return
			}
			if strings.Contains(err.Error(), "context canceled") {
				return
			}
			logger.Warnf("read error for player %s: %v", sess.Player.ID, err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		m.Handle(sess, msg)
	}
}

// writePump drains the player's sink, serializing each message, and keeps
// the connection alive with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, p *game.Player, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.Out:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("failed to marshal outgoing msg for player %s: %v", p.ID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("failed to write to player %s: %v", p.ID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("ping failed for player %s, assuming disconnect: %v", p.ID, err)
				return
			}
		}
	}
}
