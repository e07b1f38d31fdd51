package gateway

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/devharu/livechess/internal/obslog"
	"github.com/devharu/livechess/internal/session"
	"github.com/devharu/livechess/pkg/gamedto"
)

const streamWriteTimeout = 5 * time.Second

// handleStream upgrades to a websocket and forwards the session's
// change feed: one frame immediately with the current record (or its
// absence), then one frame per committed mutation in commit order.
func (s *Server) handleStream(c *gin.Context) {
	id := c.Param("id")
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin policy is the proxy's job
	})
	if err != nil {
		return
	}

	ctx, cancelCtx := context.WithCancel(c.Request.Context())
	defer cancelCtx()

	unsubscribe, err := s.manager.Subscribe(ctx, id, func(g *session.GameSession) {
		ev := gamedto.StreamEvent{Present: g != nil, Session: toState(g)}
		wctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
		defer cancel()
		if werr := wsjson.Write(wctx, conn, ev); werr != nil {
			cancelCtx()
		}
	})
	if err != nil {
		obslog.L().Warn("stream_subscribe_error", zap.String("session_id", id), zap.Error(err))
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}

	obslog.L().Info("stream_open",
		zap.String("session_id", id),
		zap.String("uid", callerIdentity(c).UID),
	)

	// the client only listens; CloseRead surfaces disconnects
	readCtx := conn.CloseRead(ctx)
	<-readCtx.Done()

	unsubscribe()
	_ = conn.Close(websocket.StatusNormalClosure, "")
	obslog.L().Info("stream_close", zap.String("session_id", id))
}
