// Package gateway exposes the session core over HTTP: a JSON API for
// lifecycle and move operations plus a websocket stream carrying the
// live change feed. Identity arrives via the X-User-* headers the auth
// layer in front of the service injects.
package gateway

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/devharu/livechess/internal/identity"
	"github.com/devharu/livechess/internal/msgcat"
	"github.com/devharu/livechess/internal/obslog"
	"github.com/devharu/livechess/internal/play"
	"github.com/devharu/livechess/internal/session"
	"github.com/devharu/livechess/pkg/gamedto"
)

const identityKey = "livechess/identity"

type Server struct {
	manager *session.Manager
	coord   *play.Coordinator
	cat     *msgcat.Catalog
}

func NewServer(manager *session.Manager, coord *play.Coordinator, cat *msgcat.Catalog) *Server {
	return &Server{manager: manager, coord: coord, cat: cat}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	api := r.Group("/api", s.withIdentity)
	api.POST("/games", s.handleCreate)
	api.POST("/games/join", s.handleJoin)
	api.GET("/games/:id", s.handleGet)
	api.GET("/games/code/:code", s.handleGetByCode)
	api.POST("/games/:id/moves", s.handleMove)
	api.POST("/games/:id/immunity", s.handleImmunity)
	api.POST("/games/:id/abandon", s.handleAbandon)
	api.GET("/games/:id/stream", s.handleStream)
	return r
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	obslog.L().Debug("http_request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// withIdentity rejects requests without a caller identity; every
// session operation requires one.
func (s *Server) withIdentity(c *gin.Context) {
	ident, ok := identity.FromHeaders(c.Request.Header)
	if !ok {
		c.AbortWithStatusJSON(401, gamedto.ErrorResponse{Error: gamedto.DomainError{
			Code:    gamedto.CodeUnauthenticated,
			Message: session.ErrUnauthenticated.Error(),
		}})
		return
	}
	c.Set(identityKey, ident)
	c.Next()
}

func callerIdentity(c *gin.Context) identity.Identity {
	v, _ := c.Get(identityKey)
	ident, _ := v.(identity.Identity)
	return ident
}
