package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devharu/livechess/internal/rules"
	"github.com/devharu/livechess/internal/session"
	"github.com/devharu/livechess/pkg/gamedto"
)

func (s *Server) handleCreate(c *gin.Context) {
	var req gamedto.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, session.ErrInvalidArgs)
		return
	}
	g, err := s.manager.Create(c.Request.Context(), callerIdentity(c), session.Color(req.Side))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gamedto.CreateGameResponse{Code: g.Code, Session: toState(g)})
}

func (s *Server) handleJoin(c *gin.Context) {
	var req gamedto.JoinGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, session.ErrInvalidArgs)
		return
	}
	g, err := s.manager.Join(c.Request.Context(), callerIdentity(c), req.Code)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toState(g))
}

func (s *Server) handleGet(c *gin.Context) {
	g, err := s.manager.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toState(g))
}

func (s *Server) handleGetByCode(c *gin.Context) {
	g, err := s.manager.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toState(g))
}

func (s *Server) handleMove(c *gin.Context) {
	var req gamedto.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, session.ErrInvalidArgs)
		return
	}
	g, err := s.coord.SubmitMove(c.Request.Context(), callerIdentity(c), c.Param("id"), req.Move)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toState(g))
}

func (s *Server) handleImmunity(c *gin.Context) {
	var req gamedto.ImmunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, session.ErrInvalidArgs)
		return
	}
	g, err := s.coord.ToggleImmunity(c.Request.Context(), callerIdentity(c), c.Param("id"), req.Side, req.Kind)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toState(g))
}

func (s *Server) handleAbandon(c *gin.Context) {
	g, err := s.manager.Abandon(c.Request.Context(), callerIdentity(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toState(g))
}

func (s *Server) writeError(c *gin.Context, err error) {
	status, code := classify(err)
	msg := err.Error()
	if s.cat != nil {
		if key, ok := messageKeys[code]; ok {
			if rendered, rerr := s.cat.Render(key, nil); rerr == nil {
				msg = rendered
			}
		}
	}
	c.AbortWithStatusJSON(status, gamedto.ErrorResponse{Error: gamedto.DomainError{
		Code:      code,
		Message:   msg,
		Retryable: code == gamedto.CodeConflict,
	}})
}

var messageKeys = map[string]string{
	gamedto.CodeNotYourTurn:       "move.not_your_turn",
	gamedto.CodeIllegalMove:       "move.illegal",
	gamedto.CodePromotionRequired: "move.promotion_required",
	gamedto.CodeConflict:          "move.conflict",
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, gamedto.CodeNotFound
	case errors.Is(err, session.ErrSessionFull):
		return http.StatusConflict, gamedto.CodeSessionFull
	case errors.Is(err, session.ErrNotAParticipant):
		return http.StatusForbidden, gamedto.CodeNotAParticipant
	case errors.Is(err, session.ErrNotYourTurn):
		return http.StatusConflict, gamedto.CodeNotYourTurn
	case errors.Is(err, rules.ErrPromotionRequired):
		return http.StatusBadRequest, gamedto.CodePromotionRequired
	case errors.Is(err, rules.ErrIllegalMove):
		return http.StatusBadRequest, gamedto.CodeIllegalMove
	case errors.Is(err, session.ErrGameOver):
		return http.StatusConflict, gamedto.CodeGameOver
	case errors.Is(err, session.ErrConflict):
		return http.StatusConflict, gamedto.CodeConflict
	case errors.Is(err, session.ErrUnauthenticated):
		return http.StatusUnauthorized, gamedto.CodeUnauthenticated
	case errors.Is(err, session.ErrInvalidArgs):
		return http.StatusBadRequest, gamedto.CodeInvalidArgs
	default:
		return http.StatusInternalServerError, gamedto.CodeInternal
	}
}

func toState(g *session.GameSession) *gamedto.SessionState {
	if g == nil {
		return nil
	}
	st := &gamedto.SessionState{
		ID:        g.ID,
		Code:      g.Code,
		FEN:       g.FEN,
		MovesSAN:  append([]string(nil), g.MovesSAN...),
		MovesUCI:  append([]string(nil), g.MovesUCI...),
		Turn:      string(g.Turn),
		Status:    string(g.Status),
		Result:    string(g.Result),
		Version:   g.Version,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	if g.White != nil {
		st.White = &gamedto.PlayerState{UID: g.White.UID, DisplayName: g.White.DisplayName, Email: g.White.Email}
	}
	if g.Black != nil {
		st.Black = &gamedto.PlayerState{UID: g.Black.UID, DisplayName: g.Black.DisplayName, Email: g.Black.Email}
	}
	for _, p := range g.Immune {
		st.Immune = append(st.Immune, gamedto.ImmunePieceState{Side: p.Side, Kind: p.Kind})
	}
	return st
}
