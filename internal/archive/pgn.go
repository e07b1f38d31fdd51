package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/devharu/livechess/internal/session"
)

// BuildPGN renders a completed session's move log as a PGN document.
// The result token follows the standard tags; the immune overlay is not
// part of permanent game history and is archived separately.
func BuildPGN(g *session.GameSession, method string) string {
	if g == nil {
		return ""
	}
	pgnResult := resultToken(g.Result)

	var b strings.Builder
	date := g.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"LiveChess casual game\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"livechess/%s\"]\n", sanitizeTag(g.Code)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizeTag(playerName(g.White))))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizeTag(playerName(g.Black))))
	if strings.TrimSpace(method) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizeTag(strings.ToLower(method))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(g.MovesSAN); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(g.MovesSAN[i])))
		if i+1 < len(g.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(g.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func resultToken(r session.Result) string {
	switch r {
	case session.ResultWhiteWins:
		return "1-0"
	case session.ResultBlackWins:
		return "0-1"
	case session.ResultDraw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func playerName(p *session.Player) string {
	if p == nil || strings.TrimSpace(p.DisplayName) == "" {
		return "?"
	}
	return p.DisplayName
}

func sanitizeTag(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
