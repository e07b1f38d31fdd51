package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/devharu/livechess/internal/gateclient"
	"github.com/devharu/livechess/internal/identity"
	"github.com/devharu/livechess/internal/projection"
	"github.com/devharu/livechess/internal/rules"
	"github.com/devharu/livechess/internal/session"
	"github.com/devharu/livechess/pkg/gamedto"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "gateway base URL")
	user := flag.String("user", "", "user id (required)")
	name := flag.String("name", "", "display name")
	code := flag.String("code", "", "join an existing session by code")
	side := flag.String("side", "white", "side to play when creating (white|black)")
	flag.Parse()

	if strings.TrimSpace(*user) == "" {
		log.Fatal("-user is required")
	}

	ident := identity.Identity{UID: *user, DisplayName: *name}
	headers := func() map[string]string { return ident.Headers() }
	client := gateclient.NewClient(*server, gateclient.WithHeaderProvider(headers))

	ctx := context.Background()
	var state *gamedto.SessionState
	if strings.TrimSpace(*code) != "" {
		joined, err := client.JoinGame(ctx, *code)
		if err != nil {
			log.Fatalf("join error: %v", err)
		}
		state = joined
		fmt.Printf("Joined session %s (code %s)\n", state.ID, state.Code)
	} else {
		chosen, err := normalizeSide(*side)
		if err != nil {
			log.Fatalf("side error: %v", err)
		}
		created, err := client.CreateGame(ctx, chosen)
		if err != nil {
			log.Fatalf("create error: %v", err)
		}
		state = created.Session
		fmt.Printf("Created session %s, share code %s\n", state.ID, created.Code)
	}

	events := make(chan *gamedto.StreamEvent, 16)
	stream := gateclient.NewStream(wsURL(*server, state.ID), 5, time.Second)
	stream.SetHeaderProvider(headers)
	stream.OnEvent(func(ev *gamedto.StreamEvent) { events <- ev })
	stream.OnStateChange(func(s gateclient.StreamState) {
		fmt.Printf("[stream %s]\n", s)
	})
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := stream.Connect(cctx); err != nil {
		cancel()
		log.Fatalf("stream connect error: %v", err)
	}
	cancel()
	defer func() { _ = stream.Close(context.Background()) }()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
		close(lines)
	}()

	fmt.Println("Enter moves (e2e4 or SAN). Commands: immune <side> <kind>, abandon, quit.")
	for {
		select {
		case ev := <-events:
			if !ev.Present || ev.Session == nil {
				fmt.Println("Session no longer exists.")
				return
			}
			render(ev.Session, ident.UID)
			if ev.Session.Status == string(session.StatusCompleted) || ev.Session.Status == string(session.StatusAbandoned) {
				fmt.Printf("Game over: %s\n", ev.Session.Result)
				return
			}
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			if err := handleLine(ctx, client, state.ID, line); err != nil {
				fmt.Printf("error: %v\n", err)
			}
			if line == "quit" || line == "abandon" {
				return
			}
		}
	}
}

// normalizeSide validates the -side flag before anything reaches the
// server; a blank value falls back to white.
func normalizeSide(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return "white", nil
	case "white", "black":
		return s, nil
	}
	return "", fmt.Errorf("side must be white or black, got %q", s)
}

func handleLine(ctx context.Context, client *gateclient.Client, id, line string) error {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case "quit":
		return nil
	case "abandon":
		_, err := client.AbandonGame(ctx, id)
		return err
	case "immune":
		if len(parts) != 3 {
			return fmt.Errorf("usage: immune <white|black> <pawn|knight|bishop|rook|queen|king>")
		}
		_, err := client.ToggleImmunity(ctx, id, parts[1], parts[2])
		return err
	default:
		_, err := client.SubmitMove(ctx, id, parts[0])
		return err
	}
}

// render rebuilds the display state from the full move log and prints
// it. Nothing from the previous frame is reused.
func render(st *gamedto.SessionState, viewerUID string) {
	g := fromState(st)
	p, err := projection.Build(g, viewerUID)
	if err != nil {
		fmt.Printf("render error: %v\n", err)
		return
	}

	fmt.Println()
	fmt.Println(boardASCII(p.FEN))
	for _, row := range p.Rows {
		fmt.Printf("%3d. %-8s %s\n", row.Number, row.White, row.Black)
	}
	if len(p.Immune) > 0 {
		var tags []string
		for _, ip := range p.Immune {
			tags = append(tags, ip.Side+" "+ip.Kind)
		}
		fmt.Printf("immune: %s\n", strings.Join(tags, ", "))
	}
	switch {
	case p.Status == session.StatusWaiting:
		fmt.Println("Waiting for an opponent to join...")
	case p.YourTurn:
		note := ""
		if p.InCheck {
			note = " (you are in check)"
		}
		fmt.Printf("Your move%s.\n", note)
	case p.Status == session.StatusActive:
		fmt.Printf("Waiting for %s to move.\n", p.Turn)
	}
}

func fromState(st *gamedto.SessionState) *session.GameSession {
	g := &session.GameSession{
		ID:       st.ID,
		Code:     st.Code,
		FEN:      st.FEN,
		MovesSAN: st.MovesSAN,
		MovesUCI: st.MovesUCI,
		Turn:     session.Color(st.Turn),
		Status:   session.Status(st.Status),
		Result:   session.Result(st.Result),
		Version:  st.Version,
	}
	if st.White != nil {
		g.White = &session.Player{UID: st.White.UID, DisplayName: st.White.DisplayName, Email: st.White.Email}
	}
	if st.Black != nil {
		g.Black = &session.Player{UID: st.Black.UID, DisplayName: st.Black.DisplayName, Email: st.Black.Email}
	}
	for _, ip := range st.Immune {
		g.Immune = append(g.Immune, rules.ImmunePiece{Side: ip.Side, Kind: ip.Kind})
	}
	return g
}

// boardASCII draws the placement field of a FEN, rank 8 at the top.
func boardASCII(fen string) string {
	placement := fen
	if i := strings.IndexByte(fen, ' '); i > 0 {
		placement = fen[:i]
	}
	var b strings.Builder
	ranks := strings.Split(placement, "/")
	for i, rank := range ranks {
		fmt.Fprintf(&b, "%d  ", 8-i)
		for _, ch := range rank {
			if ch >= '1' && ch <= '8' {
				b.WriteString(strings.Repeat(". ", int(ch-'0')))
				continue
			}
			b.WriteRune(ch)
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	b.WriteString("   a b c d e f g h")
	return b.String()
}

func wsURL(server, id string) string {
	base := strings.TrimRight(server, "/")
	base = strings.Replace(base, "http://", "ws://", 1)
	base = strings.Replace(base, "https://", "wss://", 1)
	return base + "/api/games/" + id + "/stream"
}
