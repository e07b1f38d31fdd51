package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/devharu/livechess/internal/msgcat"
	"github.com/devharu/livechess/internal/play"
	"github.com/devharu/livechess/internal/session"
	"github.com/devharu/livechess/pkg/gamedto"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := session.NewStore(rdb, 0)
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	return NewServer(session.NewManager(store), play.NewCoordinator(store), cat).Router()
}

func doJSON(t *testing.T, r *gin.Engine, uid, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("X-User-Id", uid)
		req.Header.Set("X-User-Name", "Player "+uid)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) *gamedto.SessionState {
	t.Helper()
	var st gamedto.SessionState
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state: %v (%s)", err, w.Body.String())
	}
	return &st
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) gamedto.DomainError {
	t.Helper()
	var resp gamedto.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v (%s)", err, w.Body.String())
	}
	return resp.Error
}

func TestAPIRequiresIdentity(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, "", http.MethodPost, "/api/games", gamedto.CreateGameRequest{Side: "white"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if e := decodeError(t, w); e.Code != gamedto.CodeUnauthenticated {
		t.Fatalf("code = %s, want unauthenticated", e.Code)
	}
}

func TestAPICreateJoinMoveFlow(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, "u1", http.MethodPost, "/api/games", gamedto.CreateGameRequest{Side: "white"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var created gamedto.CreateGameResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if len(created.Code) != 6 || created.Session.Status != "waiting" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	w = doJSON(t, r, "u2", http.MethodPost, "/api/games/join", gamedto.JoinGameRequest{Code: created.Code})
	if w.Code != http.StatusOK {
		t.Fatalf("join status = %d: %s", w.Code, w.Body.String())
	}
	joined := decodeState(t, w)
	if joined.Status != "active" || joined.Black == nil || joined.Black.UID != "u2" {
		t.Fatalf("unexpected join response: %+v", joined)
	}

	w = doJSON(t, r, "u1", http.MethodPost, "/api/games/"+joined.ID+"/moves", gamedto.MoveRequest{Move: "e2e4"})
	if w.Code != http.StatusOK {
		t.Fatalf("move status = %d: %s", w.Code, w.Body.String())
	}
	after := decodeState(t, w)
	if len(after.MovesSAN) != 1 || after.MovesSAN[0] != "e4" || after.Turn != "black" {
		t.Fatalf("unexpected move response: %+v", after)
	}

	// the code still routes while the session is live
	w = doJSON(t, r, "u2", http.MethodGet, "/api/games/code/"+created.Code, nil)
	if w.Code != http.StatusOK || decodeState(t, w).ID != joined.ID {
		t.Fatalf("code lookup failed: %d %s", w.Code, w.Body.String())
	}
}

func TestAPIMoveErrors(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, "u1", http.MethodPost, "/api/games", gamedto.CreateGameRequest{Side: "white"})
	var created gamedto.CreateGameResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	doJSON(t, r, "u2", http.MethodPost, "/api/games/join", gamedto.JoinGameRequest{Code: created.Code})
	id := created.Session.ID

	w = doJSON(t, r, "u2", http.MethodPost, "/api/games/"+id+"/moves", gamedto.MoveRequest{Move: "e7e5"})
	if w.Code != http.StatusConflict {
		t.Fatalf("out of turn status = %d", w.Code)
	}
	if e := decodeError(t, w); e.Code != gamedto.CodeNotYourTurn || e.Message != "It is not your turn." {
		t.Fatalf("unexpected error payload: %+v", e)
	}

	w = doJSON(t, r, "u1", http.MethodPost, "/api/games/"+id+"/moves", gamedto.MoveRequest{Move: "e2e5"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("illegal move status = %d", w.Code)
	}
	if e := decodeError(t, w); e.Code != gamedto.CodeIllegalMove {
		t.Fatalf("unexpected error payload: %+v", e)
	}

	w = doJSON(t, r, "u3", http.MethodPost, "/api/games/"+id+"/moves", gamedto.MoveRequest{Move: "e2e4"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("stranger status = %d", w.Code)
	}

	w = doJSON(t, r, "u1", http.MethodGet, "/api/games/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown session status = %d", w.Code)
	}
}

func TestAPIAbandon(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, "u1", http.MethodPost, "/api/games", gamedto.CreateGameRequest{Side: "black"})
	var created gamedto.CreateGameResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	id := created.Session.ID

	w = doJSON(t, r, "u1", http.MethodPost, "/api/games/"+id+"/abandon", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("abandon status = %d: %s", w.Code, w.Body.String())
	}
	if st := decodeState(t, w); st.Status != "abandoned" || st.Result != "abandoned" {
		t.Fatalf("unexpected abandon response: %+v", st)
	}

	w = doJSON(t, r, "u1", http.MethodPost, "/api/games/"+id+"/abandon", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("double abandon status = %d", w.Code)
	}
	if e := decodeError(t, w); e.Code != gamedto.CodeGameOver {
		t.Fatalf("unexpected error payload: %+v", e)
	}
}
