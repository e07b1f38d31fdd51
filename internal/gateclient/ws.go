package gateclient

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/devharu/livechess/pkg/gamedto"
)

type StreamState int

const (
	StreamDisconnected StreamState = iota
	StreamConnecting
	StreamConnected
	StreamReconnecting
	StreamFailed
)

func (s StreamState) String() string {
	switch s {
	case StreamConnecting:
		return "connecting"
	case StreamConnected:
		return "connected"
	case StreamReconnecting:
		return "reconnecting"
	case StreamFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

type EventCallback func(*gamedto.StreamEvent)

type StateCallback func(StreamState)

type eventEntry struct {
	id       int
	callback EventCallback
}

type stateEntry struct {
	id       int
	callback StateCallback
}

// Stream keeps one websocket subscription to a session's change feed
// alive, redialing with backoff when the link drops. After a reconnect
// the server replays the current record first, so no state is lost.
type Stream struct {
	wsURL string

	conn   *websocket.Conn
	state  StreamState
	stateM sync.RWMutex

	eventCbs []eventEntry
	stateCbs []stateEntry
	cbM      sync.RWMutex

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	// injects X-User-* at handshake
	headerProvider HeaderProvider
}

func NewStream(wsURL string, maxReconnectAttempts int, reconnectDelay time.Duration) *Stream {
	return &Stream{
		wsURL:                wsURL,
		state:                StreamDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		eventCbs:             make([]eventEntry, 0),
		stateCbs:             make([]stateEntry, 0),
	}
}

// SetHeaderProvider allows injecting headers into the WS handshake.
func (st *Stream) SetHeaderProvider(h HeaderProvider) {
	st.headerProvider = h
}

func (st *Stream) Connect(ctx context.Context) error {
	st.stateM.Lock()
	if st.state == StreamConnected || st.state == StreamConnecting {
		st.stateM.Unlock()
		return nil
	}
	st.stateM.Unlock()

	st.rootCtx, st.rootCancel = context.WithCancel(context.Background())
	st.setState(StreamConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, st.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      st.buildHeaders(),
	})
	if err != nil {
		st.setState(StreamFailed)
		st.scheduleReconnect()
		return err
	}

	st.conn = conn
	st.setState(StreamConnected)

	st.wg.Add(2)
	go st.listen()
	go st.pingLoop()
	return nil
}

func (st *Stream) listen() {
	defer st.wg.Done()
	for {
		select {
		case <-st.stopCh:
			return
		default:
		}

		if st.conn == nil {
			return
		}
		var ev gamedto.StreamEvent
		if err := wsjson.Read(st.rootCtx, st.conn, &ev); err != nil {
			if st.isStopping() {
				return
			}
			st.setState(StreamDisconnected)
			_ = st.closeConn(websocket.StatusGoingAway, "reconnect")
			st.scheduleReconnect()
			return
		}

		st.cbM.RLock()
		callbacks := make([]eventEntry, len(st.eventCbs))
		copy(callbacks, st.eventCbs)
		st.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(&ev)
			}
		}
	}
}

func (st *Stream) pingLoop() {
	defer st.wg.Done()
	t := time.NewTicker(st.pingInterval)
	defer t.Stop()
	consecutiveFailures := 0
	for {
		select {
		case <-st.stopCh:
			return
		case <-t.C:
			if st.conn == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(st.rootCtx, 3*time.Second)
			err := st.conn.Ping(ctx)
			cancel()
			if err != nil {
				consecutiveFailures++
				if consecutiveFailures >= 2 {
					if st.isStopping() {
						return
					}
					st.setState(StreamDisconnected)
					_ = st.closeConn(websocket.StatusGoingAway, "ping failure")
					st.scheduleReconnect()
					consecutiveFailures = 0
				}
				continue
			}
			consecutiveFailures = 0
		}
	}
}

func (st *Stream) scheduleReconnect() {
	if st.maxReconnectAttempts <= 0 {
		return
	}
	st.setState(StreamReconnecting)

	go func() {
		for attempt := 1; attempt <= st.maxReconnectAttempts; attempt++ {
			select {
			case <-st.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}

			dialCtx, cancel := context.WithTimeout(st.rootCtx, 10*time.Second)
			conn, _, err := websocket.Dial(dialCtx, st.wsURL, &websocket.DialOptions{
				CompressionMode: websocket.CompressionNoContextTakeover,
				HTTPHeader:      st.buildHeaders(),
			})
			cancel()
			if err != nil {
				continue
			}

			st.conn = conn
			st.setState(StreamConnected)

			st.wg.Add(2)
			go st.listen()
			go st.pingLoop()
			return
		}
		st.setState(StreamFailed)
	}()
}

func (st *Stream) OnEvent(cb EventCallback) int {
	st.cbM.Lock()
	defer st.cbM.Unlock()
	id := len(st.eventCbs) + 1
	st.eventCbs = append(st.eventCbs, eventEntry{id: id, callback: cb})
	return id
}

func (st *Stream) RemoveEventCallback(id int) {
	st.cbM.Lock()
	defer st.cbM.Unlock()
	for i, cb := range st.eventCbs {
		if cb.id == id {
			st.eventCbs = append(st.eventCbs[:i], st.eventCbs[i+1:]...)
			break
		}
	}
}

func (st *Stream) OnStateChange(cb StateCallback) int {
	st.cbM.Lock()
	defer st.cbM.Unlock()
	id := len(st.stateCbs) + 1
	st.stateCbs = append(st.stateCbs, stateEntry{id: id, callback: cb})
	return id
}

func (st *Stream) setState(state StreamState) {
	st.stateM.Lock()
	st.state = state
	st.stateM.Unlock()

	st.cbM.RLock()
	callbacks := make([]stateEntry, len(st.stateCbs))
	copy(callbacks, st.stateCbs)
	st.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (st *Stream) Close(ctx context.Context) error {
	st.stopOnce.Do(func() { close(st.stopCh) })
	_ = st.closeConn(websocket.StatusNormalClosure, "close")

	done := make(chan struct{})
	go func() {
		st.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if st.rootCancel != nil {
			st.rootCancel()
		}
		return nil
	}
}

func (st *Stream) closeConn(code websocket.StatusCode, reason string) error {
	if st.conn == nil {
		return nil
	}
	defer func() { st.conn = nil }()
	return st.conn.Close(code, reason)
}

func (st *Stream) isStopping() bool {
	select {
	case <-st.stopCh:
		return true
	default:
		return false
	}
}

func (st *Stream) buildHeaders() http.Header {
	hdr := http.Header{}
	if st.headerProvider == nil {
		return hdr
	}
	for k, v := range st.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
