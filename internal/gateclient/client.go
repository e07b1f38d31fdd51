package gateclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/devharu/livechess/pkg/gamedto"
)

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateGame(ctx context.Context, side string) (*gamedto.CreateGameResponse, error) {
	req := gamedto.CreateGameRequest{Side: side}
	var resp gamedto.CreateGameResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/games", req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) JoinGame(ctx context.Context, code string) (*gamedto.SessionState, error) {
	req := gamedto.JoinGameRequest{Code: code}
	var resp gamedto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/games/join", req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetGame(ctx context.Context, id string) (*gamedto.SessionState, error) {
	var resp gamedto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/games/"+id, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetGameByCode(ctx context.Context, code string) (*gamedto.SessionState, error) {
	var resp gamedto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/games/code/"+strings.ToUpper(code), nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SubmitMove(ctx context.Context, id, move string) (*gamedto.SessionState, error) {
	req := gamedto.MoveRequest{Move: move}
	var resp gamedto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/games/"+id+"/moves", req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ToggleImmunity(ctx context.Context, id, side, kind string) (*gamedto.SessionState, error) {
	req := gamedto.ImmunityRequest{Side: side, Kind: kind}
	var resp gamedto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/games/"+id+"/immunity", req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AbandonGame(ctx context.Context, id string) (*gamedto.SessionState, error) {
	var resp gamedto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/games/"+id+"/abandon", nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = c.retryMax
		if attempts <= 0 {
			attempts = 1
		}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			if attempt == attempts || !retry {
				return fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			err := decodeAPIError(status, resp.Body())
			if attempt == attempts || !retry || !shouldRetryStatus(status) {
				return err
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

// decodeAPIError surfaces the server's structured error when the body
// carries one, so callers can switch on the domain code.
func decodeAPIError(status int, body []byte) error {
	var wrapped gamedto.ErrorResponse
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Code != "" {
		return &wrapped.Error
	}
	return fmt.Errorf("api error: status=%d body=%s", status, truncate(string(body), 512))
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
