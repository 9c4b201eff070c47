// Package stt is the Deepgram FLUX speech-to-text websocket client. The
// session orchestrator forwards client audio through it and consumes the
// TurnInfo event stream for end-of-turn detection.
package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/nextlevelbuilder/voxtask/internal/config"
	"github.com/nextlevelbuilder/voxtask/pkg/protocol"
)

// SessionParams are the per-session STT settings. Zero values fall back to
// the configured defaults.
type SessionParams struct {
	Model        string
	SampleRate   int
	Encoding     string
	EOTThreshold float64
}

// ParamsFromQuery reads session params from websocket query parameters.
func ParamsFromQuery(q url.Values) SessionParams {
	p := SessionParams{
		Model:    q.Get("model"),
		Encoding: q.Get("encoding"),
	}
	if v, err := strconv.Atoi(q.Get("sample_rate")); err == nil && v > 0 {
		p.SampleRate = v
	}
	if v, err := strconv.ParseFloat(q.Get("eot_threshold"), 64); err == nil && v > 0 {
		p.EOTThreshold = v
	}
	return p
}

// TurnInfo is a FLUX turn event.
type TurnInfo struct {
	Type       string  `json:"type"`
	Event      string  `json:"event"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"end_of_turn_confidence"`
}

// EndOfTurn reports whether this event closes the current turn.
func (t *TurnInfo) EndOfTurn() bool {
	return t.Event == protocol.TurnEndOfTurn
}

// Client wraps the FLUX websocket with a write lock; reads stay
// single-consumer by contract.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

const (
	dialAttempts = 3
	dialBackoff  = 500 * time.Millisecond
)

// Dial connects to the STT provider, retrying the connection up to three
// times with a short pause between attempts. Authentication is a bearer
// token in the request header.
func Dial(ctx context.Context, cfg config.STTConfig, params SessionParams) (*Client, error) {
	wsURL, err := buildURL(cfg, params)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+cfg.APIKey)
	opts := &websocket.DialOptions{HTTPHeader: header}

	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, _, err := websocket.Dial(ctx, wsURL, opts)
		if err == nil {
			conn.SetReadLimit(1 << 20)
			return &Client{conn: conn}, nil
		}
		lastErr = err
		if attempt == dialAttempts {
			break
		}
		slog.Warn("stt dial failed, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialBackoff):
		}
	}
	return nil, fmt.Errorf("stt: dial after %d attempts: %w", dialAttempts, lastErr)
}

func buildURL(cfg config.STTConfig, params SessionParams) (string, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", fmt.Errorf("stt: parse url: %w", err)
	}

	model := params.Model
	if model == "" {
		model = cfg.Model
	}
	sampleRate := params.SampleRate
	if sampleRate <= 0 {
		sampleRate = cfg.SampleRate
	}
	encoding := params.Encoding
	if encoding == "" {
		encoding = cfg.Encoding
	}
	threshold := params.EOTThreshold
	if threshold <= 0 {
		threshold = cfg.EOTThreshold
	}

	q := u.Query()
	q.Set("model", model)
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("encoding", encoding)
	q.Set("eot_threshold", strconv.FormatFloat(threshold, 'f', -1, 64))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SendAudio forwards one binary audio frame. Thread-safe.
func (c *Client) SendAudio(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(ctx, websocket.MessageBinary, data)
}

// ReadEvent reads the next provider event. Returns the raw JSON for
// client passthrough, plus the parsed TurnInfo when the event is one.
func (c *Client) ReadEvent(ctx context.Context) (json.RawMessage, *TurnInfo, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, nil, err
	}

	var turn TurnInfo
	if err := json.Unmarshal(data, &turn); err != nil || turn.Type != "TurnInfo" {
		return data, nil, nil
	}
	return data, &turn, nil
}

// Close shuts the connection down.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "session ended")
}
