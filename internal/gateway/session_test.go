package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cws "github.com/coder/websocket"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/voxtask/internal/agent"
	"github.com/nextlevelbuilder/voxtask/internal/config"
	"github.com/nextlevelbuilder/voxtask/internal/providers"
	"github.com/nextlevelbuilder/voxtask/internal/store"
	"github.com/nextlevelbuilder/voxtask/internal/store/sqlite"
	"github.com/nextlevelbuilder/voxtask/internal/tools"
	"github.com/nextlevelbuilder/voxtask/pkg/protocol"
)

// staticProvider answers every stream with the same canned text turn.
type staticProvider struct{ content string }

func (p *staticProvider) Name() string         { return "static" }
func (p *staticProvider) DefaultModel() string { return "claude-sonnet-4-20250514" }

func (p *staticProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onEvent func(providers.StreamEvent)) (*providers.ChatResponse, error) {
	if onEvent != nil {
		onEvent(providers.StreamEvent{Kind: providers.EventTextDelta, Text: p.content})
		onEvent(providers.StreamEvent{Kind: providers.EventStop, StopReason: providers.StopEndTurn})
	}
	return &providers.ChatResponse{
		Content:    p.content,
		StopReason: providers.StopEndTurn,
		Usage:      &providers.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// stallProvider blocks its first stream until cancelled, then answers like a
// normal text turn. Lets a test interrupt a running agent deterministically.
type stallProvider struct {
	started chan struct{}
	calls   int
}

func (p *stallProvider) Name() string         { return "stall" }
func (p *stallProvider) DefaultModel() string { return "claude-sonnet-4-20250514" }

func (p *stallProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onEvent func(providers.StreamEvent)) (*providers.ChatResponse, error) {
	p.calls++
	if p.calls == 1 {
		close(p.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if onEvent != nil {
		onEvent(providers.StreamEvent{Kind: providers.EventTextDelta, Text: "Dropped it."})
		onEvent(providers.StreamEvent{Kind: providers.EventStop, StopReason: providers.StopEndTurn})
	}
	return &providers.ChatResponse{
		Content:    "Dropped it.",
		StopReason: providers.StopEndTurn,
		Usage:      &providers.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

type fluxTurn struct {
	Event      string
	Transcript string
}

// scriptedFluxServer accepts one STT websocket, waits for the first audio
// frame, then emits whatever turn events the test pushes on the channel.
func scriptedFluxServer(t *testing.T) (*httptest.Server, chan fluxTurn) {
	t.Helper()
	turns := make(chan fluxTurn, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := cws.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(cws.StatusNormalClosure, "")

		ctx := r.Context()
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case turn := <-turns:
				msg := map[string]any{
					"type":                   "TurnInfo",
					"event":                  turn.Event,
					"transcript":             turn.Transcript,
					"end_of_turn_confidence": 0.95,
				}
				data, _ := json.Marshal(msg)
				if err := conn.Write(ctx, cws.MessageText, data); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, turns
}

// fakeFluxServer accepts one STT websocket, waits for the first audio frame,
// then emits an end-of-turn for the given transcript.
func fakeFluxServer(t *testing.T, transcript string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := cws.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(cws.StatusNormalClosure, "")

		ctx := r.Context()
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
		turn := map[string]any{
			"type":                   "TurnInfo",
			"event":                  protocol.TurnEndOfTurn,
			"transcript":             transcript,
			"end_of_turn_confidence": 0.97,
		}
		data, _ := json.Marshal(turn)
		if err := conn.Write(ctx, cws.MessageText, data); err != nil {
			return
		}
		<-ctx.Done()
	}))
}

func newTestGateway(t *testing.T, sttURL string) *httptest.Server {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stores := sqlite.NewStores(db)
	reg := tools.NewRegistry()
	require.NoError(t, tools.NewTaskTools(stores.Tasks).Register(reg))

	loop := agent.NewLoop(&staticProvider{content: "On your list."}, reg, stores, agent.Config{Timeout: 5 * time.Second}, nil)

	cfg := config.Default()
	cfg.STT.APIKey = "dg-test"
	cfg.STT.URL = strings.Replace(sttURL, "http://", "ws://", 1)

	srv := NewServer(cfg, loop)
	ts := httptest.NewServer(srv.BuildMux())
	t.Cleanup(ts.Close)
	return ts
}

func dialAgent(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/agent"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFramesUntil collects frames until an agent_event with the wanted inner
// type arrives. A read deadline bounds the whole wait.
func readFramesUntil(t *testing.T, conn *websocket.Conn, innerType string) []protocol.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	var frames []protocol.Frame
	for {
		var f protocol.Frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s, got %d frames", innerType, len(frames))
		frames = append(frames, f)

		if f.Type == protocol.FrameAgentEvent {
			var ev agent.Event
			require.NoError(t, json.Unmarshal(f.Data, &ev))
			if ev.Type == innerType {
				return frames
			}
		}
	}
}

func TestSessionEndToEnd(t *testing.T) {
	flux := fakeFluxServer(t, "what's on my plate today")
	defer flux.Close()

	ts := newTestGateway(t, flux.URL)
	conn := dialAgent(t, ts)

	// One audio frame triggers the scripted end-of-turn.
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4}))

	frames := readFramesUntil(t, conn, protocol.AgentEventDone)

	var sawFlux, sawStart bool
	var inner []string
	for _, f := range frames {
		switch f.Type {
		case protocol.FrameFluxEvent:
			sawFlux = true
		case protocol.FrameAgentStart:
			sawStart = true
			require.Equal(t, "what's on my plate today", f.Query)
		case protocol.FrameAgentEvent:
			var ev agent.Event
			require.NoError(t, json.Unmarshal(f.Data, &ev))
			inner = append(inner, ev.Type)
		}
	}
	require.True(t, sawFlux, "flux event was not forwarded")
	require.True(t, sawStart, "agent_start missing")
	require.Equal(t, []string{
		protocol.AgentEventThinking,
		protocol.AgentEventText,
		protocol.AgentEventDone,
	}, inner)

	// Client-initiated close tears the session down cleanly.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"close"}`)))
}

// TestSessionInterruptReplacesTurn covers speech arriving while an agent
// turn is running: the running turn is cancelled without persisting an
// assistant message, and the follow-up turn completes normally.
func TestSessionInterruptReplacesTurn(t *testing.T) {
	flux, turns := scriptedFluxServer(t)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	stores := sqlite.NewStores(db)
	reg := tools.NewRegistry()
	require.NoError(t, tools.NewTaskTools(stores.Tasks).Register(reg))

	provider := &stallProvider{started: make(chan struct{})}
	loop := agent.NewLoop(provider, reg, stores, agent.Config{Timeout: 5 * time.Second}, nil)

	cfg := config.Default()
	cfg.STT.APIKey = "dg-test"
	cfg.STT.URL = strings.Replace(flux.URL, "http://", "ws://", 1)

	srv := NewServer(cfg, loop)
	ts := httptest.NewServer(srv.BuildMux())
	defer ts.Close()
	conn := dialAgent(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4}))
	turns <- fluxTurn{Event: protocol.TurnEndOfTurn, Transcript: "add milk to the shopping list"}

	select {
	case <-provider.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first turn never reached the provider")
	}

	// Non-trivial speech during the running turn cancels it; its end of
	// turn then starts the replacement.
	turns <- fluxTurn{Event: protocol.TurnUpdate, Transcript: "actually forget that"}
	turns <- fluxTurn{Event: protocol.TurnEndOfTurn, Transcript: "actually forget that"}

	frames := readFramesUntil(t, conn, protocol.AgentEventDone)

	var queries, inner []string
	for _, f := range frames {
		switch f.Type {
		case protocol.FrameAgentStart:
			queries = append(queries, f.Query)
		case protocol.FrameAgentEvent:
			var ev agent.Event
			require.NoError(t, json.Unmarshal(f.Data, &ev))
			inner = append(inner, ev.Type)
		}
	}
	require.Equal(t, []string{"add milk to the shopping list", "actually forget that"}, queries)
	// The cancelled turn stops after thinking; only the replacement
	// produces text and a done.
	require.Equal(t, []string{
		protocol.AgentEventThinking,
		protocol.AgentEventThinking,
		protocol.AgentEventText,
		protocol.AgentEventDone,
	}, inner)

	// The cancelled turn left exactly its user message behind.
	msgs, err := stores.History.Tail(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, store.RoleUser, msgs[0].Role)
	require.Equal(t, "add milk to the shopping list", msgs[0].Content)
	require.Equal(t, store.RoleUser, msgs[1].Role)
	require.Equal(t, "actually forget that", msgs[1].Content)
	require.Equal(t, store.RoleAssistant, msgs[2].Role)
	require.Equal(t, "Dropped it.", msgs[2].Content)
}

func TestSessionReportsSTTFailure(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	ts := newTestGateway(t, down.URL)
	conn := dialAgent(t, ts)

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var f protocol.Frame
	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, protocol.FrameAgentError, f.Type)
	require.Contains(t, f.Error, "speech service unavailable")
}

func TestHealthEndpoint(t *testing.T) {
	flux := fakeFluxServer(t, "")
	defer flux.Close()
	ts := newTestGateway(t, flux.URL)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status   string `json:"status"`
		Protocol int    `json:"protocol"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, protocol.ProtocolVersion, body.Protocol)
}

func TestSessionRateLimit(t *testing.T) {
	flux := fakeFluxServer(t, "")
	defer flux.Close()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	stores := sqlite.NewStores(db)
	reg := tools.NewRegistry()
	require.NoError(t, tools.NewTaskTools(stores.Tasks).Register(reg))
	loop := agent.NewLoop(&staticProvider{content: "hi"}, reg, stores, agent.Config{}, nil)

	cfg := config.Default()
	cfg.STT.APIKey = "dg-test"
	cfg.STT.URL = strings.Replace(flux.URL, "http://", "ws://", 1)
	cfg.Gateway.SessionsPerMinute = 1

	srv := NewServer(cfg, loop)
	ts := httptest.NewServer(srv.BuildMux())
	defer ts.Close()

	// A plain GET fails the upgrade but still spends the admission token.
	resp, err := http.Get(ts.URL + "/agent")
	require.NoError(t, err)
	resp.Body.Close()
	require.NotEqual(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/agent")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
