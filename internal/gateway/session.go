package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/voxtask/internal/agent"
	"github.com/nextlevelbuilder/voxtask/internal/config"
	"github.com/nextlevelbuilder/voxtask/internal/stt"
	"github.com/nextlevelbuilder/voxtask/pkg/protocol"
)

// interruptMinChars is the transcript length past which speech during a
// running agent turn counts as an interruption rather than noise.
const interruptMinChars = 5

// session orchestrates one client websocket: audio forwarding to STT,
// turn detection, and agent invocations. Two long-running goroutines
// (audio-forward, stt-consume) live for the whole session; at most one
// agent goroutine runs at a time.
type session struct {
	id     string
	conn   *websocket.Conn
	cfg    *config.Config
	loop   *agent.Loop
	params stt.SessionParams
	log    *slog.Logger

	// gorilla allows one concurrent writer; every outgoing frame goes
	// through sendFrame.
	writeMu sync.Mutex

	mu           sync.Mutex
	transcript   string
	speaking     bool // client is playing back a reply; gate mic audio
	agentCancel  context.CancelFunc
	agentDone    chan struct{}
	agentRunning bool
}

func newSession(conn *websocket.Conn, cfg *config.Config, loop *agent.Loop, params stt.SessionParams) *session {
	id := uuid.NewString()
	return &session{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		loop:   loop,
		params: params,
		log:    slog.With("session", id),
	}
}

func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sttClient, err := stt.Dial(ctx, s.cfg.STT, s.params)
	if err != nil {
		s.log.Error("stt connect failed", "error", err)
		s.sendFrame(protocol.NewAgentErrorFrame("speech service unavailable"))
		return
	}
	defer sttClient.Close()

	s.log.Info("session started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.forwardAudio(gctx, sttClient) })
	g.Go(func() error { return s.consumeSTT(gctx, sttClient) })

	err = g.Wait()
	cancel()
	s.waitForAgent()

	if err != nil && !isClientGone(err) && ctx.Err() == nil {
		s.log.Error("session ended with error", "error", err)
		return
	}
	s.log.Info("session closed")
}

// forwardAudio pumps binary frames from the client into STT. Audio is gated
// while the client reports it is playing back a reply, so the assistant
// never transcribes itself.
func (s *session) forwardAudio(ctx context.Context, sttClient *stt.Client) error {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}

		switch msgType {
		case websocket.BinaryMessage:
			if s.isGated() {
				continue
			}
			if err := sttClient.SendAudio(ctx, data); err != nil {
				return err
			}

		case websocket.TextMessage:
			var ctl struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &ctl); err != nil {
				continue
			}
			switch ctl.Type {
			case "close":
				s.log.Info("client requested close")
				return nil
			case "speaking_started":
				s.setSpeaking(true)
			case "speaking_stopped":
				s.setSpeaking(false)
			}
		}
	}
}

// consumeSTT pumps provider events to the client and watches turn
// boundaries. EndOfTurn with a non-empty transcript starts an agent turn; a
// non-trivial transcript while one is running interrupts it.
func (s *session) consumeSTT(ctx context.Context, sttClient *stt.Client) error {
	for {
		raw, turn, err := sttClient.ReadEvent(ctx)
		if err != nil {
			return err
		}

		s.sendFrame(protocol.NewFluxFrame(raw))
		if turn == nil {
			continue
		}

		transcript := strings.TrimSpace(turn.Transcript)
		if transcript != "" {
			s.setTranscript(transcript)
			if s.isAgentRunning() && len(transcript) > interruptMinChars {
				s.log.Info("interrupting agent", "transcript_len", len(transcript))
				s.interruptAgent()
			}
		}

		if turn.EndOfTurn() {
			if query := s.takeTranscript(); query != "" {
				s.setSpeaking(false)
				s.startAgent(ctx, query)
			}
		}
	}
}

// startAgent launches one agent invocation, cancelling any prior one first.
// Events stream to the client in order: agent_start, agent_events, done.
func (s *session) startAgent(ctx context.Context, query string) {
	s.interruptAgent()

	agentCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.agentCancel = cancel
	s.agentDone = done
	s.agentRunning = true
	s.mu.Unlock()

	s.log.Info("agent turn starting", "query", query)

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.agentRunning = false
			s.mu.Unlock()
			cancel()
		}()

		s.sendFrame(protocol.NewAgentStartFrame(query))

		err := s.loop.Run(agentCtx, query, func(ev agent.Event) {
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("marshal agent event", "error", err)
				return
			}
			s.sendFrame(protocol.NewAgentEventFrame(data))
		})

		switch {
		case err == nil:
		case agentCtx.Err() != nil:
			s.log.Info("agent turn cancelled")
		default:
			// Retry-exhausted failure: report it but keep the session
			// open, and close the turn so the client leaves its busy state.
			s.sendFrame(protocol.NewAgentErrorFrame(err.Error()))
			doneEv, _ := json.Marshal(agent.Event{Type: protocol.AgentEventDone})
			s.sendFrame(protocol.NewAgentEventFrame(doneEv))
		}
	}()
}

// interruptAgent cancels a running invocation and waits for it to unwind.
func (s *session) interruptAgent() {
	s.mu.Lock()
	cancel, done := s.agentCancel, s.agentDone
	s.agentCancel, s.agentDone = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *session) waitForAgent() {
	s.mu.Lock()
	done := s.agentDone
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *session) sendFrame(f protocol.Frame) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(f); err != nil {
		s.log.Debug("client write failed", "type", f.Type, "error", err)
	}
}

func (s *session) setTranscript(t string) {
	s.mu.Lock()
	s.transcript = t
	s.mu.Unlock()
}

func (s *session) takeTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.transcript
	s.transcript = ""
	return t
}

func (s *session) setSpeaking(v bool) {
	s.mu.Lock()
	s.speaking = v
	s.mu.Unlock()
}

func (s *session) isGated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking && s.agentRunning
}

func (s *session) isAgentRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentRunning
}

func isClientGone(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}
