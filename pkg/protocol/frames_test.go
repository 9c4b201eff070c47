package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameShapes(t *testing.T) {
	raw, err := json.Marshal(NewAgentStartFrame("add milk"))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"agent_start","query":"add milk"}`, string(raw))

	raw, err = json.Marshal(NewAgentErrorFrame("boom"))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"agent_error","error":"boom"}`, string(raw))

	raw, err = json.Marshal(NewFluxFrame(json.RawMessage(`{"type":"TurnInfo"}`)))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"flux_event","data":{"type":"TurnInfo"}}`, string(raw))

	raw, err = json.Marshal(NewAgentEventFrame(json.RawMessage(`{"type":"done"}`)))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"agent_event","data":{"type":"done"}}`, string(raw))
}
