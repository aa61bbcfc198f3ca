package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMessage_Envelope(t *testing.T) {
	data, err := EncodeMessage(MsgSet, SetPayload{RequestID: "r1", Key: "chatHistory", Value: "[]"})
	require.NoError(t, err)

	msg, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, MsgSet, msg.Type)
	assert.Equal(t, "r1", msg.RequestID())

	var payload SetPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "chatHistory", payload.Key)
	assert.Equal(t, "[]", payload.Value)
}

func TestRequestID_Missing(t *testing.T) {
	data, err := EncodeMessage(MsgValueChanged, ValueChangedPayload{Key: "k", NewValue: "v"})
	require.NoError(t, err)

	msg, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, "", msg.RequestID())
}

func TestChatWireNames(t *testing.T) {
	data, err := json.Marshal(ChatRequest{UserInput: "Hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"userInput":"Hi"}`, string(data))

	var resp ChatResponse
	require.NoError(t, json.Unmarshal([]byte(`{"response":"Hello!"}`), &resp))
	assert.Equal(t, "Hello!", resp.Response)
}
