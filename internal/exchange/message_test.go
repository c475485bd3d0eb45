package exchange

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndJSON(t *testing.T) {
	m := New(42, -100, 7, TypeText, "hello")
	m.Options = &Options{Voice: true, VoicePreset: "cute"}

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"user": {"id": "42"},
		"chat": {"id": "-100"},
		"message": {"type": "text", "content": "hello", "id": "7"},
		"options": {"voice": true, "voice_preset": "cute"}
	}`, string(raw))
}

func TestValidate(t *testing.T) {
	ok := New(1, 2, 3, TypeCommand, "/say hi")
	require.NoError(t, ok.Validate())

	bad := ok
	bad.User.ID = ""
	assert.ErrorIs(t, bad.Validate(), ErrInvalidMessage)

	bad = ok
	bad.Chat.ID = " "
	assert.ErrorIs(t, bad.Validate(), ErrInvalidMessage)

	bad = ok
	bad.Message.Type = "sticker"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidMessage)

	bad = ok
	bad.Options = &Options{VoicePreset: "robot"}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidMessage)

	hot := 1.5
	bad = ok
	bad.Options = &Options{WaveformTemp: &hot}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidMessage)
}

func TestSpeechRequest(t *testing.T) {
	m := New(1, 2, 3, TypeText, "  good night  ")
	_, ok := m.SpeechRequest()
	assert.False(t, ok, "no options means no voice")

	temp := 0.4
	m.Options = &Options{Voice: true, VoicePreset: " Warm ", TextTemp: &temp}
	req, ok := m.SpeechRequest()
	require.True(t, ok)
	assert.Equal(t, "good night", req.Text)
	assert.Equal(t, "warm", req.VoicePreset)
	require.NotNil(t, req.TextTemp)
	assert.Equal(t, 0.4, *req.TextTemp)
	assert.Nil(t, req.WaveformTemp)

	m.Message.Content = "   "
	_, ok = m.SpeechRequest()
	assert.False(t, ok)
}
