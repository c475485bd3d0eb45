// Package exchange defines the envelope the bot hands to reply producers.
package exchange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"charstudio/internal/tts"
)

type MessageType string

const (
	TypeText    MessageType = "text"
	TypeImage   MessageType = "image"
	TypeVoice   MessageType = "voice"
	TypeCommand MessageType = "command"
)

var ErrInvalidMessage = errors.New("invalid exchange message")

type User struct {
	ID string `json:"id"`
}

type Chat struct {
	ID string `json:"id"`
}

type Body struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
	ID      string      `json:"id"`
}

type Options struct {
	Voice        bool     `json:"voice"`
	VoicePreset  string   `json:"voice_preset,omitempty"`
	TextTemp     *float64 `json:"text_temp,omitempty"`
	WaveformTemp *float64 `json:"waveform_temp,omitempty"`
	VoiceCall    bool     `json:"voice_call,omitempty"`
}

type Message struct {
	User    User     `json:"user"`
	Chat    Chat     `json:"chat"`
	Message Body     `json:"message"`
	Options *Options `json:"options,omitempty"`
}

// New builds an envelope from Telegram identifiers.
func New(userID, chatID int64, messageID int, typ MessageType, content string) Message {
	return Message{
		User: User{ID: strconv.FormatInt(userID, 10)},
		Chat: Chat{ID: strconv.FormatInt(chatID, 10)},
		Message: Body{
			Type:    typ,
			Content: content,
			ID:      strconv.Itoa(messageID),
		},
	}
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.User.ID) == "" {
		return fmt.Errorf("%w: user id is empty", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Chat.ID) == "" {
		return fmt.Errorf("%w: chat id is empty", ErrInvalidMessage)
	}
	switch m.Message.Type {
	case TypeText, TypeImage, TypeVoice, TypeCommand:
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrInvalidMessage, m.Message.Type)
	}
	if o := m.Options; o != nil {
		if o.VoicePreset != "" && !tts.IsPreset(o.VoicePreset) {
			return fmt.Errorf("%w: unknown voice preset %q", ErrInvalidMessage, o.VoicePreset)
		}
		if err := checkTemp("text_temp", o.TextTemp); err != nil {
			return err
		}
		if err := checkTemp("waveform_temp", o.WaveformTemp); err != nil {
			return err
		}
	}
	return nil
}

// SpeechRequest returns the synthesis request for a voiced text reply. The
// bool is false when the message does not ask for a voice reply.
func (m Message) SpeechRequest() (tts.Request, bool) {
	if m.Options == nil || !m.Options.Voice {
		return tts.Request{}, false
	}
	text := strings.TrimSpace(m.Message.Content)
	if text == "" {
		return tts.Request{}, false
	}
	return tts.Request{
		Text:         text,
		VoicePreset:  strings.ToLower(strings.TrimSpace(m.Options.VoicePreset)),
		TextTemp:     m.Options.TextTemp,
		WaveformTemp: m.Options.WaveformTemp,
	}, true
}

func checkTemp(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > 1 {
		return fmt.Errorf("%w: %s must be within [0,1]", ErrInvalidMessage, name)
	}
	return nil
}
