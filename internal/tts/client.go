package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	ErrBackendUnreachable = errors.New("speech backend unreachable")
	ErrNoAudioData        = errors.New("speech backend returned no audio data")
	ErrEmptyText          = errors.New("text is required")
	ErrNoServerURL        = errors.New("speech backend url is not set")
)

// Voice presets understood by the speech server. Unknown presets fall back to
// PresetSweet server-side.
const (
	PresetSweet = "sweet"
	PresetWarm  = "warm"
	PresetCute  = "cute"
)

func Presets() []string {
	return []string{PresetSweet, PresetWarm, PresetCute}
}

func IsPreset(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case PresetSweet, PresetWarm, PresetCute:
		return true
	}
	return false
}

type Request struct {
	Text         string   `json:"text"`
	VoicePreset  string   `json:"voice_preset,omitempty"`
	TextTemp     *float64 `json:"text_temp,omitempty"`
	WaveformTemp *float64 `json:"waveform_temp,omitempty"`
}

type response struct {
	FileBase64 string `json:"file_base64"`
	AudioText  string `json:"audio_text"`
	FileName   string `json:"file_name"`
	Msg        string `json:"msg"`
	Err        string `json:"err"`
}

// Audio is a synthesized OGG/Opus clip.
type Audio struct {
	Data     []byte
	Text     string
	FileName string
}

type Options struct {
	ServerURL  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	serverURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		serverURL:  strings.TrimSpace(opts.ServerURL),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) Synthesize(ctx context.Context, req Request) (Audio, error) {
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return Audio{}, ErrEmptyText
	}
	if c.serverURL == "" {
		return Audio{}, ErrNoServerURL
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Audio{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL, bytes.NewReader(body))
	if err != nil {
		return Audio{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Audio{}, fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("%w: read response: %w", ErrBackendUnreachable, err)
	}
	if httpResp.StatusCode >= 400 {
		return Audio{}, fmt.Errorf("%w: %s: %s", ErrBackendUnreachable, httpResp.Status, strings.TrimSpace(string(rawBody)))
	}

	var decoded response
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return Audio{}, fmt.Errorf("decode response: %w", err)
	}
	if decoded.FileBase64 == "" {
		if decoded.Err != "" {
			return Audio{}, fmt.Errorf("%w: %s", ErrNoAudioData, decoded.Err)
		}
		return Audio{}, ErrNoAudioData
	}

	data, err := base64.StdEncoding.DecodeString(decoded.FileBase64)
	if err != nil {
		return Audio{}, fmt.Errorf("decode audio: %w", err)
	}

	c.logger.Debug("speech synthesized", "chars", len(req.Text), "bytes", len(data), "dur_ms", time.Since(start).Milliseconds())

	fileName := decoded.FileName
	if fileName == "" {
		fileName = "voice.ogg"
	}
	return Audio{
		Data:     data,
		Text:     decoded.AudioText,
		FileName: fileName,
	}, nil
}
