package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingToken = errors.New("TELEGRAM_BOT_TOKEN is required")

type Config struct {
	TelegramToken string

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	MediaGroupDebounce time.Duration
	MaxConcurrent      int
	RequestTimeout     time.Duration
	HTTPTimeout        time.Duration
	AttachmentCacheTTL time.Duration

	SDBaseURL     string
	SDModel       string
	SDMinInterval time.Duration

	TTSServerURL   string
	TTSVoicePreset string

	WebAddr string
}

// Load reads the shared settings. The bot token is optional here; use
// LoadBot for the Telegram entry point.
func Load() Config {
	cfg := Config{
		TelegramToken:      strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		LogLevel:           strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:              getEnvBool("DEBUG", false),
		PreferIPv4:         getEnvBool("PREFER_IPV4", true),
		MediaGroupDebounce: time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		MaxConcurrent:      getEnvInt("MAX_CONCURRENT", 4),
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 180)) * time.Second,
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		AttachmentCacheTTL: time.Duration(getEnvInt("ATTACHMENT_CACHE_MINUTES", 30)) * time.Minute,
		SDBaseURL:          strings.TrimRight(getEnv("SD_BASE_URL", "http://127.0.0.1:7860"), "/"),
		SDModel:            getEnv("SD_MODEL", ""),
		SDMinInterval:      time.Duration(getEnvInt("SD_MIN_INTERVAL_MS", 0)) * time.Millisecond,
		TTSServerURL:       getEnv("TTS_SERVER_URL", "http://127.0.0.1:6006/tts_bark/"),
		TTSVoicePreset:     strings.ToLower(getEnv("TTS_VOICE_PRESET", "sweet")),
		WebAddr:            getEnv("WEB_ADDR", ":8080"),
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 180 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.MediaGroupDebounce <= 0 {
		cfg.MediaGroupDebounce = 1200 * time.Millisecond
	}
	if cfg.AttachmentCacheTTL <= 0 {
		cfg.AttachmentCacheTTL = 30 * time.Minute
	}
	if cfg.SDMinInterval < 0 {
		cfg.SDMinInterval = 0
	}

	return cfg
}

func LoadBot() (Config, error) {
	cfg := Load()
	if cfg.TelegramToken == "" {
		return Config{}, ErrMissingToken
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
