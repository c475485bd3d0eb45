package sdapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"charstudio/internal/payload"
)

const modelsPath = "/sdapi/v1/sd-models"

var (
	ErrBackendUnreachable = errors.New("generation backend unreachable")
	ErrNoBackendURL       = errors.New("generation backend url is not set")
)

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
	// MinInterval spaces generation calls; zero disables pacing.
	MinInterval time.Duration
	// ProbeTTL is how long a successful liveness probe is remembered.
	ProbeTTL time.Duration
}

// Result holds the base64 PNGs returned by a generation call.
type Result struct {
	Images []string
	Info   string
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	probes     *cache.Cache
	probeTTL   time.Duration
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

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}

	probeTTL := opts.ProbeTTL
	if probeTTL <= 0 {
		probeTTL = 30 * time.Second
	}

	return &Client{
		baseURL:    normalizeBaseURL(opts.BaseURL),
		httpClient: httpClient,
		logger:     logger,
		limiter:    limiter,
		probes:     cache.New(probeTTL, 2*probeTTL),
		probeTTL:   probeTTL,
	}
}

// Generate posts req to the mode's endpoint. baseURL overrides the configured
// backend when non-empty.
func (c *Client) Generate(ctx context.Context, baseURL string, mode payload.Mode, req payload.Request) (Result, error) {
	base, err := c.resolve(baseURL)
	if err != nil {
		return Result{}, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	url := base + mode.Endpoint()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")

	start := time.Now()
	rawBody, err := c.do(httpReq)
	if err != nil {
		return Result{}, err
	}

	var decoded generateResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("generation finished", "mode", mode, "images", len(decoded.Images), "dur_ms", time.Since(start).Milliseconds())

	return Result{
		Images: decoded.Images,
		Info:   decoded.Info,
	}, nil
}

// Ping checks that the backend answers its model listing.
func (c *Client) Ping(ctx context.Context, baseURL string) error {
	base, err := c.resolve(baseURL)
	if err != nil {
		return err
	}
	if _, ok := c.probes.Get(base); ok {
		return nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, base+modelsPath, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if _, err := c.do(httpReq); err != nil {
		return err
	}

	c.probes.Set(base, struct{}{}, c.probeTTL)
	return nil
}

func (c *Client) do(httpReq *http.Request) ([]byte, error) {
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrBackendUnreachable, err)
	}

	if httpResp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s: %s", ErrBackendUnreachable, httpResp.Status, strings.TrimSpace(string(rawBody)))
	}
	return rawBody, nil
}

func (c *Client) resolve(baseURL string) (string, error) {
	if base := normalizeBaseURL(baseURL); base != "" {
		return base, nil
	}
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	return "", ErrNoBackendURL
}

func normalizeBaseURL(v string) string {
	return strings.TrimRight(strings.TrimSpace(v), "/")
}

type generateResponse struct {
	Images []string `json:"images"`
	Info   string   `json:"info"`
}
