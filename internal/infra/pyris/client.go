package pyris

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"lms-ai-backend/internal/config"
	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/adapter"
)

var _ adapter.PipelineRunner = (*Client)(nil)

// Client invokes pipeline executions at the external Pyris runtime. The job
// token travels in the execution settings; the runtime echoes it back as the
// bearer credential on every status callback.
type Client struct {
	baseURL      string
	secret       string
	callbackBase string
	http         *http.Client
	log          *zerolog.Logger
}

func NewClient(cfg *config.PyrisConfig, logger *zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	l := logger.With().Str("component", "PyrisClient").Logger()
	return &Client{
		baseURL:      cfg.URL,
		secret:       cfg.Secret,
		callbackBase: cfg.CallbackBase,
		http:         &http.Client{Timeout: timeout},
		log:          &l,
	}
}

type executionSettings struct {
	AuthenticationToken string `json:"authenticationToken"`
	CallbackBaseURL     string `json:"callbackBaseUrl,omitempty"`
}

type executionRequest struct {
	Settings      executionSettings `json:"settings"`
	InitialStages []model.Stage     `json:"initialStages"`
	Payload       any               `json:"payload,omitempty"`
}

// Run dispatches one execution request and returns as soon as the runtime
// has accepted it. It never waits for a callback.
func (c *Client) Run(ctx context.Context, req adapter.ExecutionRequest) error {
	body, err := json.Marshal(executionRequest{
		Settings: executionSettings{
			AuthenticationToken: req.Token,
			CallbackBaseURL:     c.callbackBase,
		},
		InitialStages: req.InitialStages,
		Payload:       req.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal execution request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/pipelines/%s/run", c.baseURL, req.Feature)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build execution request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		httpReq.Header.Set("Authorization", c.secret)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send execution request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pipeline runtime returned %d for %s", resp.StatusCode, req.Feature)
	}

	c.log.Debug().Str("feature", req.Feature).Msg("pipeline run dispatched")
	return nil
}

// InitialStages returns the snapshot a fresh run starts with. The first
// stage is already in progress at submit time so subscribers see activity
// immediately.
func (c *Client) InitialStages(feature string) []model.Stage {
	return []model.Stage{
		{Name: "Preparing", Weight: 10, State: model.StageInProgress},
		{Name: "Executing pipeline", Weight: 30, State: model.StageNotStarted},
	}
}
