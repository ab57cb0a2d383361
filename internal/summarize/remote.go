package summarize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/khanglvm/kimo/internal/errs"
	"github.com/khanglvm/kimo/internal/logger"
)

// RemoteConfig configures the HTTP summarization backend.
type RemoteConfig struct {
	Endpoint string        `koanf:"endpoint" validate:"omitempty,url"`
	APIKey   string        `koanf:"api_key"`
	Timeout  time.Duration `koanf:"timeout" validate:"gte=0"`

	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold uint32 `koanf:"failure_threshold"`

	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration `koanf:"open_timeout" validate:"gte=0"`
}

type remoteRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
}

type remoteResponse struct {
	Summary string `json:"summary"`
}

// RemoteSummarizer posts {text, max_length} to an endpoint that answers
// {summary}.
type RemoteSummarizer struct {
	endpoint string
	apiKey   string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker[string]
	log      logger.Logger
}

// NewRemoteSummarizer creates the backend. An empty endpoint is reported
// as a *errs.SummarizerInitError.
func NewRemoteSummarizer(cfg RemoteConfig, client *http.Client, log logger.Logger) (*RemoteSummarizer, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, &errs.SummarizerInitError{Backend: "remote", Err: errors.New("no endpoint configured")}
	}
	if log == nil {
		log = logger.NewNop()
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	r := &RemoteSummarizer{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
		log:      log,
	}
	r.cb = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "remote-summarizer",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the backend's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return r, nil
}

// State reports the breaker state (closed, half-open, open).
func (r *RemoteSummarizer) State() string {
	return r.cb.State().String()
}

func (r *RemoteSummarizer) Summarize(ctx context.Context, text string, maxLength int) (string, error) {
	summary, err := r.cb.Execute(func() (string, error) {
		return r.post(ctx, text, maxLength)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: remote summarizer circuit open", errs.ErrModelUnavailable)
	}
	return summary, err
}

func (r *RemoteSummarizer) post(ctx context.Context, text string, maxLength int) (string, error) {
	body, err := json.Marshal(remoteRequest{Text: text, MaxLength: maxLength})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote summarizer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: remote summarizer returned status %d", errs.ErrModelUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read remote summary: %w", err)
	}

	var out remoteResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode remote summary: %w", err)
	}
	if strings.TrimSpace(out.Summary) == "" {
		return "", errors.New("remote summarizer returned an empty summary")
	}
	return out.Summary, nil
}
