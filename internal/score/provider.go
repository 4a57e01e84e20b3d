// Package score drives per-document sentiment scoring: an HTTP provider
// wrapping the external classifier service and a runner that persists scores
// and entity tags for unscored articles.
package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Score is one document verdict: a scalar in [-1, 1] and, when the service
// reports them, negative/neutral/positive class probabilities.
type Score struct {
	Value float64
	Probs *[3]float64
}

// Provider scores document text. Implementations may fail; the runner treats
// a failure as terminal for that document only.
type Provider interface {
	ScoreText(ctx context.Context, text string) (Score, error)
	IsConfigured() bool
}

// HTTPProvider calls a sentiment scoring service over HTTP. Each call carries
// a hard timeout; transient network failures are retried with exponential
// backoff, HTTP-level rejections are not.
type HTTPProvider struct {
	BaseURL    string
	MaxRetries int
	client     *http.Client
}

// NewHTTPProvider creates a provider for the given base URL.
func NewHTTPProvider(baseURL string, timeout time.Duration, maxRetries int) *HTTPProvider {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &HTTPProvider{
		BaseURL:    baseURL,
		MaxRetries: maxRetries,
		client:     &http.Client{Timeout: timeout},
	}
}

// IsConfigured checks whether the scoring service answers its health probe.
func (p *HTTPProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", p.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ScoreText scores one document. The returned value is clamped to [-1, 1].
func (p *HTTPProvider) ScoreText(ctx context.Context, text string) (Score, error) {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			log.Debug().Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying scorer call")
			select {
			case <-ctx.Done():
				return Score{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		s, retryable, err := p.call(ctx, text)
		if err == nil {
			return s, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return Score{}, fmt.Errorf("scoring document: %w", lastErr)
}

func (p *HTTPProvider) call(ctx context.Context, text string) (Score, bool, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Score{}, false, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return Score{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		// network-class failure, worth retrying
		return Score{}, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		retryable := resp.StatusCode >= 500
		return Score{}, retryable, fmt.Errorf("scorer returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Score float64    `json:"score"`
		Probs *[3]float64 `json:"probs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Score{}, false, fmt.Errorf("decoding scorer response: %w", err)
	}

	v := result.Score
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return Score{Value: v, Probs: result.Probs}, false, nil
}
