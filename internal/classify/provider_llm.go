// Package classify routes capture classification through pluggable
// providers in priority order with graceful fallback.
package classify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/retracehq/retrace/pkg/models"
)

// LLMProvider classifies captures by calling a local model endpoint.
// Availability means the endpoint answers its health probe; a stopped model
// server makes the router fall through to the rules provider.
type LLMProvider struct {
	endpoint string
	client   *http.Client
}

// NewLLMProvider creates an LLM provider for the given base endpoint.
func NewLLMProvider(endpoint string) *LLMProvider {
	return &LLMProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// ID implements Provider.
func (p *LLMProvider) ID() string { return "llm" }

// IsAvailable probes the endpoint's health route with a short timeout.
func (p *LLMProvider) IsAvailable(ctx context.Context, _ RouterContext) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.endpoint+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

type llmClassifyRequest struct {
	Context     *models.ActivityContext  `json:"context,omitempty"`
	Screenshots []models.EventScreenshot `json:"screenshots,omitempty"`
}

// Classify posts the capture to the model endpoint.
func (p *LLMProvider) Classify(ctx context.Context, input Input, _ RouterContext) (*models.ClassificationResult, error) {
	payload, err := json.Marshal(llmClassifyRequest{
		Context:     input.Context,
		Screenshots: input.Screenshots,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/classify", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classify endpoint returned %d", resp.StatusCode)
	}

	var result models.ClassificationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	return &result, nil
}
