// internal/advisor/ollama/ollama.go
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ballast/internal/advisor"
	"ballast/internal/core"
)

// Provider generates commentary through a local Ollama server.
type Provider struct {
	endpoint string
	model    string
	client   *http.Client
}

// New creates an Ollama-backed advisor.
func New(endpoint, model string) (*Provider, error) {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "qwen2.5:32b"
	}
	return &Provider{
		endpoint: endpoint,
		model:    model,
		client: &http.Client{
			Timeout: 5 * time.Minute, // local inference can be slow
		},
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "ollama"
}

type generateRequest struct {
	Model   string          `json:"model"`
	System  string          `json:"system,omitempty"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

// Comment sends the report to Ollama's generate endpoint and returns its
// assessment.
func (p *Provider) Comment(ctx context.Context, report string) (string, error) {
	genReq := generateRequest{
		Model:  p.model,
		System: advisor.SystemPrompt,
		Prompt: report,
		Stream: false,
		Options: generateOptions{
			NumPredict: advisor.MaxCommentTokens,
		},
	}

	body, err := json.Marshal(genReq)
	if err != nil {
		return "", core.WrapError(core.ErrAdvisorFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", core.WrapError(core.ErrAdvisorFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", core.WrapError(core.ErrAdvisorTimeout, err)
		}
		return "", core.WrapError(core.ErrAdvisorFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", core.WrapError(core.ErrAdvisorFailed,
			fmt.Errorf("ollama returned status %d", resp.StatusCode))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", core.WrapError(core.ErrAdvisorFailed, err)
	}
	return strings.TrimSpace(genResp.Response), nil
}
