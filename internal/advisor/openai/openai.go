// internal/advisor/openai/openai.go
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"ballast/internal/advisor"
	"ballast/internal/core"
)

// Provider generates commentary through the OpenAI chat completions API.
type Provider struct {
	client *openai.Client
	model  string
}

// New creates an OpenAI-backed advisor.
func New(apiKey, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("openai api key required"))
	}
	if model == "" {
		model = "gpt-4o"
	}
	client := openai.NewClient(apiKey)
	return &Provider{client: client, model: model}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "openai"
}

// Comment sends the report to OpenAI and returns its assessment.
func (p *Provider) Comment(ctx context.Context, report string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     p.model,
		MaxTokens: advisor.MaxCommentTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: advisor.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: report},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", core.WrapError(core.ErrAdvisorTimeout, err)
		}
		return "", core.WrapError(core.ErrAdvisorFailed, err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	return strings.TrimSpace(content), nil
}
