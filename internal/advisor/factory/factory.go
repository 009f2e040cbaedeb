// internal/advisor/factory/factory.go
package factory

import (
	"fmt"

	"ballast/internal/advisor"
	"ballast/internal/advisor/claude"
	"ballast/internal/advisor/ollama"
	"ballast/internal/advisor/openai"
	"ballast/internal/config"
	"ballast/internal/core"
)

// New builds a commentary provider from configuration. An empty provider
// name disables the advisor: the caller gets nil without an error.
func New(cfg config.AdvisorConfig) (advisor.Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "claude":
		return claude.New(cfg.Claude.APIKey, cfg.Claude.Model)
	case "openai":
		return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	case "ollama":
		return ollama.New(cfg.Ollama.Endpoint, cfg.Ollama.Model)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown advisor provider %q", cfg.Provider))
	}
}
