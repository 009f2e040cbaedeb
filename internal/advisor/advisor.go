// Package advisor produces model-written commentary on finished backtest
// reports. Providers receive the rendered report text and return a short
// plain-text assessment; they never influence the run itself.
package advisor

import "context"

// Provider generates commentary for a backtest report.
type Provider interface {
	Name() string
	Comment(ctx context.Context, report string) (string, error)
}

// SystemPrompt frames every commentary request the same way regardless of
// which backend serves it.
const SystemPrompt = `You are a quantitative trading analyst reviewing the report of an automated backtest.
Write a short assessment of the run: name its strongest and weakest numbers, flag risk
concerns such as deep drawdowns or thin trade counts, and close with one concrete
suggestion. Be concise, use plain text without emojis, and format numbers nicely
(e.g. -14.2%, $10,250).`

// MaxCommentTokens caps the length of a single commentary reply.
const MaxCommentTokens = 512
