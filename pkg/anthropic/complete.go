package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Completer turns a prompt into model text.
type Completer struct {
	client    Client
	model     string
	maxTokens int64
}

// NewCompleter returns a Completer using model, or DefaultModel when empty.
func NewCompleter(client Client, model string) *Completer {
	if model == "" {
		model = DefaultModel
	}
	return &Completer{client: client, model: model, maxTokens: 256}
}

// Complete sends prompt at temperature zero and returns the reply text.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	temp := 0.0
	resp, err := c.client.CreateMessage(ctx, MessageRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Prompt:      prompt,
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	if resp.Text == "" {
		return "", eris.New("anthropic: empty completion")
	}
	zap.L().Debug("anthropic: completion",
		zap.String("model", resp.Model),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)
	return resp.Text, nil
}
