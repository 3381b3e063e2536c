package oracle

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel     = "claude-3-5-sonnet-20241022"
	defaultAnthropicMaxTokens = 8192
)

// AnthropicOracle asks an Anthropic model for fixes.
type AnthropicOracle struct {
	client      anthropic.Client
	model       string
	temperature float64
}

// NewAnthropicOracle creates an oracle backed by the official Anthropic SDK.
func NewAnthropicOracle(apiKey, model string, temperature float64) (*AnthropicOracle, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, fmt.Errorf("anthropic oracle requires an API key")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicOracle{
		client:      anthropic.NewClient(option.WithAPIKey(key)),
		model:       model,
		temperature: temperature,
	}, nil
}

func (o *AnthropicOracle) Name() string { return "anthropic/" + o.model }

func (o *AnthropicOracle) ProposeFix(ctx context.Context, req *FixRequest) (*FixResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(o.model),
		MaxTokens: defaultAnthropicMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: SystemPrompt()}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(req))),
		},
	}
	if o.temperature > 0 {
		params.Temperature = anthropic.Float(o.temperature)
	}

	msg, err := o.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic fix request failed: %w", err)
	}

	var content strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}
	return ParseResponse(content.String())
}
