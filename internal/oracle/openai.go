package oracle

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

const (
	defaultOpenAIModel     = "gpt-4.1"
	defaultOpenAIMaxTokens = 8192
)

// OpenAIOracle asks an OpenAI model for fixes via the Responses API.
type OpenAIOracle struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAIOracle creates an oracle backed by the official OpenAI SDK.
func NewOpenAIOracle(apiKey, model string, temperature float64) (*OpenAIOracle, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, fmt.Errorf("openai oracle requires an API key")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIOracle{
		client:      openai.NewClient(option.WithAPIKey(key)),
		model:       model,
		temperature: temperature,
	}, nil
}

func (o *OpenAIOracle) Name() string { return "openai/" + o.model }

func (o *OpenAIOracle) ProposeFix(ctx context.Context, req *FixRequest) (*FixResponse, error) {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(o.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(BuildPrompt(req), responses.EasyInputMessageRoleUser),
			},
		},
		Instructions:    openai.String(SystemPrompt()),
		MaxOutputTokens: openai.Int(defaultOpenAIMaxTokens),
	}
	if o.temperature > 0 && !temperatureUnsupported(o.model) {
		params.Temperature = openai.Float(o.temperature)
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai fix request failed: %w", err)
	}
	return ParseResponse(resp.OutputText())
}

// Reasoning models reject the temperature parameter outright.
func temperatureUnsupported(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	return strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") ||
		strings.HasPrefix(m, "o4") || strings.HasPrefix(m, "gpt-5")
}
