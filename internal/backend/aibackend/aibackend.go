// Package aibackend adapts hosted LLM APIs to backend.Backend, so a
// pipeline step can invoke a model the same way it invokes any other
// compute backend. It is grounded on internal/provider/anthropic and
// internal/provider/openai in the teacher repository this project started
// from: the same client construction and request/response shape, narrowed
// to the single "prompt in, text out" call a task execution needs.
package aibackend

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"

	"github.com/taskflow/pipelinectl/internal/backend"
	"github.com/taskflow/pipelinectl/internal/task"
)

// defaultMaxTokens bounds completions that don't set payload["maxTokens"].
const defaultMaxTokens = 4096

// AnthropicBackend executes tasks by sending payload["prompt"] (and, if
// set, payload["system"]) to the Anthropic Messages API and returning the
// concatenated text content.
type AnthropicBackend struct {
	name   string
	client anthropic.Client
	model  string
}

// NewAnthropic builds an AnthropicBackend named name, using model as the
// default when a task doesn't set payload["model"]. Extra client options
// (WithBaseURL, WithHTTPClient, ...) are forwarded to the SDK client, which
// is how tests point the backend at a local server.
func NewAnthropic(name, apiKey, model string, extra ...anthropicoption.RequestOption) *AnthropicBackend {
	opts := append([]anthropicoption.RequestOption{anthropicoption.WithAPIKey(apiKey)}, extra...)
	return &AnthropicBackend{
		name:   name,
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (b *AnthropicBackend) Name() string { return b.name }

func (b *AnthropicBackend) Execute(ctx context.Context, t *task.Task) (any, error) {
	prompt, _ := t.Payload["prompt"].(string)
	if prompt == "" {
		return nil, fmt.Errorf("aibackend %q: payload.prompt is required", b.name)
	}

	model := b.model
	if m, ok := t.Payload["model"].(string); ok && m != "" {
		model = m
	}

	maxTokens := int64(defaultMaxTokens)
	if n, ok := t.Payload["maxTokens"].(int); ok && n > 0 {
		maxTokens = int64(n)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system, ok := t.Payload["system"].(string); ok && system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("aibackend %q: anthropic call failed: %w", b.name, err)
	}

	var text string
	for _, block := range resp.Content {
		if _, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += block.Text
		}
	}

	return map[string]any{
		"text": text,
		"usage": map[string]any{
			"promptTokens":     resp.Usage.InputTokens,
			"completionTokens": resp.Usage.OutputTokens,
		},
	}, nil
}

func (b *AnthropicBackend) GetStatus(ctx context.Context, id string) (*backend.Status, error) {
	return &backend.Status{ID: id, State: "completed"}, nil
}

func (b *AnthropicBackend) IsHealthy(ctx context.Context) bool {
	_, err := b.client.Models.List(ctx, anthropic.ModelListParams{Limit: anthropic.Int(1)})
	return err == nil
}

// OpenAIBackend executes tasks by sending payload["prompt"] to the OpenAI
// chat completions API and returning the response text.
type OpenAIBackend struct {
	name   string
	client openai.Client
	model  string
}

// NewOpenAI builds an OpenAIBackend named name, using model as the default
// when a task doesn't set payload["model"]. Extra client options
// (WithBaseURL, WithHTTPClient, ...) are forwarded to the SDK client, which
// is how tests point the backend at a local server.
func NewOpenAI(name, apiKey, model string, extra ...openaioption.RequestOption) *OpenAIBackend {
	opts := append([]openaioption.RequestOption{openaioption.WithAPIKey(apiKey)}, extra...)
	return &OpenAIBackend{
		name:   name,
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (b *OpenAIBackend) Name() string { return b.name }

func (b *OpenAIBackend) Execute(ctx context.Context, t *task.Task) (any, error) {
	prompt, _ := t.Payload["prompt"].(string)
	if prompt == "" {
		return nil, fmt.Errorf("aibackend %q: payload.prompt is required", b.name)
	}

	model := b.model
	if m, ok := t.Payload["model"].(string); ok && m != "" {
		model = m
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if system, ok := t.Payload["system"].(string); ok && system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("aibackend %q: openai call failed: %w", b.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("aibackend %q: openai returned no choices", b.name)
	}

	return map[string]any{
		"text": resp.Choices[0].Message.Content,
		"usage": map[string]any{
			"promptTokens":     resp.Usage.PromptTokens,
			"completionTokens": resp.Usage.CompletionTokens,
		},
	}, nil
}

func (b *OpenAIBackend) GetStatus(ctx context.Context, id string) (*backend.Status, error) {
	return &backend.Status{ID: id, State: "completed"}, nil
}

func (b *OpenAIBackend) IsHealthy(ctx context.Context) bool {
	_, err := b.client.Models.List(ctx)
	return err == nil
}

var _ backend.Backend = (*AnthropicBackend)(nil)
var _ backend.Backend = (*OpenAIBackend)(nil)
