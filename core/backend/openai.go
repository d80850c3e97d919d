package backend

import (
	"context"
	"iter"

	"github.com/leofalp/devchat/core/attachment"
	"github.com/leofalp/devchat/providers/ai"
	"github.com/leofalp/devchat/providers/memory"
)

// OpenAI shapes transcripts for chat-completions style APIs: the system
// prompt leads, followed by every transcript message in order.
type OpenAI struct {
	name          string
	provider      ai.Provider
	model         string
	temperature   float64
	encodeOptions []attachment.Option
}

var _ Backend = (*OpenAI)(nil)

// NewOpenAI wraps provider. name is only used for reporting.
func NewOpenAI(provider ai.Provider, name, model string, temperature float64, encodeOptions ...attachment.Option) *OpenAI {
	return &OpenAI{
		name:          name,
		provider:      provider,
		model:         model,
		temperature:   temperature,
		encodeOptions: encodeOptions,
	}
}

func (b *OpenAI) Name() string {
	return b.name
}

func (b *OpenAI) Complete(ctx context.Context, transcript []memory.Message, systemPrompt string) (string, error) {
	if b.provider == nil {
		return "", ErrClientNotInitialized
	}
	request, err := b.request(transcript, systemPrompt)
	if err != nil {
		return "", err
	}
	return complete(ctx, b.provider, request)
}

func (b *OpenAI) Stream(ctx context.Context, transcript []memory.Message, systemPrompt string) iter.Seq2[string, error] {
	return stream(ctx, b.provider, func() (ai.ChatRequest, error) {
		return b.request(transcript, systemPrompt)
	})
}

func (b *OpenAI) request(transcript []memory.Message, systemPrompt string) (ai.ChatRequest, error) {
	messages := make([]ai.Message, 0, len(transcript))
	for _, msg := range transcript {
		converted, err := toAIMessage(msg, b.encodeOptions)
		if err != nil {
			return ai.ChatRequest{}, err
		}
		messages = append(messages, converted)
	}

	temperature := b.temperature
	return ai.ChatRequest{
		Model:        b.model,
		SystemPrompt: systemPrompt,
		Messages:     messages,
		GenerationConfig: &ai.GenerationConfig{
			Temperature: &temperature,
		},
	}, nil
}
