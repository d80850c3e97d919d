package backend

import (
	"context"
	"iter"

	"github.com/leofalp/devchat/core/attachment"
	"github.com/leofalp/devchat/providers/ai"
	"github.com/leofalp/devchat/providers/memory"
)

// GeminiAcknowledgement is the synthetic model turn that follows the system
// prompt in every Gemini conversation.
const GeminiAcknowledgement = "I understand. I'm ready to help you with your Next.js project. What would you like me to do?"

const (
	geminiDefaultTemperature = 0.7
	geminiMaxOutputTokens    = 8192
)

// Gemini shapes transcripts for the Gemini API. The system prompt travels
// as an opening user turn answered by GeminiAcknowledgement.
type Gemini struct {
	provider      ai.Provider
	model         string
	temperature   float64
	encodeOptions []attachment.Option
}

var _ Backend = (*Gemini)(nil)

// NewGemini wraps provider. A zero temperature selects 0.7.
func NewGemini(provider ai.Provider, model string, temperature float64, encodeOptions ...attachment.Option) *Gemini {
	if temperature == 0 {
		temperature = geminiDefaultTemperature
	}
	return &Gemini{
		provider:      provider,
		model:         model,
		temperature:   temperature,
		encodeOptions: encodeOptions,
	}
}

func (b *Gemini) Name() string {
	return "gemini"
}

func (b *Gemini) Complete(ctx context.Context, transcript []memory.Message, systemPrompt string) (string, error) {
	if b.provider == nil {
		return "", ErrClientNotInitialized
	}
	request, err := b.request(transcript, systemPrompt)
	if err != nil {
		return "", err
	}
	return complete(ctx, b.provider, request)
}

func (b *Gemini) Stream(ctx context.Context, transcript []memory.Message, systemPrompt string) iter.Seq2[string, error] {
	return stream(ctx, b.provider, func() (ai.ChatRequest, error) {
		return b.request(transcript, systemPrompt)
	})
}

// request builds [system turn, acknowledgement, history..., newest turn].
// The newest transcript entry is the user message being answered.
func (b *Gemini) request(transcript []memory.Message, systemPrompt string) (ai.ChatRequest, error) {
	messages := make([]ai.Message, 0, len(transcript)+2)
	messages = append(messages,
		ai.Message{Role: ai.RoleUser, Content: systemPrompt},
		ai.Message{Role: ai.RoleAssistant, Content: GeminiAcknowledgement},
	)

	for _, msg := range transcript {
		converted, err := toAIMessage(msg, b.encodeOptions)
		if err != nil {
			return ai.ChatRequest{}, err
		}
		messages = append(messages, converted)
	}

	temperature := b.temperature
	return ai.ChatRequest{
		Model:    b.model,
		Messages: messages,
		GenerationConfig: &ai.GenerationConfig{
			Temperature:     &temperature,
			MaxOutputTokens: geminiMaxOutputTokens,
		},
	}, nil
}
