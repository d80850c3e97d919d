package backend

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/leofalp/devchat/core/attachment"
	"github.com/leofalp/devchat/core/config"
	"github.com/leofalp/devchat/providers/ai"
	"github.com/leofalp/devchat/providers/ai/gemini"
	"github.com/leofalp/devchat/providers/ai/openai"
	"github.com/leofalp/devchat/providers/memory"
	"github.com/leofalp/devchat/providers/observability"
)

// FallbackReply replaces an empty completion.
const FallbackReply = "Sorry, I could not generate a response."

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

var (
	ErrUnsupportedProvider  = errors.New("unsupported AI provider")
	ErrMissingAPIKey        = errors.New("missing API key")
	ErrClientNotInitialized = errors.New("AI client not initialized")
)

// Backend produces an assistant reply for a transcript whose last entry is
// the pending user turn.
type Backend interface {
	// Name is the configured provider name.
	Name() string

	// Complete returns the reply text, or FallbackReply when the model
	// produced nothing.
	Complete(ctx context.Context, transcript []memory.Message, systemPrompt string) (string, error)

	// Stream yields the accumulated reply after every non-empty delta. The
	// request starts when the sequence is first pulled.
	Stream(ctx context.Context, transcript []memory.Message, systemPrompt string) iter.Seq2[string, error]
}

// Option configures New.
type Option func(*options)

type options struct {
	httpClient    *http.Client
	encodeOptions []attachment.Option
}

// WithHTTPClient sets the HTTP client used by the provider.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithAttachmentOptions is forwarded to attachment.Encode for every user
// turn that carries attachments.
func WithAttachmentOptions(opts ...attachment.Option) Option {
	return func(o *options) {
		o.encodeOptions = append(o.encodeOptions, opts...)
	}
}

// New selects the backend variant for cfg.Provider.
//
//	b, err := backend.New(cfg.AI, backend.WithAttachmentOptions(attachment.WithHTMLAsMarkdown()))
func New(cfg config.AI, opts ...Option) (Backend, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = config.ProviderOpenAI
	}

	switch name {
	case config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderOpenRouter:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultOpenAIBaseURL
		}
		client := openai.New().WithName(name)
		client.WithAPIKey(cfg.APIKey)
		client.WithBaseURL(baseURL)
		if o.httpClient != nil {
			client.WithHttpClient(o.httpClient)
		}
		return NewOpenAI(client, name, cfg.Model, cfg.Temperature, o.encodeOptions...), nil

	case config.ProviderGemini:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("%w for provider %q", ErrMissingAPIKey, name)
		}
		client := gemini.New()
		client.WithAPIKey(cfg.APIKey)
		if o.httpClient != nil {
			client.WithHttpClient(o.httpClient)
		}
		return NewGemini(client, cfg.Model, cfg.Temperature, o.encodeOptions...), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

// complete runs one synchronous request and applies the fallback.
func complete(ctx context.Context, provider ai.Provider, request ai.ChatRequest) (string, error) {
	if provider == nil {
		return "", ErrClientNotInitialized
	}

	response, err := provider.SendMessage(ctx, request)
	if err != nil {
		return "", err
	}

	if response.Content == "" {
		if observer := observability.ObserverFromContext(ctx); observer != nil {
			observer.Debug(ctx, "Empty completion, using fallback reply",
				observability.String(observability.AttrLLMFinishReason, response.FinishReason),
			)
		}
		return FallbackReply, nil
	}
	return response.Content, nil
}

// stream wraps a provider stream as a sequence of accumulated texts.
// Providers without streaming support answer in a single step.
func stream(ctx context.Context, provider ai.Provider, build func() (ai.ChatRequest, error)) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if provider == nil {
			yield("", ErrClientNotInitialized)
			return
		}

		request, err := build()
		if err != nil {
			yield("", err)
			return
		}

		var chatStream *ai.ChatStream
		if streamer, ok := provider.(ai.StreamProvider); ok {
			chatStream, err = streamer.StreamMessage(ctx, request)
		} else {
			var response *ai.ChatResponse
			response, err = provider.SendMessage(ctx, request)
			if err == nil {
				chatStream = ai.NewSingleEventStream(response)
			}
		}
		if err != nil {
			yield("", err)
			return
		}

		var accumulated strings.Builder
		for event, err := range chatStream.Iter() {
			if err != nil {
				yield("", err)
				return
			}
			if event.Type != ai.StreamEventContent || event.Content == "" {
				continue
			}
			accumulated.WriteString(event.Content)
			if !yield(accumulated.String(), nil) {
				return
			}
		}
	}
}

// toAIMessage expands a transcript message into an ai.Message. Only user
// turns carry attachments.
func toAIMessage(msg memory.Message, encodeOptions []attachment.Option) (ai.Message, error) {
	role := ai.RoleUser
	if msg.Role == memory.RoleAssistant {
		role = ai.RoleAssistant
	}

	out := ai.Message{Role: role, Content: msg.Content}
	if role == ai.RoleUser && len(msg.Attachments) > 0 {
		parts, err := attachment.Encode(msg.Content, msg.Attachments, encodeOptions...)
		if err != nil {
			return ai.Message{}, fmt.Errorf("encode message %s: %w", msg.ID, err)
		}
		out.ContentParts = parts
	}
	return out, nil
}
