package openai

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/leofalp/devchat/internal/utils"
	"github.com/leofalp/devchat/providers/ai"
	"github.com/leofalp/devchat/providers/observability"
)

const (
	defaultBaseURL          = "https://api.openai.com/v1"
	chatCompletionsEndpoint = "/chat/completions"
	defaultProviderName     = "openai"
)

// OpenAIProvider talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ ai.StreamProvider = (*OpenAIProvider)(nil)

// New creates a provider seeded from OPENAI_API_KEY and OPENAI_API_BASE_URL.
// Both can be overridden with WithAPIKey and WithBaseURL.
func New() *OpenAIProvider {
	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &OpenAIProvider{
		name:    defaultProviderName,
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// WithName sets the vendor label reported in logs and spans (for example
// "openrouter" when the base URL points there).
func (p *OpenAIProvider) WithName(name string) *OpenAIProvider {
	if name != "" {
		p.name = name
	}
	return p
}

// Name returns the vendor label.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// WithAPIKey sets the API key for the provider
func (p *OpenAIProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for the API
func (p *OpenAIProvider) WithBaseURL(baseURL string) ai.Provider {
	if baseURL != "" {
		p.baseURL = baseURL
	}
	return p
}

// WithHttpClient sets a custom HTTP client
func (p *OpenAIProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// SendMessage implements the Provider interface
func (p *OpenAIProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	span := observability.SpanFromContext(ctx)
	observer := observability.ObserverFromContext(ctx)
	p.annotate(ctx, span, observer, request, false)

	if p.apiKey == "" {
		return nil, fmt.Errorf("API key is not set")
	}

	httpResponse, resp, err := utils.DoPostSync[chatCompletionResponse](ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey, requestToChatCompletion(request))
	if err != nil {
		if observer != nil {
			observer.Trace(ctx, "OpenAI HTTP request failed", observability.Error(err))
		}
		return nil, err
	}

	if resp == nil {
		return nil, fmt.Errorf("empty response from %s API: %s", p.name, httpResponse.Status)
	}

	response := chatCompletionToGeneric(*resp)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestEnd)
		span.SetAttributes(
			observability.String(observability.AttrLLMResponseID, response.Id),
			observability.String(observability.AttrLLMFinishReason, response.FinishReason),
		)
		if response.Usage != nil {
			span.SetAttributes(observability.Int(observability.AttrLLMTokensTotal, response.Usage.TotalTokens))
		}
	}
	if observer != nil {
		observer.Trace(ctx, "OpenAI response received",
			observability.String(observability.AttrLLMResponseID, response.Id),
			observability.Int(observability.AttrResponseLength, len(response.Content)),
		)
	}

	return response, nil
}

func (p *OpenAIProvider) annotate(ctx context.Context, span observability.Span, observer observability.Provider, request ai.ChatRequest, streaming bool) {
	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, p.name),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Bool(observability.AttrLLMStreaming, streaming),
		)
	}

	if observer != nil {
		observer.Trace(ctx, "OpenAI provider preparing request",
			observability.String(observability.AttrLLMProvider, p.name),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
			observability.Bool(observability.AttrLLMStreaming, streaming),
		)
	}
}
