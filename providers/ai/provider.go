package ai

import (
	"context"
	"net/http"
)

// StreamProvider is an optional interface for providers that support
// SSE-based streaming. Callers detect it via type assertion and fall back to
// SendMessage wrapped in NewSingleEventStream otherwise.
type StreamProvider interface {
	Provider
	// StreamMessage returns a ChatStream yielding incremental deltas. Pre-stream
	// errors (auth, bad request, network) are returned directly; mid-stream
	// errors are yielded through the iterator.
	StreamMessage(ctx context.Context, request ChatRequest) (*ChatStream, error)
}

// Provider is the interface every LLM vendor client satisfies.
type Provider interface {
	// SendMessage sends a chat request and returns the completed response.
	SendMessage(ctx context.Context, request ChatRequest) (*ChatResponse, error)

	// WithAPIKey sets the API key used for authenticating requests.
	WithAPIKey(apiKey string) Provider

	// WithBaseURL overrides the default base URL for API requests.
	WithBaseURL(baseURL string) Provider

	// WithHttpClient sets the HTTP client used for outbound requests.
	WithHttpClient(httpClient *http.Client) Provider
}
