package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/leofalp/devchat/internal/utils"
	"github.com/leofalp/devchat/providers/ai"
	"github.com/leofalp/devchat/providers/observability"
)

// StreamMessage implements ai.StreamProvider using streamGenerateContent with
// alt=sse. Each SSE event is a generateContentResponse whose text is the next
// increment of the reply, so it is emitted as-is as a content delta.
func (p *GeminiProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	span := observability.SpanFromContext(ctx)
	observer := observability.ObserverFromContext(ctx)

	model := modelOrDefault(request.Model)
	p.annotate(ctx, span, observer, request, model, true)

	if p.apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}

	streamURL := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", p.baseURL, model)

	httpResponse, err := utils.DoPostStream(
		ctx,
		p.client,
		streamURL,
		"",
		requestToGemini(request),
		utils.HeaderOption{Key: apiKeyHeader, Value: p.apiKey},
	)
	if err != nil {
		if observer != nil {
			observer.Trace(ctx, "Streaming HTTP request failed", observability.Error(err))
		}
		return nil, err
	}

	sseScanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer utils.CloseWithLog(httpResponse.Body)

		for {
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ctx.Err())
				return
			}

			payload, sseErr := sseScanner.Next()
			if sseErr == io.EOF {
				return
			}
			if sseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("SSE read error: %w", sseErr))
				return
			}

			var chunk generateContentResponse
			if parseErr := json.Unmarshal([]byte(payload), &chunk); parseErr != nil {
				yield(ai.StreamEvent{}, fmt.Errorf("failed to parse Gemini streaming chunk: %w", parseErr))
				return
			}

			for _, event := range chunkToStreamEvents(&chunk) {
				if span != nil && event.Type == ai.StreamEventContent {
					span.AddEvent(observability.EventTokensReceived)
				}
				if !yield(event, nil) {
					return
				}
			}
		}
	}

	return ai.NewChatStream(iteratorFunc), nil
}

// chunkToStreamEvents converts one streamed generateContentResponse into
// content, usage and done events, in that order.
func chunkToStreamEvents(chunk *generateContentResponse) []ai.StreamEvent {
	var events []ai.StreamEvent

	if len(chunk.Candidates) > 0 {
		if text := candidateText(chunk.Candidates[0]); text != "" {
			events = append(events, ai.StreamEvent{Type: ai.StreamEventContent, Content: text})
		}
	}

	if chunk.UsageMetadata != nil {
		events = append(events, ai.StreamEvent{Type: ai.StreamEventUsage, Usage: mapUsage(chunk.UsageMetadata)})
	}

	if len(chunk.Candidates) > 0 && chunk.Candidates[0].FinishReason != "" {
		events = append(events, ai.StreamEvent{
			Type:         ai.StreamEventDone,
			FinishReason: mapFinishReason(chunk.Candidates[0].FinishReason),
		})
	}

	return events
}
