package gemini

import (
	"fmt"
	"strings"
	"time"

	"github.com/leofalp/devchat/providers/ai"
)

// requestToGemini converts an ai.ChatRequest to a Gemini generateContentRequest.
func requestToGemini(request ai.ChatRequest) generateContentRequest {
	req := generateContentRequest{}

	if request.SystemPrompt != "" {
		req.SystemInstruction = &systemInstruction{
			Parts: []part{{Text: request.SystemPrompt}},
		}
	}

	req.Contents = buildContents(request.Messages)
	req.GenerationConfig = buildGenerationConfig(request.GenerationConfig)

	return req
}

// buildContents converts ai.Message slice to Gemini content slice.
// Role mapping: user -> user, assistant -> model; stray system messages are
// sent as user turns.
func buildContents(messages []ai.Message) []content {
	contents := make([]content, 0, len(messages))

	for _, msg := range messages {
		role := "user"
		if msg.Role == ai.RoleAssistant {
			role = "model"
		}

		c := content{Role: role}
		if len(msg.ContentParts) > 0 {
			c.Parts = contentPartsToGeminiParts(msg.ContentParts)
		} else {
			c.Parts = []part{{Text: msg.Content}}
		}
		contents = append(contents, c)
	}

	return contents
}

// contentPartsToGeminiParts maps text parts to {text} and images to {inlineData}.
func contentPartsToGeminiParts(contentParts []ai.ContentPart) []part {
	parts := make([]part, 0, len(contentParts))
	for _, contentPart := range contentParts {
		switch contentPart.Type {
		case ai.ContentTypeText:
			parts = append(parts, part{Text: contentPart.Text})
		case ai.ContentTypeImage:
			if contentPart.Image == nil {
				continue
			}
			parts = append(parts, part{InlineData: &inlineData{
				MimeType: contentPart.Image.MimeType,
				Data:     contentPart.Image.Data,
			}})
		}
	}
	return parts
}

func buildGenerationConfig(cfg *ai.GenerationConfig) *generationConfig {
	if cfg == nil {
		return nil
	}

	gc := &generationConfig{}
	if cfg.Temperature != nil {
		temperature := *cfg.Temperature
		gc.Temperature = &temperature
	}
	if cfg.MaxOutputTokens > 0 {
		maxTokens := cfg.MaxOutputTokens
		gc.MaxOutputTokens = &maxTokens
	}

	if gc.Temperature == nil && gc.MaxOutputTokens == nil {
		return nil
	}
	return gc
}

// geminiToGeneric converts a Gemini response to ai.ChatResponse. Text parts of
// the first candidate are concatenated; thought parts are dropped.
func geminiToGeneric(resp generateContentResponse) *ai.ChatResponse {
	result := &ai.ChatResponse{
		Id:    resp.ResponseID,
		Model: resp.ModelVersion,
	}
	if result.Id == "" {
		result.Id = fmt.Sprintf("gemini-%d", time.Now().UnixNano())
	}

	if resp.UsageMetadata != nil {
		result.Usage = mapUsage(resp.UsageMetadata)
	}

	if len(resp.Candidates) == 0 {
		result.FinishReason = "error"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			result.FinishReason = "content_filter"
		}
		return result
	}

	candidate := resp.Candidates[0]
	result.FinishReason = mapFinishReason(candidate.FinishReason)
	result.Content = candidateText(candidate)

	return result
}

func candidateText(c candidate) string {
	if c.Content == nil {
		return ""
	}
	var text strings.Builder
	for _, p := range c.Content.Parts {
		if p.Text != "" && !p.Thought {
			text.WriteString(p.Text)
		}
	}
	return text.String()
}

func mapUsage(u *usageMetadata) *ai.Usage {
	return &ai.Usage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount,
		TotalTokens:      u.TotalTokenCount,
	}
}

// mapFinishReason converts Gemini finish reason to ai.ChatResponse finish reason.
func mapFinishReason(geminiReason string) string {
	switch geminiReason {
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION":
		return "content_filter"
	default:
		return "stop"
	}
}
