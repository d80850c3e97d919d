package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leofalp/devchat/core/attachment"
	"github.com/leofalp/devchat/core/config"
	"github.com/leofalp/devchat/providers/ai"
	"github.com/leofalp/devchat/providers/memory"
)

// fakeProvider records requests and answers synchronously.
type fakeProvider struct {
	requests []ai.ChatRequest
	response *ai.ChatResponse
	err      error
}

func (f *fakeProvider) SendMessage(_ context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	f.requests = append(f.requests, request)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeProvider) WithAPIKey(string) ai.Provider { return f }

func (f *fakeProvider) WithBaseURL(string) ai.Provider { return f }

func (f *fakeProvider) WithHttpClient(*http.Client) ai.Provider { return f }

// fakeStreamProvider emits deltas as content events.
type fakeStreamProvider struct {
	fakeProvider
	deltas    []string
	streamErr error
}

func (f *fakeStreamProvider) StreamMessage(_ context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	f.requests = append(f.requests, request)
	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		for _, delta := range f.deltas {
			if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: delta}, nil) {
				return
			}
		}
		if f.streamErr != nil {
			yield(ai.StreamEvent{}, f.streamErr)
			return
		}
		yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: "stop"}, nil)
	}), nil
}

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func transcript(msgs ...memory.Message) []memory.Message {
	return msgs
}

func collect(t *testing.T, b Backend, msgs []memory.Message) ([]string, error) {
	t.Helper()
	var out []string
	for text, err := range b.Stream(context.Background(), msgs, "prompt") {
		if err != nil {
			return out, err
		}
		out = append(out, text)
	}
	return out, nil
}

func TestNew_Routing(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.AI
		wantName string
		wantErr  error
	}{
		{name: "empty defaults to openai", cfg: config.AI{APIKey: "k"}, wantName: "openai"},
		{name: "openai", cfg: config.AI{Provider: "openai", APIKey: "k"}, wantName: "openai"},
		{name: "anthropic uses openai client", cfg: config.AI{Provider: "anthropic", APIKey: "k"}, wantName: "anthropic"},
		{name: "openrouter uses openai client", cfg: config.AI{Provider: "OpenRouter", APIKey: "k"}, wantName: "openrouter"},
		{name: "gemini", cfg: config.AI{Provider: "gemini", APIKey: "k"}, wantName: "gemini"},
		{name: "gemini without key", cfg: config.AI{Provider: "gemini"}, wantErr: ErrMissingAPIKey},
		{name: "unknown", cfg: config.AI{Provider: "cohere", APIKey: "k"}, wantErr: ErrUnsupportedProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b.Name() != tt.wantName {
				t.Errorf("expected name %q, got %q", tt.wantName, b.Name())
			}
		})
	}
}

func TestClientNotInitialized(t *testing.T) {
	backends := []Backend{
		NewOpenAI(nil, "openai", "", 0.7),
		NewGemini(nil, "", 0),
	}
	msgs := transcript(memory.NewUserMessage("hi", nil, testNow))

	for _, b := range backends {
		if _, err := b.Complete(context.Background(), msgs, "prompt"); !errors.Is(err, ErrClientNotInitialized) {
			t.Errorf("%s Complete: expected ErrClientNotInitialized, got %v", b.Name(), err)
		}
		if _, err := collect(t, b, msgs); !errors.Is(err, ErrClientNotInitialized) {
			t.Errorf("%s Stream: expected ErrClientNotInitialized, got %v", b.Name(), err)
		}
	}
}

func TestOpenAI_RequestShape(t *testing.T) {
	doc := base64.StdEncoding.EncodeToString([]byte("# Notes"))
	fake := &fakeProvider{response: &ai.ChatResponse{Content: "Sure, adding it."}}
	b := NewOpenAI(fake, "openrouter", "anthropic/claude-sonnet-4", 0.3)

	msgs := transcript(
		memory.NewUserMessage("first", nil, testNow),
		memory.NewAssistantMessage("ok", testNow),
		memory.NewUserMessage("add a button", []memory.Attachment{
			{Type: memory.AttachmentImage, Data: "aGk=", Name: "shot.png", MimeType: "image/png"},
			{Type: memory.AttachmentDocument, Data: doc, Name: "notes.md", MimeType: "text/markdown"},
		}, testNow),
	)

	reply, err := b.Complete(context.Background(), msgs, "system text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Sure, adding it." {
		t.Errorf("unexpected reply %q", reply)
	}

	req := fake.requests[0]
	if req.SystemPrompt != "system text" || req.Model != "anthropic/claude-sonnet-4" {
		t.Errorf("unexpected request header fields %+v", req)
	}
	if req.GenerationConfig == nil || req.GenerationConfig.Temperature == nil || *req.GenerationConfig.Temperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %+v", req.GenerationConfig)
	}
	if len(req.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(req.Messages))
	}
	if req.Messages[0].ContentParts != nil || req.Messages[1].Role != ai.RoleAssistant {
		t.Errorf("expected plain history messages, got %+v", req.Messages[:2])
	}
	parts := req.Messages[2].ContentParts
	if len(parts) != 3 || parts[0].Text != "add a button" || parts[1].Image == nil {
		t.Fatalf("unexpected parts %+v", parts)
	}
	if parts[2].Text != "\n\nDocument \"notes.md\" content:\n# Notes" {
		t.Errorf("unexpected document part %q", parts[2].Text)
	}
}

func TestGemini_RequestShape(t *testing.T) {
	fake := &fakeProvider{response: &ai.ChatResponse{Content: "done"}}
	b := NewGemini(fake, "", 0)

	msgs := transcript(
		memory.NewUserMessage("first", nil, testNow),
		memory.NewAssistantMessage("ok", testNow),
		memory.NewUserMessage("look", []memory.Attachment{
			{Type: memory.AttachmentImage, Data: "aGk=", Name: "shot.png", MimeType: "image/png"},
		}, testNow),
	)

	if _, err := b.Complete(context.Background(), msgs, "system text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := fake.requests[0]
	if req.SystemPrompt != "" {
		t.Errorf("expected no system prompt field, got %q", req.SystemPrompt)
	}
	if len(req.Messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != ai.RoleUser || req.Messages[0].Content != "system text" {
		t.Errorf("unexpected system turn %+v", req.Messages[0])
	}
	if req.Messages[1].Role != ai.RoleAssistant || req.Messages[1].Content != GeminiAcknowledgement {
		t.Errorf("unexpected acknowledgement %+v", req.Messages[1])
	}
	if len(req.Messages[4].ContentParts) != 2 {
		t.Errorf("expected newest turn expanded, got %+v", req.Messages[4])
	}
	cfg := req.GenerationConfig
	if cfg == nil || *cfg.Temperature != 0.7 || cfg.MaxOutputTokens != 8192 {
		t.Errorf("unexpected generation config %+v", cfg)
	}
}

func TestComplete_Fallback(t *testing.T) {
	fake := &fakeProvider{response: &ai.ChatResponse{Content: "", FinishReason: "stop"}}
	reply, err := NewOpenAI(fake, "openai", "", 0.7).Complete(context.Background(),
		transcript(memory.NewUserMessage("hi", nil, testNow)), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != FallbackReply {
		t.Errorf("expected fallback, got %q", reply)
	}
}

func TestComplete_ProviderErrorPassesThrough(t *testing.T) {
	upstream := errors.New("upstream down")
	fake := &fakeProvider{err: upstream}
	_, err := NewGemini(fake, "", 0).Complete(context.Background(),
		transcript(memory.NewUserMessage("hi", nil, testNow)), "prompt")
	if !errors.Is(err, upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestComplete_BadAttachment(t *testing.T) {
	fake := &fakeProvider{response: &ai.ChatResponse{Content: "x"}}
	msgs := transcript(memory.NewUserMessage("hi", []memory.Attachment{
		{Type: memory.AttachmentDocument, Data: "%%%", Name: "bad.txt"},
	}, testNow))

	_, err := NewOpenAI(fake, "openai", "", 0.7).Complete(context.Background(), msgs, "prompt")
	if !errors.Is(err, attachment.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
	if len(fake.requests) != 0 {
		t.Error("expected no provider call")
	}
}

func TestStream_Cumulative(t *testing.T) {
	fake := &fakeStreamProvider{deltas: []string{"Hel", "", "lo"}}
	texts, err := collect(t, NewOpenAI(fake, "openai", "", 0.7), transcript(memory.NewUserMessage("hi", nil, testNow)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(texts, "|") != "Hel|Hello" {
		t.Errorf("unexpected texts %v", texts)
	}
}

func TestStream_Lazy(t *testing.T) {
	fake := &fakeStreamProvider{deltas: []string{"a"}}
	b := NewOpenAI(fake, "openai", "", 0.7)

	seq := b.Stream(context.Background(), transcript(memory.NewUserMessage("hi", nil, testNow)), "prompt")
	if len(fake.requests) != 0 {
		t.Fatal("expected no request before iteration")
	}
	for range seq {
	}
	if len(fake.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(fake.requests))
	}
}

func TestStream_EarlyBreak(t *testing.T) {
	fake := &fakeStreamProvider{deltas: []string{"a", "b", "c"}}
	b := NewGemini(fake, "", 0)

	var seen []string
	for text, err := range b.Stream(context.Background(), transcript(memory.NewUserMessage("hi", nil, testNow)), "prompt") {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen = append(seen, text)
		break
	}
	if len(seen) != 1 || seen[0] != "a" {
		t.Errorf("unexpected texts %v", seen)
	}
}

func TestStream_MidStreamError(t *testing.T) {
	boom := errors.New("connection reset")
	fake := &fakeStreamProvider{deltas: []string{"par"}, streamErr: boom}

	texts, err := collect(t, NewOpenAI(fake, "openai", "", 0.7), transcript(memory.NewUserMessage("hi", nil, testNow)))
	if !errors.Is(err, boom) {
		t.Fatalf("expected stream error, got %v", err)
	}
	if len(texts) != 1 || texts[0] != "par" {
		t.Errorf("expected partial text before error, got %v", texts)
	}
}

func TestStream_NonStreamingProviderFallsBack(t *testing.T) {
	fake := &fakeProvider{response: &ai.ChatResponse{Content: "whole reply"}}
	texts, err := collect(t, NewOpenAI(fake, "openai", "", 0.7), transcript(memory.NewUserMessage("hi", nil, testNow)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(texts) != 1 || texts[0] != "whole reply" {
		t.Errorf("expected single event, got %v", texts)
	}
}

func TestNew_OpenAIEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer or-key" {
			t.Errorf("unexpected auth %q", r.Header.Get("Authorization"))
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["model"] != "openai/gpt-4o" {
			t.Errorf("unexpected model %v", body["model"])
		}
		if body["temperature"] != 0.7 {
			t.Errorf("expected temperature 0.7 on the wire, got %v", body["temperature"])
		}
		messages, _ := body["messages"].([]any)
		if len(messages) != 2 {
			t.Errorf("expected system + user message, got %d", len(messages))
		}

		if body["stream"] == true {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hel\"}}]}\n\n")
			fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"lo\"}}]}\n\n")
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"x","model":"openai/gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"Sure, adding it."},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	b, err := New(config.AI{Provider: "openrouter", BaseURL: server.URL, APIKey: "or-key", Model: "openai/gpt-4o", Temperature: 0.7},
		WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := transcript(memory.NewUserMessage("add a button", nil, testNow))

	reply, err := b.Complete(context.Background(), msgs, "prompt")
	if err != nil || reply != "Sure, adding it." {
		t.Fatalf("Complete = %q, %v", reply, err)
	}

	texts, err := collect(t, b, msgs)
	if err != nil || strings.Join(texts, "|") != "Hel|Hello" {
		t.Fatalf("Stream = %v, %v", texts, err)
	}
}

func TestNew_GeminiEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "g-key" {
			t.Errorf("unexpected key header %q", r.Header.Get("x-goog-api-key"))
		}
		if r.URL.Path != "/models/gemini-1.5-pro:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Contents []struct {
				Role string `json:"role"`
			} `json:"contents"`
			GenerationConfig map[string]any `json:"generationConfig"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.GenerationConfig["temperature"] != 0.7 {
			t.Errorf("expected temperature 0.7 on the wire, got %v", body.GenerationConfig["temperature"])
		}
		if len(body.Contents) != 3 || body.Contents[1].Role != "model" {
			t.Errorf("unexpected contents %+v", body.Contents)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Sure, adding it."}]},"finishReason":"STOP"}]}`)
	}))
	defer server.Close()
	t.Setenv("GEMINI_API_BASE_URL", server.URL)

	b, err := New(config.AI{Provider: "gemini", APIKey: "g-key"}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reply, err := b.Complete(context.Background(), transcript(memory.NewUserMessage("add a button", nil, testNow)), "prompt")
	if err != nil || reply != "Sure, adding it." {
		t.Fatalf("Complete = %q, %v", reply, err)
	}
}

func TestComplete_OpenAIKeepsReplyVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"    indented code\n"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	b, err := New(config.AI{Provider: "openai", BaseURL: server.URL, APIKey: "k"}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reply, err := b.Complete(context.Background(), transcript(memory.NewUserMessage("hi", nil, testNow)), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "    indented code\n" {
		t.Errorf("expected reply unchanged, got %q", reply)
	}
}
