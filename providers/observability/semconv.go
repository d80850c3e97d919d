package observability

// --- LLM Provider Attributes ---

const (
	// AttrLLMProvider is the configured provider name (e.g., "openai", "gemini")
	AttrLLMProvider = "llm.provider"

	// AttrLLMModel is the model identifier
	AttrLLMModel = "llm.model"

	// AttrLLMEndpoint is the API endpoint URL
	AttrLLMEndpoint = "llm.endpoint"

	// AttrLLMResponseID is the unique response identifier from the provider
	AttrLLMResponseID = "llm.response.id"

	// AttrLLMFinishReason is the reason the generation finished
	AttrLLMFinishReason = "llm.finish_reason"

	// AttrLLMStreaming is true for streamed requests
	AttrLLMStreaming = "llm.streaming"

	// AttrLLMTokensTotal is the total number of tokens
	AttrLLMTokensTotal = "llm.tokens.total" // #nosec G101 -- Not a credential, token refers to LLM tokens
)

// --- Request/Response Attributes ---

const (
	// AttrRequestID identifies one SendMessage / SendMessageStream call
	AttrRequestID = "request.id"

	// AttrRequestMessagesCount is the number of messages in the request
	AttrRequestMessagesCount = "request.messages_count"

	// AttrRequestAttachmentsCount is the number of attachments on the user turn
	AttrRequestAttachmentsCount = "request.attachments_count"

	// AttrResponseLength is the length of the assistant reply
	AttrResponseLength = "response.length"

	// AttrResponseFallback is true when the fallback reply was substituted
	AttrResponseFallback = "response.fallback"
)

// --- Conversation Attributes ---

const (
	// AttrContainerID is the development container a conversation belongs to
	AttrContainerID = "chat.container_id"

	// AttrSessionID is the chat session identifier
	AttrSessionID = "chat.session_id"

	// AttrSessionMessages is the transcript length after a turn
	AttrSessionMessages = "chat.session.messages"

	// AttrContextSize is the byte size of the serialized file tree
	AttrContextSize = "chat.context.size"
)

// --- HTTP Attributes ---

const (
	AttrHTTPMethod           = "http.method"
	AttrHTTPStatusCode       = "http.status_code"
	AttrHTTPURL              = "http.url"
	AttrHTTPRequestBodySize  = "http.request.body.size"
	AttrHTTPResponseBodySize = "http.response.body.size"
)

// --- General Attributes ---

const (
	AttrError             = "error"
	AttrDuration          = "duration"
	AttrStatus            = "status"
	AttrStatusDescription = "status_description"
)

// --- Span Names ---

const (
	SpanChatSendMessage = "chat.send_message"
	SpanChatStream      = "chat.send_message_stream"
)

// --- Event Names ---

const (
	EventLLMRequestStart = "llm.request.start"
	EventLLMRequestEnd   = "llm.request.end"
	EventTokensReceived  = "llm.tokens.received" // #nosec G101 -- Not a credential, token refers to LLM tokens
	EventContextFetched  = "chat.context.fetched"
	EventSessionCreated  = "chat.session.created"
	EventSessionEvicted  = "chat.session.evicted"
)

// --- Metric Names ---

const (
	MetricTurnCount    = "devchat.turn.count"
	MetricTurnDuration = "devchat.turn.duration"
	MetricTurnErrors   = "devchat.turn.errors"
)
