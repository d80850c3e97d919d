package chat

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leofalp/devchat/core/backend"
	"github.com/leofalp/devchat/internal/utils"
	"github.com/leofalp/devchat/providers/filetree"
	"github.com/leofalp/devchat/providers/memory"
	"github.com/leofalp/devchat/providers/observability"
)

//go:embed prompt.txt
var defaultPrompt string

const contextHeader = "\n\nCurrent codebase structure and content:\n"

// EventType tags the items of SendMessageStream.
type EventType string

const (
	EventUser      EventType = "user"
	EventAssistant EventType = "assistant"
	EventDone      EventType = "done"
)

// Event is one item of a streamed turn. For EventAssistant the message
// content is the reply accumulated so far; EventDone carries the final,
// stored assistant message.
type Event struct {
	Type    EventType      `json:"type"`
	Message memory.Message `json:"data"`
}

// Result is the outcome of SendMessage.
type Result struct {
	UserMessage      memory.Message `json:"userMessage"`
	AssistantMessage memory.Message `json:"assistantMessage"`
}

// Service runs conversation turns against a Backend, keeping one session
// per container in a memory.Store.
type Service struct {
	backend  backend.Backend
	store    memory.Store
	files    filetree.Source
	observer observability.Provider
	now      func() time.Time
	prompt   string
}

// Option configures a Service.
type Option func(*Service)

// WithObserver enables tracing, metrics and logs for every turn.
func WithObserver(observer observability.Provider) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

// WithClock replaces time.Now for message ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithPrompt replaces the built-in instructions that precede the project
// context in the system prompt.
func WithPrompt(prompt string) Option {
	return func(s *Service) {
		s.prompt = prompt
	}
}

// New returns a Service. All three dependencies are required.
func New(b backend.Backend, store memory.Store, files filetree.Source, opts ...Option) *Service {
	s := &Service{
		backend: b,
		store:   store,
		files:   files,
		now:     time.Now,
		prompt:  defaultPrompt,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendMessage appends text as a user turn to the container's session, asks
// the backend for a reply and appends that too. When a step fails the user
// turn stays in the transcript. The session is not evicted while the turn
// runs.
func (s *Service) SendMessage(ctx context.Context, containerID, text string, attachments []memory.Attachment) (*Result, error) {
	ctx, t := s.startTurn(ctx, observability.SpanChatSendMessage, containerID, attachments)

	session := s.store.GetOrCreate(ctx, containerID)
	session.BeginTurn()
	defer session.EndTurn()
	t.setSession(session)

	userMsg := memory.NewUserMessage(text, attachments, s.now())
	session.Append(userMsg)

	systemPrompt, err := s.systemPrompt(ctx, containerID)
	if err != nil {
		t.fail(ctx, err, "fetch file tree failed")
		return nil, err
	}

	reply, err := s.backend.Complete(ctx, session.Messages(), systemPrompt)
	if err != nil {
		t.fail(ctx, err, "completion failed")
		return nil, err
	}

	now := s.now()
	assistantMsg := memory.NewAssistantMessage(reply, now)
	session.Append(assistantMsg)
	session.Touch(now)

	t.succeed(ctx, session, assistantMsg)
	return &Result{UserMessage: userMsg, AssistantMessage: assistantMsg}, nil
}

// SendMessageStream is the streaming form of SendMessage. Nothing happens
// until the sequence is ranged over. It yields the user message, then the
// growing reply under a single assistant id, then EventDone once the reply
// has been stored. An error is yielded once and ends the sequence; if the
// caller stops early the reply is not stored.
//
//	for event, err := range svc.SendMessageStream(ctx, "c1", "add a button", nil) {
//	    if err != nil { return err }
//	    fmt.Println(event.Type, event.Message.Content)
//	}
func (s *Service) SendMessageStream(ctx context.Context, containerID, text string, attachments []memory.Attachment) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		ctx, t := s.startTurn(ctx, observability.SpanChatStream, containerID, attachments)

		session := s.store.GetOrCreate(ctx, containerID)
		session.BeginTurn()
		defer session.EndTurn()
		t.setSession(session)

		userMsg := memory.NewUserMessage(text, attachments, s.now())
		session.Append(userMsg)
		if !yield(Event{Type: EventUser, Message: userMsg}, nil) {
			t.abandon(ctx)
			return
		}

		systemPrompt, err := s.systemPrompt(ctx, containerID)
		if err != nil {
			t.fail(ctx, err, "fetch file tree failed")
			yield(Event{}, err)
			return
		}

		assistantID := memory.NewAssistantMessage("", s.now()).ID
		content := ""
		for accumulated, err := range s.backend.Stream(ctx, session.Messages(), systemPrompt) {
			if err != nil {
				t.fail(ctx, err, "completion stream failed")
				yield(Event{}, err)
				return
			}
			content = accumulated

			partial := memory.NewAssistantMessage(accumulated, s.now())
			partial.ID = assistantID
			if !yield(Event{Type: EventAssistant, Message: partial}, nil) {
				t.abandon(ctx)
				return
			}
		}

		if content == "" {
			content = backend.FallbackReply
		}

		now := s.now()
		assistantMsg := memory.NewAssistantMessage(content, now)
		assistantMsg.ID = assistantID
		session.Append(assistantMsg)
		session.Touch(now)

		t.succeed(ctx, session, assistantMsg)
		yield(Event{Type: EventDone, Message: assistantMsg}, nil)
	}
}

// Session returns a copy of the container's session, if one exists.
func (s *Service) Session(ctx context.Context, containerID string) (memory.SessionSnapshot, bool) {
	session, ok := s.store.Lookup(ctx, containerID)
	if !ok {
		return memory.SessionSnapshot{}, false
	}
	return session.Snapshot(), true
}

// Reset forgets the container's conversation.
func (s *Service) Reset(ctx context.Context, containerID string) bool {
	return s.store.Delete(ctx, containerID)
}

// systemPrompt fetches the project tree and appends it, pretty-printed, to
// the instructions. The tree is fetched on every turn.
func (s *Service) systemPrompt(ctx context.Context, containerID string) (string, error) {
	tree, err := s.files.FileContentTree(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("fetch file tree for %s: %w", containerID, err)
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(tree); err != nil {
		return "", fmt.Errorf("encode file tree: %w", err)
	}
	codeContext := strings.TrimSuffix(buf.String(), "\n")

	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventContextFetched,
			observability.Int(observability.AttrContextSize, len(codeContext)),
		)
	}

	return s.prompt + contextHeader + codeContext, nil
}

// turn carries the observation state of one call. All methods are no-ops
// without an observer.
type turn struct {
	observer    observability.Provider
	span        observability.Span
	timer       *utils.Timer
	requestID   string
	containerID string
	provider    string
}

func (s *Service) startTurn(ctx context.Context, spanName, containerID string, attachments []memory.Attachment) (context.Context, *turn) {
	t := &turn{
		observer:    s.observer,
		timer:       utils.NewTimer(),
		requestID:   uuid.NewString(),
		containerID: containerID,
		provider:    s.backend.Name(),
	}
	if t.observer == nil {
		return ctx, t
	}

	ctx = observability.ContextWithObserver(ctx, t.observer)
	ctx, t.span = t.observer.StartSpan(ctx, spanName,
		observability.String(observability.AttrRequestID, t.requestID),
		observability.String(observability.AttrContainerID, containerID),
		observability.String(observability.AttrLLMProvider, t.provider),
		observability.Int(observability.AttrRequestAttachmentsCount, len(attachments)),
	)

	t.observer.Debug(ctx, "Turn started",
		observability.String(observability.AttrRequestID, t.requestID),
		observability.String(observability.AttrContainerID, containerID),
	)
	return ctx, t
}

func (t *turn) setSession(session *memory.Session) {
	if t.span == nil {
		return
	}
	t.span.SetAttributes(
		observability.String(observability.AttrSessionID, session.ID),
		observability.Int(observability.AttrRequestMessagesCount, session.Len()),
	)
}

func (t *turn) fail(ctx context.Context, err error, description string) {
	t.timer.Stop()
	if t.observer == nil {
		return
	}

	t.span.RecordError(err)
	t.span.SetStatus(observability.StatusError, description)
	t.span.End()

	t.observer.Error(ctx, "Turn failed",
		observability.Error(err),
		observability.String(observability.AttrRequestID, t.requestID),
		observability.String(observability.AttrContainerID, t.containerID),
		observability.Duration(observability.AttrDuration, t.timer.Duration()),
	)
	t.observer.Counter(observability.MetricTurnErrors).Add(ctx, 1,
		observability.String(observability.AttrLLMProvider, t.provider),
	)
	t.observer.Counter(observability.MetricTurnCount).Add(ctx, 1,
		observability.String(observability.AttrStatus, "error"),
	)
}

func (t *turn) abandon(ctx context.Context) {
	t.timer.Stop()
	if t.observer == nil {
		return
	}

	t.span.SetStatus(observability.StatusOK, "stream abandoned")
	t.span.End()

	t.observer.Info(ctx, "Turn abandoned by caller",
		observability.String(observability.AttrRequestID, t.requestID),
		observability.Duration(observability.AttrDuration, t.timer.Duration()),
	)
}

func (t *turn) succeed(ctx context.Context, session *memory.Session, reply memory.Message) {
	t.timer.Stop()
	if t.observer == nil {
		return
	}

	fallback := reply.Content == backend.FallbackReply
	t.span.SetAttributes(
		observability.Int(observability.AttrResponseLength, len(reply.Content)),
		observability.Bool(observability.AttrResponseFallback, fallback),
		observability.Int(observability.AttrSessionMessages, session.Len()),
	)
	t.span.SetStatus(observability.StatusOK, "")
	t.span.End()

	t.observer.Info(ctx, "Turn completed",
		observability.String(observability.AttrRequestID, t.requestID),
		observability.String(observability.AttrContainerID, t.containerID),
		observability.Duration(observability.AttrDuration, t.timer.Duration()),
		observability.Bool(observability.AttrResponseFallback, fallback),
	)
	t.observer.Counter(observability.MetricTurnCount).Add(ctx, 1,
		observability.String(observability.AttrStatus, "ok"),
	)
	t.observer.Histogram(observability.MetricTurnDuration).Record(ctx, t.timer.Duration().Seconds(),
		observability.String(observability.AttrLLMProvider, t.provider),
	)
}
