// Package memory defines the conversation data model (Attachment, Message,
// Session) and the [Store] interface for the session registry.
//
// A Session's transcript is append-only; readers receive copies. The bundled
// implementation lives in [github.com/leofalp/devchat/providers/memory/inmemory].
package memory
