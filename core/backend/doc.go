// Package backend adapts the configured model provider to the shape the
// conversation orchestrator needs: a transcript and a system prompt in, a
// reply (or a stream of growing replies) out.
//
// Two variants exist. [OpenAI] serves every OpenAI-compatible vendor
// (openai, anthropic, openrouter) through providers/ai/openai. [Gemini]
// talks to providers/ai/gemini and carries the system prompt as the first
// user turn instead of a system instruction.
package backend
