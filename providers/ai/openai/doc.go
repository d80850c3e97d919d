// Package openai implements [ai.Provider] and [ai.StreamProvider] for
// OpenAI-compatible /chat/completions endpoints. The same client serves
// OpenAI itself and compatible gateways such as OpenRouter; point it at them
// with [OpenAIProvider.WithBaseURL] and label it with [OpenAIProvider.WithName].
//
// User messages with multi-part content are sent as content arrays: text parts
// as {"type":"text"} and inline images as {"type":"image_url"} data URLs.
package openai
