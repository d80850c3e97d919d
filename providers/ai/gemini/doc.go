// Package gemini implements [ai.Provider] and [ai.StreamProvider] for Google's
// Gemini generative language API.
//
// Requests are converted from [ai.ChatRequest] to the generateContent wire
// format: user turns keep the "user" role, assistant turns become "model",
// text parts map to {"text"} and images to {"inlineData"}. Streaming uses
// streamGenerateContent?alt=sse. Authentication is the x-goog-api-key header.
//
// [New] reads GEMINI_API_KEY and GEMINI_API_BASE_URL from the environment;
// [GeminiProvider.WithAPIKey], [GeminiProvider.WithBaseURL] and
// [GeminiProvider.WithHttpClient] override them.
package gemini
