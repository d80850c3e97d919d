// Package ai defines the provider-agnostic request, response and stream types
// shared by the vendor clients in its subpackages. Each client maps these
// types to its own wire format.
//
// [Provider] covers synchronous completions and [StreamProvider] SSE
// streaming. Messages may carry multi-part content ([ContentPart]) so that
// inline images and inlined documents travel alongside the user's text.
package ai
