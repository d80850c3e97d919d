// Package parse decodes JSON payloads received from external services,
// repairing slightly malformed documents with jsonrepair before giving up.
// File-tree sources use [ParseStringAs] / [ParseBytesAs] so that a service
// emitting trailing commas or a truncated body still yields a usable tree.
package parse
