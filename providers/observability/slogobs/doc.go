// Package slogobs implements observability.Provider on top of log/slog.
// Spans, metric updates and log calls all become slog records, written by
// [Handler] in either the compact single-line format or JSON.
package slogobs
