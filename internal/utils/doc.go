// Package utils provides the low-level helpers shared by the provider clients
// and the file-tree sources: JSON-over-HTTP round-trips ([DoPostSync],
// [DoGetSync]), Server-Sent Events streaming ([DoPostStream], [SSEScanner]),
// [Ptr] and a small [Timer] used to measure turn latency.
package utils
