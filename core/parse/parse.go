package parse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseStringAs decodes a JSON payload into T. Payloads that are not valid
// JSON (trailing commas, single quotes, unquoted keys, truncated output, a
// markdown code fence around the document) are repaired with jsonrepair and
// decoded again.
//
//	tree, err := ParseStringAs[any](`{"name": "app", "children": [],}`)
//
// An empty payload is an error.
func ParseStringAs[T any](content string) (T, error) {
	var result T

	trimmed := stripCodeFence(strings.TrimSpace(strings.TrimPrefix(content, "\uFEFF")))
	if trimmed == "" {
		return result, fmt.Errorf("empty JSON payload")
	}

	err := json.Unmarshal([]byte(trimmed), &result)
	if err == nil {
		return result, nil
	}

	repairedJSON, repairErr := jsonrepair.JSONRepair(trimmed)
	if repairErr != nil {
		return result, fmt.Errorf("failed to unmarshal content as %T and failed to repair JSON: unmarshal error: %w, repair error: %v", result, err, repairErr)
	}

	var repaired T
	if err := json.Unmarshal([]byte(repairedJSON), &repaired); err != nil {
		return result, fmt.Errorf("failed to unmarshal repaired JSON as %T: %w", result, err)
	}
	return repaired, nil
}

// ParseBytesAs is ParseStringAs for a raw body.
func ParseBytesAs[T any](content []byte) (T, error) {
	return ParseStringAs[T](string(content))
}

// stripCodeFence removes a surrounding ```json ... ``` fence.
func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	body := strings.TrimPrefix(content, "```")
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		body = body[newline+1:]
	} else {
		return content
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}
