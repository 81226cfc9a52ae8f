// Package llmjson decodes JSON out of generative-model replies. Models wrap
// payloads in Markdown code fences, prepend prose, or truncate output; callers
// attempt a strict decode here and fall back to deterministic local logic on
// any error instead of threading provider failures through business code.
package llmjson

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON signals that no JSON object could be located in the reply.
var ErrNoJSON = errors.New("no JSON object in model reply")

// Decode unmarshals the first JSON object found in raw into v.
// Accepts bare JSON, JSON inside ``` or ```json fences, and JSON surrounded
// by prose. Returns an error for anything that does not strictly decode.
func Decode(raw string, v any) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ErrNoJSON
	}

	if stripped, ok := stripFences(s); ok {
		s = stripped
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ErrNoJSON
	}

	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return err
	}
	return nil
}

// stripFences removes a Markdown code fence wrapper if present.
func stripFences(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return s, false
	}
	body := strings.TrimPrefix(s, "```")
	// Drop the info string (e.g. "json") up to the first newline.
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		first := strings.TrimSpace(body[:i])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}") {
			body = body[i+1:]
		}
	}
	if i := strings.LastIndex(body, "```"); i >= 0 {
		body = body[:i]
	}
	return strings.TrimSpace(body), true
}
