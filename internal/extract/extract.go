// Package extract recovers the JSON portfolio document from a model's final
// answer.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Payload is a decoded JSON object.
type Payload map[string]any

// ExtractionError reports that no JSON object could be recovered.
type ExtractionError struct {
	Text string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract json payload: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

var (
	errEmpty     = errors.New("empty text")
	errNotObject = errors.New("payload is not a json object")
)

const fence = "```"

// Extract parses the fenced ```json block of text, or the whole text when
// it has no fence. Failed parses are retried after the repairs and, last,
// on the first balanced {...} slice.
func Extract(text string) (Payload, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ExtractionError{Text: text, Err: errEmpty}
	}

	var candidates []string
	if body, ok := FencedBlock(text); ok {
		candidates = append(candidates, body)
	} else {
		candidates = append(candidates, strings.TrimSpace(text))
	}
	// Prefer an object that starts inside the first fence over braces in
	// the prose before it.
	if open := strings.Index(text, fence); open != -1 {
		if obj, ok := balancedObject(text[open:]); ok {
			candidates = appendCandidate(candidates, obj)
		}
	}
	if obj, ok := balancedObject(text); ok {
		candidates = appendCandidate(candidates, obj)
	}

	var lastErr error
	for _, c := range candidates {
		p, err := parseWithRepairs(c)
		if err == nil {
			return p, nil
		}
		lastErr = err
	}
	return nil, &ExtractionError{Text: text, Err: lastErr}
}

// FencedBlock returns the body of the first ```json fence, or of a bare
// ``` fence whose body starts with '{'.
func FencedBlock(text string) (string, bool) {
	rest := text
	for {
		open := strings.Index(rest, fence)
		if open == -1 {
			return "", false
		}
		after := rest[open+len(fence):]

		lineEnd := strings.IndexAny(after, "\r\n")
		if lineEnd == -1 {
			lineEnd = len(after)
		}
		tag := strings.TrimSpace(after[:lineEnd])
		body := after

		switch {
		case strings.EqualFold(tag, "json"):
			body = after[lineEnd:]
		case tag == "" || strings.HasPrefix(tag, "{"):
		default:
			// Some other language; skip past its closing fence.
			if end := strings.Index(after[lineEnd:], fence); end != -1 {
				rest = after[lineEnd+end+len(fence):]
				continue
			}
			return "", false
		}

		if obj, ok := objectBeforeFence(body); ok {
			return obj, true
		}
		end := strings.Index(body, fence)
		if end == -1 {
			return "", false
		}
		content := strings.TrimSpace(body[:end])
		if strings.EqualFold(tag, "json") || strings.HasPrefix(content, "{") {
			return content, true
		}
		rest = body[end+len(fence):]
	}
}

// objectBeforeFence returns the balanced object at the start of body when
// only whitespace separates it from a closing fence, so fences inside
// string values do not end the block early.
func objectBeforeFence(body string) (string, bool) {
	trimmed := strings.TrimLeft(body, " \t\r\n")
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}
	obj, ok := balancedObject(trimmed)
	if !ok {
		return "", false
	}
	if !strings.HasPrefix(strings.TrimLeft(trimmed[len(obj):], " \t\r\n"), fence) {
		return "", false
	}
	return obj, true
}

func appendCandidate(candidates []string, c string) []string {
	for _, existing := range candidates {
		if existing == c {
			return candidates
		}
	}
	return append(candidates, c)
}

func parseWithRepairs(text string) (Payload, error) {
	p, err := parse(text)
	if err == nil {
		return p, nil
	}
	firstErr := err

	repaired := text
	for _, r := range Repairs {
		repaired = r.Apply(repaired)
		if p, err := parse(repaired); err == nil {
			return p, nil
		}
	}
	return nil, firstErr
}

func parse(text string) (Payload, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return Payload(obj), nil
}
