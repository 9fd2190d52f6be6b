package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// fencePattern matches markdown code-fence markers, with or without a
	// language tag. Models routinely wrap JSON output in these.
	fencePattern = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$|```")
	// arrayRecoveryPattern grabs the first bracketed span as a last resort
	// when the trimmed payload does not parse.
	arrayRecoveryPattern = regexp.MustCompile(`(?s)\[.*\]`)
)

// ExtractJSON recovers a JSON value from free-form model output. Stages:
// strip code fences, trim everything outside the outermost [/{ ... ]/} pair,
// parse, and on failure retry against the first [...] span. Returns nil when
// no stage yields valid JSON.
func ExtractJSON(content string) json.RawMessage {
	candidate := TrimToJSON(StripCodeFences(content))
	if candidate != "" && json.Valid([]byte(candidate)) {
		return json.RawMessage(candidate)
	}

	// Recovery: the payload may carry junk between two valid brackets
	// ("Here is your plan: [..] hope it helps"); retry on the first array span.
	if span := arrayRecoveryPattern.FindString(content); span != "" && json.Valid([]byte(span)) {
		return json.RawMessage(span)
	}

	return nil
}

// StripCodeFences removes markdown code-fence markers from model output.
func StripCodeFences(content string) string {
	return fencePattern.ReplaceAllString(content, "")
}

// TrimToJSON cuts everything before the first '['/'{' and after the last
// ']'/'}'. Returns "" when no JSON delimiters are present.
func TrimToJSON(content string) string {
	start := strings.IndexAny(content, "[{")
	end := strings.LastIndexAny(content, "]}")
	if start < 0 || end < start {
		return ""
	}
	return content[start : end+1]
}
