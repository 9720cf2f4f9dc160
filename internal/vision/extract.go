package vision

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Result is the free-form document returned by the vision model.
type Result map[string]any

// Defaults applied when a field is missing or has the wrong type.
const (
	DefaultCategory   = "UNKNOWN"
	DefaultDifficulty = "EASY"
)

// Metadata holds the typed fields persisted on the capture row.
type Metadata struct {
	Category   string
	Confidence float64
	Difficulty string
	Verified   bool
	Tags       []string
}

// ParseResultText extracts the JSON object embedded in free text: the
// substring from the first '{' to the last '}' inclusive.
func ParseResultText(text string) (Result, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < 0 || start >= end {
		return nil, ErrMalformedResult
	}

	var doc Result
	if err := json.Unmarshal([]byte(text[start:end+1]), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResult, err)
	}
	if doc == nil {
		return nil, ErrMalformedResult
	}
	return doc, nil
}

// ExtractMetadata reads the typed fields, never failing: anything missing
// or of the wrong type falls back to its default.
func ExtractMetadata(doc Result) Metadata {
	md := Metadata{
		Category:   DefaultCategory,
		Difficulty: DefaultDifficulty,
		Tags:       []string{},
	}
	if doc == nil {
		return md
	}

	if v, ok := doc["category"].(string); ok {
		md.Category = v
	}
	if v, ok := doc["confidence"].(float64); ok {
		md.Confidence = v
	}
	if v, ok := doc["difficulty"].(string); ok {
		md.Difficulty = v
	}
	if v, ok := doc["verified"].(bool); ok {
		md.Verified = v
	}
	if raw, ok := doc["tags"].([]any); ok {
		tags := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
		md.Tags = NormalizeTags(tags)
	}
	return md
}

// NormalizeTags lower-cases and trims each tag, dropping empties and
// duplicates while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	// Casers carry state and must not be shared between goroutines
	lower := cases.Lower(language.Und)
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		t := strings.TrimSpace(lower.String(tag))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
