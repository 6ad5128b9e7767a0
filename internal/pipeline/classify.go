package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oMygpt/readitdeep/internal/jobs"
)

// classifyInputLimit bounds how much content the classifier sees; the abstract
// and introduction carry the topical signal.
const classifyInputLimit = 8000

const classifySystemPrompt = `You are a research librarian classifying academic papers. Respond ONLY with a JSON array of tag objects, each with "name" (short lowercase topic label), "confidence" (0.0-1.0) and "reason" (one sentence). The response must start with [ and end with ]. NO markdown, NO explanations.`

// runClassification asks the model for topic tags and merges the parsed
// suggestions onto the record.
func (o *Orchestrator) runClassification(ctx context.Context, jobID, content string) error {
	if o.completer == nil {
		return fmt.Errorf("no language model configured")
	}
	raw, err := o.completer.Complete(ctx, classifySystemPrompt,
		"Suggest 3-6 topic tags for this paper:\n\n"+headChars(content, classifyInputLimit))
	if err != nil {
		return err
	}
	tags, err := parseTagResponse(raw)
	if err != nil {
		return err
	}
	_, err = o.store.Update(ctx, jobID, func(rec *jobs.Record) {
		rec.Tags = tags
	})
	return err
}

// parseTagResponse parses the LLM response into tag suggestions.
// Handles clean JSON, markdown code fences, and JSON embedded in prose.
func parseTagResponse(content string) ([]jobs.TagSuggestion, error) {
	content = strings.TrimSpace(content)

	var tags []jobs.TagSuggestion
	if err := json.Unmarshal([]byte(content), &tags); err == nil {
		return tags, nil
	}

	if idx := strings.Index(content, "```"); idx >= 0 {
		inner := content[idx+3:]
		// Skip language tag on the same line (e.g., ```json)
		if nl := strings.Index(inner, "\n"); nl >= 0 {
			inner = inner[nl+1:]
		}
		if end := strings.Index(inner, "```"); end >= 0 {
			inner = inner[:end]
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(inner)), &tags); err == nil {
			return tags, nil
		}
	}

	if extracted := extractJSONArray(content); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), &tags); err == nil {
			return tags, nil
		}
	}

	return nil, fmt.Errorf("failed to parse tags from response: no valid JSON array found")
}

// extractJSONArray finds the outermost balanced [ ... ] block in s.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
