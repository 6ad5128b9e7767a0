package pipeline

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/oMygpt/readitdeep/internal/jobs"
)

// analysisInputLimit bounds how much converted content each analysis prompt
// sees; papers routinely exceed model context windows.
const analysisInputLimit = 30000

const summarySystemPrompt = `You are an expert research assistant. Summarize academic papers accurately and concisely. Respond with the summary text only, no preamble.`

const methodsSystemPrompt = `You are an expert research assistant. List the key methods and techniques used in the paper, one per line, no numbering, no preamble.`

const structureSystemPrompt = `You are an expert research assistant. Outline the structure of the paper as a short markdown bullet list of its sections with a one-sentence description each. Respond with the outline only.`

// runAnalysis produces the three analysis artifacts concurrently. Each part
// merges independently so a single prompt failure loses only that artifact.
func (o *Orchestrator) runAnalysis(ctx context.Context, jobID, content, title string) error {
	if o.completer == nil {
		return fmt.Errorf("no language model configured")
	}
	input := headChars(content, analysisInputLimit)

	var g errgroup.Group
	g.Go(func() error {
		summary, err := o.completer.Complete(ctx, summarySystemPrompt, analysisUserPrompt(title, input, "Summarize this paper in 3-5 sentences."))
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		return o.mergeAnalysis(ctx, jobID, func(rec *jobs.Record) {
			rec.Summary = strings.TrimSpace(summary)
		})
	})
	g.Go(func() error {
		raw, err := o.completer.Complete(ctx, methodsSystemPrompt, analysisUserPrompt(title, input, "List the key methods used in this paper."))
		if err != nil {
			return fmt.Errorf("methods: %w", err)
		}
		methods := parseMethodList(raw)
		return o.mergeAnalysis(ctx, jobID, func(rec *jobs.Record) {
			rec.Methods = methods
		})
	})
	g.Go(func() error {
		structure, err := o.completer.Complete(ctx, structureSystemPrompt, analysisUserPrompt(title, input, "Outline the structure of this paper."))
		if err != nil {
			return fmt.Errorf("structure: %w", err)
		}
		return o.mergeAnalysis(ctx, jobID, func(rec *jobs.Record) {
			rec.Structure = strings.TrimSpace(structure)
		})
	})
	return g.Wait()
}

func (o *Orchestrator) mergeAnalysis(ctx context.Context, jobID string, mutate func(*jobs.Record)) error {
	_, err := o.store.Update(ctx, jobID, mutate)
	return err
}

func analysisUserPrompt(title, content, instruction string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString("Title: ")
		sb.WriteString(title)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Paper content:\n\n")
	sb.WriteString(content)
	sb.WriteString("\n\n")
	sb.WriteString(instruction)
	return sb.String()
}

func parseMethodList(raw string) []string {
	var methods []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		methods = append(methods, line)
	}
	return methods
}
