package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/oMygpt/readitdeep/internal/jobs"
	"github.com/oMygpt/readitdeep/internal/llm"
	"github.com/oMygpt/readitdeep/internal/store"
	"github.com/oMygpt/readitdeep/pkg/log"
)

var (
	ErrDocumentNotReady = fmt.Errorf("document has no converted content to translate")
	ErrNotOwner         = fmt.Errorf("document belongs to another owner")
)

// Translator runs translation jobs: a document's converted markdown is split
// into paragraph-bounded chunks and translated one chunk at a time, with each
// finished chunk persisted so partial output survives a crash or failure.
type Translator struct {
	store     *store.Dual
	completer llm.Completer
	maxChunk  int

	mu     sync.Mutex
	active map[string]string // documentID|lang -> running translation job id

	wg sync.WaitGroup
}

func NewTranslator(dual *store.Dual, completer llm.Completer, maxChunkChars int) *Translator {
	if maxChunkChars <= 0 {
		maxChunkChars = 3000
	}
	return &Translator{
		store:     dual,
		completer: completer,
		maxChunk:  maxChunkChars,
		active:    make(map[string]string),
	}
}

// Start launches a translation of the given document into target. Repeated
// calls for the same document and target language while a run is in flight
// return the existing job id instead of spawning a duplicate.
func (t *Translator) Start(ctx context.Context, documentID, ownerID string, target language.Tag) (string, error) {
	doc, err := t.store.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	if doc.OwnerID != ownerID {
		return "", ErrNotOwner
	}
	if doc.Content == "" {
		return "", ErrDocumentNotReady
	}

	key := documentID + "|" + target.String()
	t.mu.Lock()
	if existing, ok := t.active[key]; ok {
		t.mu.Unlock()
		log.Info("Translation of %s to %s already running as job %s", documentID, target, existing)
		return existing, nil
	}
	jobID := uuid.NewString()
	t.active[key] = jobID
	t.mu.Unlock()

	chunks := SplitChunks(doc.Content, t.maxChunk)
	sourceLang := detectLanguage(doc.Content)

	rec := &jobs.Record{
		ID:             jobID,
		Kind:           jobs.KindTranslation,
		OwnerID:        ownerID,
		Filename:       doc.Filename,
		Status:         jobs.StatusQueued,
		Title:          doc.Title,
		DocumentID:     documentID,
		TargetLanguage: target.String(),
		SourceLanguage: sourceLang,
		ChunksTotal:    len(chunks),
	}
	if err := t.store.Create(ctx, rec); err != nil {
		t.mu.Lock()
		delete(t.active, key)
		t.mu.Unlock()
		return "", err
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			delete(t.active, key)
			t.mu.Unlock()
		}()
		t.run(context.Background(), jobID, doc.Title, chunks, sourceLang, target)
	}()
	return jobID, nil
}

func (t *Translator) run(ctx context.Context, jobID, title string, chunks []string, sourceLang string, target language.Tag) {
	if err := t.setStatus(ctx, jobID, jobs.StatusTranslating); err != nil {
		log.Error("Translation job %s: %v", jobID, err)
		return
	}

	systemPrompt := buildTranslationPrompt(title, sourceLang, target)

	for i, chunk := range chunks {
		translated, err := t.completer.Complete(ctx, systemPrompt, chunk)
		if err != nil {
			t.fail(ctx, jobID, fmt.Sprintf("chunk %d/%d: %v", i+1, len(chunks), err))
			return
		}
		done := i + 1
		_, err = t.store.Update(ctx, jobID, func(rec *jobs.Record) {
			if rec.TranslatedContent != "" {
				rec.TranslatedContent += "\n\n"
			}
			rec.TranslatedContent += strings.TrimSpace(translated)
			rec.ChunksDone = done
			if rec.ChunksTotal > 0 {
				rec.Progress = done * 100 / rec.ChunksTotal
			}
		})
		if err != nil {
			log.Error("Translation job %s: persist chunk %d: %v", jobID, done, err)
			return
		}
		log.Debug("Translation job %s: chunk %d/%d done", jobID, done, len(chunks))
	}

	if err := t.setStatus(ctx, jobID, jobs.StatusCompleted); err != nil {
		log.Error("Translation job %s: %v", jobID, err)
		return
	}
	log.Info("Translation job %s completed (%d chunks)", jobID, len(chunks))
}

func (t *Translator) setStatus(ctx context.Context, jobID string, to jobs.Status) error {
	var invalidFrom jobs.Status
	_, err := t.store.Update(ctx, jobID, func(rec *jobs.Record) {
		if !jobs.ValidTransition(rec.Status, to) {
			invalidFrom = rec.Status
			return
		}
		rec.Status = to
		if to == jobs.StatusCompleted {
			rec.Progress = 100
		}
	})
	if err != nil {
		return err
	}
	if invalidFrom != "" {
		return fmt.Errorf("invalid status transition %s -> %s", invalidFrom, to)
	}
	return nil
}

// fail marks the job failed; already-translated chunks stay on the record.
func (t *Translator) fail(ctx context.Context, jobID, message string) {
	log.Error("Translation job %s failed: %s", jobID, message)
	_, err := t.store.Update(ctx, jobID, func(rec *jobs.Record) {
		rec.Status = jobs.StatusFailed
		rec.Error = message
	})
	if err != nil {
		log.Error("Translation job %s: failed to record failure: %v", jobID, err)
	}
}

// Wait blocks until all running translations have finished.
func (t *Translator) Wait() {
	t.wg.Wait()
}

func detectLanguage(content string) string {
	sample := content
	if len(sample) > 4000 {
		n := 4000
		for n > 0 && !utf8.RuneStart(sample[n]) {
			n--
		}
		sample = sample[:n]
	}
	return whatlanggo.DetectLang(sample).Iso6391()
}

func buildTranslationPrompt(title, sourceLang string, target language.Tag) string {
	targetName := display.English.Languages().Name(target)

	var prompt strings.Builder
	prompt.WriteString("You are a professional academic translator. Translate the given markdown content")
	if sourceLang != "" {
		prompt.WriteString(" from " + sourceLang)
	}
	prompt.WriteString(" to " + targetName + ".\n\n")
	if title != "" {
		prompt.WriteString("The content is part of the paper: " + title + "\n\n")
	}
	prompt.WriteString("=== TRANSLATION GUIDELINES ===\n")
	prompt.WriteString("1. Preserve ALL markdown formatting: headings, lists, tables, links, image references\n")
	prompt.WriteString("2. Do NOT translate code blocks, math notation, citations, URLs or author names\n")
	prompt.WriteString("3. Use established " + targetName + " terminology for technical terms\n")
	prompt.WriteString("4. Keep the translation faithful and precise, not loose or summarized\n\n")
	prompt.WriteString("=== OUTPUT FORMAT ===\n")
	prompt.WriteString("Return ONLY the translated markdown. No explanations, notes, or additional text.\n")
	return prompt.String()
}
