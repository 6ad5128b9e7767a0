package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oMygpt/readitdeep/internal/convert"
	"github.com/oMygpt/readitdeep/internal/extract"
	"github.com/oMygpt/readitdeep/internal/jobs"
	"github.com/oMygpt/readitdeep/internal/llm"
	"github.com/oMygpt/readitdeep/internal/quota"
	"github.com/oMygpt/readitdeep/internal/store"
	"github.com/oMygpt/readitdeep/pkg/log"
)

var allowedExtensions = []string{".pdf", ".tex", ".docx", ".doc"}

var (
	ErrUnsupportedFileType = fmt.Errorf("unsupported file type")
	ErrNotOwner            = fmt.Errorf("job belongs to another owner")
	ErrNotDocument         = fmt.Errorf("job is not a document job")
)

// Upload is a pipeline-start request.
type Upload struct {
	Filename string
	Data     []byte
	OwnerID  string
}

// Orchestrator sequences the document pipeline for one job: conversion,
// asset re-hosting, identifier extraction, then three advisory enrichment
// sub-tasks that must never fail an already-usable job.
type Orchestrator struct {
	store     *store.Dual
	converter convert.Converter
	completer llm.Completer
	embedder  llm.Embedder
	notifier  quota.Notifier

	dataDir      string
	pollInterval time.Duration
	maxWait      time.Duration

	mu      sync.Mutex
	running map[string]struct{}

	wg sync.WaitGroup
}

func NewOrchestrator(
	dual *store.Dual,
	converter convert.Converter,
	completer llm.Completer,
	embedder llm.Embedder,
	notifier quota.Notifier,
	dataDir string,
	pollInterval, maxWait time.Duration,
) *Orchestrator {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if maxWait <= 0 {
		maxWait = 10 * time.Minute
	}
	return &Orchestrator{
		store:        dual,
		converter:    converter,
		completer:    completer,
		embedder:     embedder,
		notifier:     notifier,
		dataDir:      dataDir,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		running:      make(map[string]struct{}),
	}
}

// Start validates the upload, persists a queued record and schedules the
// pipeline body detached from the caller's request lifetime. It never blocks
// on any stage.
func (o *Orchestrator) Start(ctx context.Context, up Upload) (string, error) {
	ext := strings.ToLower(filepath.Ext(up.Filename))
	supported := false
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			supported = true
			break
		}
	}
	if !supported {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFileType, ext, strings.Join(allowedExtensions, ", "))
	}

	id := uuid.NewString()
	sourcePath, err := o.saveSource(id, ext, up.Data)
	if err != nil {
		return "", err
	}

	rec := &jobs.Record{
		ID:         id,
		Kind:       jobs.KindDocument,
		OwnerID:    up.OwnerID,
		Filename:   up.Filename,
		SourcePath: sourcePath,
		Status:     jobs.StatusQueued,
	}
	if err := o.store.Create(ctx, rec); err != nil {
		return "", err
	}

	o.acquire(id)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release(id)
		o.run(context.Background(), id, up.Data, up.Filename)
	}()
	return id, nil
}

// Retrigger re-runs a job. With converted content present only the advisory
// stages run again; without it the full pipeline restarts from conversion,
// re-reading the original upload. A run already in flight makes this a no-op.
func (o *Orchestrator) Retrigger(ctx context.Context, jobID, ownerID string) error {
	rec, err := o.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if rec.OwnerID != ownerID {
		return ErrNotOwner
	}
	if rec.Kind != jobs.KindDocument {
		return ErrNotDocument
	}

	if !o.acquire(jobID) {
		log.Info("Job %s already has a run in flight, retrigger ignored", jobID)
		return nil
	}

	if rec.Content != "" {
		if err := o.transition(ctx, jobID, jobs.StatusAnalyzing); err != nil {
			o.release(jobID)
			return err
		}
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			defer o.release(jobID)
			o.runAdvisory(context.Background(), jobID, rec.Content, rec.Title)
		}()
		return nil
	}

	data, err := os.ReadFile(rec.SourcePath)
	if err != nil {
		o.release(jobID)
		o.fail(ctx, jobID, fmt.Sprintf("original upload unavailable: %v", err))
		return nil
	}
	if err := o.transition(ctx, jobID, jobs.StatusConverting); err != nil {
		o.release(jobID)
		return err
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release(jobID)
		o.runFrom(context.Background(), jobID, data, rec.Filename, true)
	}()
	return nil
}

// run is the pipeline body for a fresh job.
func (o *Orchestrator) run(ctx context.Context, jobID string, data []byte, filename string) {
	o.runFrom(ctx, jobID, data, filename, false)
}

func (o *Orchestrator) runFrom(ctx context.Context, jobID string, data []byte, filename string, converting bool) {
	if !converting {
		if err := o.transition(ctx, jobID, jobs.StatusConverting); err != nil {
			log.Error("Job %s: %v", jobID, err)
			return
		}
	}
	log.Info("Job %s: submitting %s for conversion", jobID, filename)

	batchID, err := o.converter.Submit(ctx, filename, data, jobID)
	if err != nil {
		o.fail(ctx, jobID, err.Error())
		return
	}

	status, err := o.awaitConversion(ctx, batchID)
	if err != nil {
		o.fail(ctx, jobID, err.Error())
		return
	}

	result, err := o.converter.Fetch(ctx, status.ResultLocation)
	if err != nil {
		o.fail(ctx, jobID, err.Error())
		return
	}

	if err := o.transition(ctx, jobID, jobs.StatusExtractingAssets); err != nil {
		log.Error("Job %s: %v", jobID, err)
		return
	}

	// Content can legitimately be empty (e.g. image-only scans the
	// converter gave up on); the job still completes, there is just
	// nothing to enrich.
	if result.Content == "" {
		if err := o.complete(ctx, jobID, "", "", "", ""); err != nil {
			log.Error("Job %s: %v", jobID, err)
			return
		}
		o.notifyQuota(ctx, jobID)
		return
	}

	assetNames := make([]string, 0, len(result.Assets))
	for _, asset := range result.Assets {
		if err := extract.SaveAsset(o.dataDir, jobID, asset.Name, asset.Data); err != nil {
			o.fail(ctx, jobID, err.Error())
			return
		}
		assetNames = append(assetNames, asset.Name)
	}

	content := extract.RewriteAssetLinks(result.Content, jobID, assetNames)
	title := extract.ExtractTitle(content, filename)
	doi := extract.FindDOI(content)
	arxivID := extract.FindArxivID(content, filename)
	log.Info("Job %s: extracted title=%q doi=%q arxiv=%q", jobID, title, doi, arxivID)

	if err := o.complete(ctx, jobID, content, title, doi, arxivID); err != nil {
		log.Error("Job %s: %v", jobID, err)
		return
	}
	o.notifyQuota(ctx, jobID)

	o.runAdvisory(ctx, jobID, content, title)
}

// awaitConversion polls the converter until the batch is done, failed, or the
// bounded wait elapses. A timeout is indistinguishable from a service failure
// by design: both surface the same failed status to the caller.
func (o *Orchestrator) awaitConversion(ctx context.Context, batchID string) (convert.Status, error) {
	deadline := time.Now().Add(o.maxWait)
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		status, err := o.converter.PollStatus(ctx, batchID)
		if err != nil {
			return convert.Status{}, err
		}
		switch status.State {
		case convert.StateDone:
			return status, nil
		case convert.StateFailed:
			return convert.Status{}, fmt.Errorf("conversion failed: %s", status.ErrMsg)
		}
		if time.Now().After(deadline) {
			return convert.Status{}, fmt.Errorf("conversion batch %s timed out after %s", batchID, o.maxWait)
		}
		select {
		case <-ctx.Done():
			return convert.Status{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// complete persists the usable milestone: content and identifiers are stored
// and the job flips to completed before any advisory work starts.
func (o *Orchestrator) complete(ctx context.Context, jobID, content, title, doi, arxivID string) error {
	var invalidFrom jobs.Status
	_, err := o.store.Update(ctx, jobID, func(rec *jobs.Record) {
		if !jobs.ValidTransition(rec.Status, jobs.StatusCompleted) {
			invalidFrom = rec.Status
			return
		}
		rec.Status = jobs.StatusCompleted
		rec.Progress = jobs.ProgressFor(jobs.StatusCompleted)
		rec.Error = ""
		rec.Content = content
		rec.Title = title
		rec.DOI = doi
		rec.ArxivID = arxivID
	})
	if err != nil {
		return err
	}
	if invalidFrom != "" {
		return fmt.Errorf("invalid status transition %s -> %s", invalidFrom, jobs.StatusCompleted)
	}
	return nil
}

// runAdvisory spawns the tracked advisory group: embedding, multi-part
// analysis and classification run concurrently, complete in any order, and
// each merges only its own result fields. Failures are logged and swallowed;
// a usable job never regresses because enrichment broke.
func (o *Orchestrator) runAdvisory(ctx context.Context, jobID, content, title string) {
	var g errgroup.Group
	g.Go(func() error { return o.advisory(ctx, jobID, "embedding", func() error { return o.runEmbedding(ctx, jobID, content) }) })
	g.Go(func() error { return o.advisory(ctx, jobID, "analysis", func() error { return o.runAnalysis(ctx, jobID, content, title) }) })
	g.Go(func() error { return o.advisory(ctx, jobID, "classification", func() error { return o.runClassification(ctx, jobID, content) }) })

	if err := g.Wait(); err != nil {
		log.Warn("Job %s: advisory group finished with failures: %v", jobID, err)
	}

	// Retrigger-only: an advisory re-run happens under analyzing and has to
	// land back on completed regardless of individual stage outcomes.
	_, err := o.store.Update(ctx, jobID, func(rec *jobs.Record) {
		if rec.Status == jobs.StatusAnalyzing {
			rec.Status = jobs.StatusCompleted
			rec.Progress = jobs.ProgressFor(jobs.StatusCompleted)
		}
	})
	if err != nil {
		log.Error("Job %s: failed to finalize advisory run: %v", jobID, err)
	}
}

// advisory is the sub-task boundary: errors stop here.
func (o *Orchestrator) advisory(_ context.Context, jobID, stage string, fn func() error) error {
	if err := fn(); err != nil {
		log.Warn("Job %s: %s stage failed: %v", jobID, stage, err)
		return fmt.Errorf("%s: %w", stage, err)
	}
	log.Info("Job %s: %s stage completed", jobID, stage)
	return nil
}

func (o *Orchestrator) runEmbedding(ctx context.Context, jobID, content string) error {
	if o.embedder == nil {
		return fmt.Errorf("no embedding provider configured")
	}
	vector, err := o.embedder.Embed(ctx, headChars(content, 8000))
	if err != nil {
		return err
	}
	_, err = o.store.Update(ctx, jobID, func(rec *jobs.Record) {
		rec.Embedding = vector
	})
	return err
}

// fail marks the job terminally failed with the causing message verbatim.
func (o *Orchestrator) fail(ctx context.Context, jobID, message string) {
	log.Error("Job %s failed: %s", jobID, message)
	_, err := o.store.Update(ctx, jobID, func(rec *jobs.Record) {
		rec.Status = jobs.StatusFailed
		rec.Error = message
	})
	if err != nil {
		log.Error("Job %s: failed to record failure: %v", jobID, err)
	}
}

func (o *Orchestrator) transition(ctx context.Context, jobID string, to jobs.Status) error {
	var invalidFrom jobs.Status
	_, err := o.store.Update(ctx, jobID, func(rec *jobs.Record) {
		if !jobs.ValidTransition(rec.Status, to) {
			invalidFrom = rec.Status
			return
		}
		rec.Status = to
		rec.Progress = jobs.ProgressFor(to)
		rec.Error = ""
	})
	if err != nil {
		return err
	}
	if invalidFrom != "" {
		return fmt.Errorf("invalid status transition %s -> %s", invalidFrom, to)
	}
	return nil
}

// notifyQuota charges the owner exactly once per job across re-runs; the
// persisted flag is flipped inside the same read-merge-write cycle that
// decides whether to notify.
func (o *Orchestrator) notifyQuota(ctx context.Context, jobID string) {
	var ownerID string
	shouldNotify := false
	_, err := o.store.Update(ctx, jobID, func(rec *jobs.Record) {
		if rec.QuotaNotified {
			return
		}
		rec.QuotaNotified = true
		ownerID = rec.OwnerID
		shouldNotify = true
	})
	if err != nil {
		log.Error("Job %s: quota bookkeeping failed: %v", jobID, err)
		return
	}
	if !shouldNotify {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.notifier.NotifyJobCompleted(notifyCtx, ownerID); err != nil {
			log.Warn("Job %s: quota notification failed: %v", jobID, err)
		}
	}()
}

func (o *Orchestrator) saveSource(id, ext string, data []byte) (string, error) {
	dir := filepath.Join(o.dataDir, "papers")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	path := filepath.Join(dir, id+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

func (o *Orchestrator) acquire(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.running[jobID]; ok {
		return false
	}
	o.running[jobID] = struct{}{}
	return true
}

func (o *Orchestrator) release(jobID string) {
	o.mu.Lock()
	delete(o.running, jobID)
	o.mu.Unlock()
}

// Wait blocks until all detached runs and notifications have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// headChars truncates content to at most n bytes, backing up to a rune
// boundary so the cut never produces invalid UTF-8.
func headChars(content string, n int) string {
	if len(content) <= n {
		return content
	}
	for n > 0 && !utf8.RuneStart(content[n]) {
		n--
	}
	return content[:n]
}
