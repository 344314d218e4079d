// Package job implements the bulk-ingestion engine: a bounded pool of
// upload jobs, each driven through a linear state machine by its own
// goroutine, with batched concurrent record processing, optional
// enrichment and false-positive analysis, and per-record error isolation.
package job

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hive-corporation/harrier/internal/core/domain"
	"github.com/hive-corporation/harrier/internal/core/ports"
	"github.com/hive-corporation/harrier/internal/dedupe"
	"github.com/hive-corporation/harrier/internal/extract"
	"github.com/hive-corporation/harrier/internal/learning"
	"github.com/hive-corporation/harrier/internal/metrics"
	"github.com/hive-corporation/harrier/internal/parser"
)

// Learner is the false-positive prediction collaborator. The engine only
// consumes predictions; training stays on the learning side.
type Learner interface {
	PredictFalsePositive(ioc domain.IOC) domain.Prediction
}

// Config bounds the engine as a whole, not individual jobs.
type Config struct {
	// MaxActiveJobs is the hard cap on concurrently running jobs.
	// Submissions beyond it are rejected, not queued.
	MaxActiveJobs int
	// MaxRecords is the largest upload accepted, in parsed records.
	MaxRecords int
}

func DefaultEngineConfig() Config {
	return Config{
		MaxActiveJobs: 10,
		MaxRecords:    100000,
	}
}

// Engine owns all upload jobs. Each job is mutated only by the goroutine
// driving its state machine; the engine mutex guards the job table and the
// snapshots handed to readers.
type Engine struct {
	cfg       Config
	extractor *extract.Extractor
	deduper   *dedupe.Deduplicator
	repo      ports.JobRepository
	enricher  ports.Enricher
	learner   Learner
	logger    *zap.SugaredLogger

	mu      sync.RWMutex
	jobs    map[string]*domain.UploadJob
	cancels map[string]context.CancelFunc
	active  int
}

// NewEngine loads persisted jobs into the table. Jobs that were mid-flight
// when the previous process died cannot be resumed; they are marked failed
// so their owners can retry them.
func NewEngine(ctx context.Context, repo ports.JobRepository, extractor *extract.Extractor, deduper *dedupe.Deduplicator, enricher ports.Enricher, learner Learner, cfg Config, logger *zap.SugaredLogger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	e := &Engine{
		cfg:       cfg,
		extractor: extractor,
		deduper:   deduper,
		repo:      repo,
		enricher:  enricher,
		learner:   learner,
		logger:    logger,
		jobs:      make(map[string]*domain.UploadJob),
		cancels:   make(map[string]context.CancelFunc),
	}

	existing, err := repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}
	for _, j := range existing {
		if !j.Status.Terminal() {
			j.Status = domain.JobFailed
			j.Errors = append(j.Errors, newJobError(domain.ErrProcessing,
				"job interrupted by service restart", nil))
			if err := repo.Save(ctx, j); err != nil {
				logger.Warnw("failed to mark interrupted job", "job_id", j.ID, "error", err)
			}
		}
		e.jobs[j.ID] = j
	}
	logger.Infow("job engine initialized", "jobs_loaded", len(e.jobs))
	return e, nil
}

// CreateJobRequest is the submission boundary for one bulk upload.
type CreateJobRequest struct {
	Name     string
	OwnerID  string
	Filename string
	Payload  []byte
	Settings *domain.JobSettings
}

// CreateJob parses the payload synchronously so format errors surface to
// the caller, then drives the rest of the pipeline asynchronously. When the
// active-job cap is reached the submission is rejected outright.
func (e *Engine) CreateJob(ctx context.Context, req CreateJobRequest) (*domain.UploadJob, error) {
	if len(req.Payload) == 0 {
		return nil, ErrEmptyPayload
	}
	settings := domain.DefaultJobSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}
	normalizeSettings(&settings)

	format := parser.DetectFormat(req.Filename, req.Payload)
	records, warnings, err := parser.Parse(req.Payload, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse upload: %w", err)
	}
	if len(records) > e.cfg.MaxRecords {
		return nil, fmt.Errorf("upload of %d records exceeds limit of %d", len(records), e.cfg.MaxRecords)
	}
	if !settings.SkipInvalidItems {
		if len(warnings) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidUpload, warnings[0])
		}
		if err := e.checkRecordsStrict(records, req.Name, settings); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
		}
	}

	job := &domain.UploadJob{
		ID:         uuid.NewString(),
		Name:       req.Name,
		OwnerID:    req.OwnerID,
		Status:     domain.JobPending,
		Format:     string(format),
		Settings:   settings,
		TotalItems: len(records),
		Records:    records,
		CreatedAt:  time.Now().UTC(),
	}
	for _, w := range warnings {
		job.Errors = append(job.Errors, newJobError(domain.ErrParsing, w, nil))
	}

	e.mu.Lock()
	if e.active >= e.cfg.MaxActiveJobs {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %d jobs running", ErrTooManyJobs, e.cfg.MaxActiveJobs)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	e.jobs[job.ID] = job
	e.cancels[job.ID] = cancel
	e.active++
	e.mu.Unlock()
	metrics.RecordJobSlot(1)

	if err := e.repo.Save(ctx, job); err != nil {
		e.releaseSlot(job.ID)
		e.mu.Lock()
		delete(e.jobs, job.ID)
		e.mu.Unlock()
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	e.logger.Infow("job accepted", "job_id", job.ID, "owner", job.OwnerID,
		"format", job.Format, "records", job.TotalItems)
	go e.run(runCtx, job.ID)
	return e.snapshot(job.ID)
}

// checkRecordsStrict runs the per-record type checks synchronously and
// reports the first record that could not become an indicator. Only strict
// uploads pay for this pass; tolerant jobs handle bad records per item.
func (e *Engine) checkRecordsStrict(records []domain.RawRecord, name string, settings domain.JobSettings) error {
	for _, rec := range records {
		value := strings.TrimSpace(rec.Value)
		if value == "" {
			return fmt.Errorf("record %d has no indicator value", rec.Index)
		}
		declared := rec.DeclaredType()
		if declared != "" && !domain.ValidIOCType(declared) {
			return fmt.Errorf("record %d has unknown declared type %q", rec.Index, declared)
		}

		candidates := e.extractor.ExtractFrom(value, name, settings.DefaultSource)
		if declared != "" {
			matched := false
			for i := range candidates {
				if candidates[i].Type == declared {
					matched = true
					break
				}
			}
			if !matched {
				return fmt.Errorf("record %d does not validate as declared type %q", rec.Index, declared)
			}
			continue
		}
		if len(candidates) == 0 {
			return fmt.Errorf("no indicator type detected for record %d (%q)", rec.Index, truncate(value, 80))
		}
	}
	return nil
}

func normalizeSettings(s *domain.JobSettings) {
	if s.BatchSize <= 0 {
		s.BatchSize = 100
	}
	if s.MaxConcurrency <= 0 {
		s.MaxConcurrency = 4
	}
	if s.TimeoutPerItem <= 0 {
		s.TimeoutPerItem = 30 * time.Second
	}
	if s.EnableDuplicateDetection && len(s.DuplicateCheckFields) == 0 {
		s.DuplicateCheckFields = []domain.DuplicateField{domain.DupFieldValue, domain.DupFieldType}
	}
	if s.DefaultSource == "" {
		s.DefaultSource = domain.SourceText
	}
}

// run drives one job through its phases. It is the only goroutine that
// mutates the job after creation; mutations happen under the engine mutex
// so snapshots always see consistent counters.
func (e *Engine) run(ctx context.Context, jobID string) {
	defer e.releaseSlot(jobID)

	e.mu.RLock()
	job := e.jobs[jobID]
	e.mu.RUnlock()
	if job == nil {
		return
	}

	now := time.Now().UTC()
	e.mutate(job, func() {
		job.Status = domain.JobValidating
		job.StartedAt = &now
	})
	e.persist(job)

	items, ok := e.validate(ctx, job)
	if !ok {
		return
	}

	e.mutate(job, func() { job.Status = domain.JobProcessing })
	e.persist(job)
	if !e.process(ctx, job, items) {
		return
	}

	if job.Settings.EnableEnrichment && e.enricher != nil {
		e.mutate(job, func() { job.Status = domain.JobEnriching })
		e.persist(job)
		if !e.enrich(ctx, job, items) {
			return
		}
	}

	if job.Settings.EnableFalsePositivePrediction && e.learner != nil {
		e.mutate(job, func() { job.Status = domain.JobAnalyzing })
		e.persist(job)
		e.analyze(job, items)
	}

	e.finish(job, items, domain.JobCompleted)
}

// validate runs the pre-processing pass: duplicate marking and structural
// record checks. It returns the item slots for every record; failed and
// duplicate records already carry their final status.
func (e *Engine) validate(ctx context.Context, job *domain.UploadJob) ([]domain.ProcessedIOC, bool) {
	if e.cancelledBetweenBatches(ctx, job, nil) {
		return nil, false
	}

	items := make([]domain.ProcessedIOC, len(job.Records))
	for i, rec := range job.Records {
		items[i] = domain.ProcessedIOC{OriginalIndex: rec.Index, Record: rec}
	}

	if job.Settings.EnableDuplicateDetection && e.deduper != nil {
		survivors, removed := e.deduper.Dedupe(ctx, job.Records, job.Settings.DuplicateCheckFields)
		if removed > 0 {
			kept := make(map[int]struct{}, len(survivors))
			for _, rec := range survivors {
				kept[rec.Index] = struct{}{}
			}
			e.mutate(job, func() {
				for i := range items {
					if _, ok := kept[items[i].Record.Index]; !ok {
						items[i].Status = domain.ItemDuplicate
						job.DuplicateItems++
						job.ProcessedItems++
					}
				}
			})
		}
	}
	return items, true
}

// process fans each batch out over a bounded worker set. Cancellation is
// only honored between batches: in-flight records always run to completion
// so counters never go backwards.
func (e *Engine) process(ctx context.Context, job *domain.UploadJob, items []domain.ProcessedIOC) bool {
	batch := job.Settings.BatchSize
	sem := make(chan struct{}, job.Settings.MaxConcurrency)

	for start := 0; start < len(items); start += batch {
		if e.cancelledBetweenBatches(ctx, job, items) {
			return false
		}
		end := start + batch
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			if items[i].Status == domain.ItemDuplicate {
				metrics.RecordJobItem(string(domain.ItemDuplicate), 0)
				continue
			}
			wg.Add(1)
			sem <- struct{}{}
			go func(slot *domain.ProcessedIOC) {
				defer wg.Done()
				defer func() { <-sem }()
				e.processRecord(job, slot)
			}(&items[i])
		}
		wg.Wait()

		e.mutate(job, func() {
			for i := start; i < end; i++ {
				switch items[i].Status {
				case domain.ItemDuplicate:
					// counted during validation
				case domain.ItemSuccess:
					job.SuccessfulItems++
					job.ProcessedItems++
				case domain.ItemSkipped:
					job.SkippedItems++
					job.ProcessedItems++
				default:
					job.FailedItems++
					job.ProcessedItems++
				}
			}
		})
		e.persist(job)
	}
	return true
}

// processRecord turns one raw record into an IOC, or into a typed failure.
// Its errors never reach the job status; they stay on the item and in the
// job error list.
func (e *Engine) processRecord(job *domain.UploadJob, slot *domain.ProcessedIOC) {
	started := time.Now()
	defer func() {
		slot.Duration = time.Since(started)
		metrics.RecordJobItem(string(slot.Status), slot.Duration)
	}()

	rec := slot.Record
	value := strings.TrimSpace(rec.Value)
	if value == "" {
		e.failItem(job, slot, domain.ErrValidation, "record has no indicator value")
		return
	}

	candidates := e.extractor.ExtractFrom(value, job.Name, job.Settings.DefaultSource)
	declared := rec.DeclaredType()

	var ioc *domain.IOC
	switch {
	case declared != "" && !domain.ValidIOCType(declared):
		e.failItem(job, slot, domain.ErrValidation,
			fmt.Sprintf("unknown declared type %q", declared))
		return
	case declared != "":
		for i := range candidates {
			if candidates[i].Type == declared {
				ioc = &candidates[i]
				break
			}
		}
		if ioc == nil {
			e.failItem(job, slot, domain.ErrValidation,
				fmt.Sprintf("value does not validate as declared type %q", declared))
			return
		}
	case len(candidates) > 0:
		ioc = &candidates[0]
	default:
		e.failItem(job, slot, domain.ErrTypeDetection,
			fmt.Sprintf("no indicator type detected for %q", truncate(value, 80)))
		return
	}

	e.decorateIOC(job, &rec, ioc)
	if !job.Settings.EnableConfidenceScoring {
		ioc.Confidence = domain.ConfidenceMedium
	}
	slot.IOC = ioc
	slot.Status = domain.ItemSuccess
	metrics.RecordExtraction(string(ioc.Type), string(ioc.Confidence))
}

// decorateIOC folds the record's declared fields and the job defaults into
// the extracted indicator.
func (e *Engine) decorateIOC(job *domain.UploadJob, rec *domain.RawRecord, ioc *domain.IOC) {
	if c := rec.Context(); c != "" {
		ioc.Context = c
	}
	tags := append([]string{}, job.Settings.DefaultTags...)
	tags = append(tags, rec.TagList()...)
	if len(tags) > 0 {
		ioc.Tags = dedupeTags(tags)
	}
	if ts := rec.Timestamp("first_seen"); !ts.IsZero() {
		ioc.FirstSeen = ts
	}
	if ts := rec.Timestamp("last_seen"); !ts.IsZero() {
		ioc.LastSeen = ts
	}
	if mal, ok := rec.MaliciousFlag(); ok {
		ioc.Malicious = &mal
	}
	if src := rec.Field("source"); src != "" {
		ioc.SourceLocation = src
	}
}

// failItem marks one record failed (or skipped when the job tolerates
// invalid items) and accumulates the typed error on the job.
func (e *Engine) failItem(job *domain.UploadJob, slot *domain.ProcessedIOC, t domain.ErrorType, msg string) {
	rec := slot.Record
	jobErr := newJobError(t, msg, &rec)
	if job.Settings.SkipInvalidItems && !retryableFor(t) {
		slot.Status = domain.ItemSkipped
		slot.Warnings = append(slot.Warnings, msg)
	} else {
		slot.Status = domain.ItemFailed
	}
	e.mutate(job, func() { job.Errors = append(job.Errors, jobErr) })
	metrics.RecordJobError(string(t))
}

// enrich calls the enrichment collaborator for each successful item.
// Failures demote nothing: the item stays successful with a warning, and
// the error lands on the job with enrichment severity.
func (e *Engine) enrich(ctx context.Context, job *domain.UploadJob, items []domain.ProcessedIOC) bool {
	batch := job.Settings.BatchSize
	sem := make(chan struct{}, job.Settings.MaxConcurrency)

	for start := 0; start < len(items); start += batch {
		if e.cancelledBetweenBatches(ctx, job, items) {
			return false
		}
		end := start + batch
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			if items[i].Status != domain.ItemSuccess || items[i].IOC == nil {
				continue
			}
			wg.Add(1)
			sem <- struct{}{}
			go func(slot *domain.ProcessedIOC) {
				defer wg.Done()
				defer func() { <-sem }()

				data, err := e.enrichItem(ctx, job, slot.IOC)
				if err != nil {
					t := classifyErr(err)
					if t == domain.ErrProcessing {
						t = domain.ErrEnrichment
					}
					msg := fmt.Sprintf("enrichment via %s failed: %v", e.enricher.Name(), err)
					slot.Warnings = append(slot.Warnings, msg)
					e.mutate(job, func() { job.Errors = append(job.Errors, newJobError(t, msg, nil)) })
					metrics.RecordEnrichmentError(string(t))
					return
				}
				slot.Enrichment = data
			}(&items[i])
		}
		wg.Wait()
	}
	return true
}

// enrichItem calls the enricher once, plus up to MaxRetries extra attempts
// when RetryOnFailure is set and the failure type is retryable. Each
// attempt gets its own per-item timeout.
func (e *Engine) enrichItem(ctx context.Context, job *domain.UploadJob, ioc *domain.IOC) (map[string]any, error) {
	attempts := 1
	if job.Settings.RetryOnFailure && job.Settings.MaxRetries > 0 {
		attempts += job.Settings.MaxRetries
	}

	var data map[string]any
	var err error
	for i := 0; i < attempts; i++ {
		itemCtx, cancel := context.WithTimeout(ctx, job.Settings.TimeoutPerItem)
		data, err = e.enricher.Enrich(itemCtx, *ioc)
		cancel()
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, err
}

// analyze runs false-positive prediction over the successful items and
// folds high-risk predictions back into the confidence scores.
func (e *Engine) analyze(job *domain.UploadJob, items []domain.ProcessedIOC) {
	for i := range items {
		if items[i].Status != domain.ItemSuccess || items[i].IOC == nil {
			continue
		}
		pred := e.learner.PredictFalsePositive(*items[i].IOC)
		items[i].Prediction = &pred

		adjusted := learning.AdjustConfidence(items[i].IOC.Confidence.Score(), pred)
		switch {
		case adjusted >= 80:
			items[i].IOC.Confidence = domain.ConfidenceHigh
		case adjusted >= 60:
			items[i].IOC.Confidence = domain.ConfidenceMedium
		default:
			items[i].IOC.Confidence = domain.ConfidenceLow
		}
	}
}

// finish computes the result payload and lands the job in a terminal
// state. Partial results survive cancellation and failure alike.
func (e *Engine) finish(job *domain.UploadJob, items []domain.ProcessedIOC, status domain.JobStatus) {
	e.mu.RLock()
	jobErrors := job.Errors
	e.mu.RUnlock()
	results := buildResults(items, jobErrors)
	now := time.Now().UTC()
	e.mutate(job, func() {
		job.Results = &results
		job.Status = status
		job.CompletedAt = &now
	})
	e.persist(job)
	metrics.RecordJobFinished(string(status))
	e.logger.Infow("job finished", "job_id", job.ID, "status", status,
		"successful", job.SuccessfulItems, "failed", job.FailedItems,
		"skipped", job.SkippedItems, "duplicates", job.DuplicateItems)
}

// cancelledBetweenBatches is the cooperative cancellation point. It fires
// only at batch boundaries and finalizes the job with whatever completed.
func (e *Engine) cancelledBetweenBatches(ctx context.Context, job *domain.UploadJob, items []domain.ProcessedIOC) bool {
	if ctx.Err() == nil {
		return false
	}
	e.finish(job, items, domain.JobCancelled)
	return true
}

func (e *Engine) mutate(job *domain.UploadJob, fn func()) {
	e.mu.Lock()
	fn()
	e.mu.Unlock()
}

// persist saves best-effort; storage hiccups must not kill a running job.
func (e *Engine) persist(job *domain.UploadJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e.mu.RLock()
	snap := *job
	e.mu.RUnlock()
	if err := e.repo.Save(ctx, &snap); err != nil {
		e.logger.Warnw("failed to persist job state", "job_id", job.ID, "error", err)
	}
}

func (e *Engine) releaseSlot(jobID string) {
	e.mu.Lock()
	if _, ok := e.cancels[jobID]; ok {
		e.cancels[jobID]()
		delete(e.cancels, jobID)
		e.active--
		metrics.RecordJobSlot(-1)
	}
	e.mu.Unlock()
}

// Cancel requests cooperative cancellation. The job lands in cancelled at
// the next batch boundary; records already in flight run to completion.
func (e *Engine) Cancel(jobID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrJobTerminal, job.Status)
	}
	if cancel, ok := e.cancels[jobID]; ok {
		cancel()
	}
	e.logger.Infow("job cancellation requested", "job_id", jobID)
	return nil
}

// Retry re-runs a failed job against the records it was created with. The
// retried run occupies a fresh engine slot under the same cap as new jobs.
func (e *Engine) Retry(ctx context.Context, jobID string) (*domain.UploadJob, error) {
	e.mu.Lock()
	job, ok := e.jobs[jobID]
	if !ok {
		e.mu.Unlock()
		return nil, ErrJobNotFound
	}
	if job.Status != domain.JobFailed {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: status is %s", ErrNotRetryable, job.Status)
	}
	if e.active >= e.cfg.MaxActiveJobs {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %d jobs running", ErrTooManyJobs, e.cfg.MaxActiveJobs)
	}

	job.Status = domain.JobPending
	job.ProcessedItems = 0
	job.SuccessfulItems = 0
	job.FailedItems = 0
	job.SkippedItems = 0
	job.DuplicateItems = 0
	job.Errors = nil
	job.Results = nil
	job.StartedAt = nil
	job.CompletedAt = nil
	job.RetryCount++

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancels[jobID] = cancel
	e.active++
	e.mu.Unlock()
	metrics.RecordJobSlot(1)

	if err := e.repo.Save(ctx, job); err != nil {
		e.releaseSlot(jobID)
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}
	e.logger.Infow("job retry accepted", "job_id", jobID, "attempt", job.RetryCount)
	go e.run(runCtx, jobID)
	return e.snapshot(jobID)
}

// Delete removes a terminal job from the table and the repository.
func (e *Engine) Delete(ctx context.Context, jobID string) error {
	e.mu.Lock()
	job, ok := e.jobs[jobID]
	if !ok {
		e.mu.Unlock()
		return ErrJobNotFound
	}
	if !job.Status.Terminal() {
		e.mu.Unlock()
		return fmt.Errorf("%w: cancel it first", ErrJobNotTerminal)
	}
	delete(e.jobs, jobID)
	e.mu.Unlock()

	if err := e.repo.Delete(ctx, jobID); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// GetJob returns a point-in-time copy of one job.
func (e *Engine) GetJob(jobID string) (*domain.UploadJob, error) {
	return e.snapshot(jobID)
}

// ListJobs returns snapshots of every job, newest first, optionally
// filtered by owner.
func (e *Engine) ListJobs(ownerID string) []*domain.UploadJob {
	e.mu.RLock()
	out := make([]*domain.UploadJob, 0, len(e.jobs))
	for _, j := range e.jobs {
		if ownerID != "" && j.OwnerID != ownerID {
			continue
		}
		snap := *j
		out = append(out, &snap)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

// Progress computes the on-demand progress view from the job counters.
func (e *Engine) Progress(jobID string) (*domain.JobProgress, error) {
	job, err := e.snapshot(jobID)
	if err != nil {
		return nil, err
	}

	p := &domain.JobProgress{JobID: job.ID, Status: job.Status}
	if job.TotalItems > 0 {
		p.Progress = float64(job.ProcessedItems) / float64(job.TotalItems) * 100
	}
	if job.ProcessedItems > 0 {
		p.ErrorRate = float64(job.FailedItems) / float64(job.ProcessedItems)
	}
	if job.StartedAt != nil && job.ProcessedItems > 0 {
		elapsed := time.Since(*job.StartedAt)
		if job.CompletedAt != nil {
			elapsed = job.CompletedAt.Sub(*job.StartedAt)
		}
		if elapsed > 0 {
			p.Throughput = float64(job.ProcessedItems) / elapsed.Seconds()
			remaining := job.TotalItems - job.ProcessedItems
			if remaining > 0 && !job.Status.Terminal() {
				p.EstimatedTimeRemaining = time.Duration(float64(remaining)/p.Throughput) * time.Second
			}
		}
	}
	return p, nil
}

func (e *Engine) snapshot(jobID string) (*domain.UploadJob, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	job, ok := e.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	snap := *job
	return &snap, nil
}

func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := tags[:0]
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
