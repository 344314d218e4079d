package domain

import "time"

// JobStatus is the bulk-upload state machine. Transitions are linear with
// two exits: cancelled is reachable from any non-terminal state and failed
// from any phase. Terminal jobs are immutable except for deletion.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobValidating JobStatus = "validating"
	JobProcessing JobStatus = "processing"
	JobEnriching  JobStatus = "enriching"
	JobAnalyzing  JobStatus = "analyzing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// DuplicateField names a record field usable in the duplicate-detection key.
type DuplicateField string

const (
	DupFieldValue   DuplicateField = "value"
	DupFieldType    DuplicateField = "type"
	DupFieldContext DuplicateField = "context"
)

// JobSettings are the per-upload processing options recognized at the job
// submission boundary.
type JobSettings struct {
	EnableDuplicateDetection      bool             `json:"enable_duplicate_detection"`
	DuplicateCheckFields          []DuplicateField `json:"duplicate_check_fields,omitempty"`
	EnableConfidenceScoring       bool             `json:"enable_confidence_scoring"`
	EnableEnrichment              bool             `json:"enable_enrichment"`
	EnableFalsePositivePrediction bool             `json:"enable_false_positive_prediction"`
	BatchSize                     int              `json:"batch_size"`
	MaxConcurrency                int              `json:"max_concurrency"`
	TimeoutPerItem                time.Duration    `json:"timeout_per_item"`
	RetryOnFailure                bool             `json:"retry_on_failure"`
	MaxRetries                    int              `json:"max_retries"`
	SkipInvalidItems              bool             `json:"skip_invalid_items"`
	DefaultTags                   []string         `json:"default_tags,omitempty"`
	DefaultSource                 SourceChannel    `json:"default_source,omitempty"`
}

// DefaultJobSettings returns the settings applied when the caller omits them.
func DefaultJobSettings() JobSettings {
	return JobSettings{
		EnableDuplicateDetection: true,
		DuplicateCheckFields:     []DuplicateField{DupFieldValue, DupFieldType},
		EnableConfidenceScoring:  true,
		BatchSize:                100,
		MaxConcurrency:           4,
		TimeoutPerItem:           30 * time.Second,
		SkipInvalidItems:         true,
		DefaultSource:            SourceText,
	}
}

// ErrorType classifies a processing failure.
type ErrorType string

const (
	ErrParsing       ErrorType = "parsing_error"
	ErrValidation    ErrorType = "validation_error"
	ErrTypeDetection ErrorType = "type_detection_error"
	ErrEnrichment    ErrorType = "enrichment_error"
	ErrTimeout       ErrorType = "timeout_error"
	ErrRateLimit     ErrorType = "rate_limit_error"
	ErrNetwork       ErrorType = "network_error"
	ErrQuotaExceeded ErrorType = "quota_exceeded"
	ErrPermission    ErrorType = "permission_error"
	ErrProcessing    ErrorType = "processing_error"
)

// ClassifiedError carries the taxonomy type of a failure across package
// boundaries, so transport adapters report what went wrong in the
// engine's vocabulary.
type ClassifiedError struct {
	Type ErrorType
	Err  error
}

func (e *ClassifiedError) Error() string { return string(e.Type) + ": " + e.Err.Error() }

func (e *ClassifiedError) Unwrap() error { return e.Err }

type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// JobError is one typed failure accumulated on a job. Per-record errors
// never abort the batch; job-level errors carry critical severity.
type JobError struct {
	Type      ErrorType     `json:"type"`
	Message   string        `json:"message"`
	Severity  ErrorSeverity `json:"severity"`
	Retryable bool          `json:"retryable"`
	Record    *RawRecord    `json:"record,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// ItemStatus is the per-record outcome inside a job.
type ItemStatus string

const (
	ItemSuccess   ItemStatus = "success"
	ItemFailed    ItemStatus = "failed"
	ItemSkipped   ItemStatus = "skipped"
	ItemDuplicate ItemStatus = "duplicate"
)

// ProcessedIOC is the outcome of running one raw record through the
// pipeline. OriginalIndex preserves input order; batch processing itself
// gives no ordering guarantee.
type ProcessedIOC struct {
	OriginalIndex int            `json:"original_index"`
	Record        RawRecord      `json:"record"`
	IOC           *IOC           `json:"ioc,omitempty"`
	Status        ItemStatus     `json:"status"`
	Duration      time.Duration  `json:"duration"`
	Enrichment    map[string]any `json:"enrichment,omitempty"`
	Prediction    *Prediction    `json:"prediction,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// JobSummary aggregates a finished job's outcomes.
type JobSummary struct {
	ByType                  map[IOCType]int    `json:"by_type"`
	ByConfidence            map[Confidence]int `json:"by_confidence"`
	Duplicates              int                `json:"duplicates"`
	PredictedFalsePositives int                `json:"predicted_false_positives"`
	AvgProcessingTime       time.Duration      `json:"avg_processing_time"`
}

// TypeFrequency is one entry of the top-types ranking.
type TypeFrequency struct {
	Type  IOCType `json:"type"`
	Count int     `json:"count"`
}

// JobStatistics carries the frequency and latency breakdowns.
type JobStatistics struct {
	TopTypes    []TypeFrequency          `json:"top_types"`
	ErrorCounts map[ErrorType]int        `json:"error_counts"`
	Percentiles map[string]time.Duration `json:"percentiles"` // p50/p75/p90/p95/p99
}

// QualityMetrics scores the upload itself, not the indicators.
type QualityMetrics struct {
	DataQualityScore  float64 `json:"data_quality_score"` // successful/total*100
	CompletenessScore float64 `json:"completeness_score"` // counts intentional skips as handled
	ConsistencyScore  float64 `json:"consistency_score"`  // penalized by duplicate ratio
}

// JobResults is the finalization payload attached to a completed job.
type JobResults struct {
	Items      []ProcessedIOC `json:"items"`
	Summary    JobSummary     `json:"summary"`
	Statistics JobStatistics  `json:"statistics"`
	Quality    QualityMetrics `json:"quality"`
}

// UploadJob is the unit of bulk work. It is mutated only by the single
// goroutine driving its state machine; everything readers see is a snapshot.
// Records holds the parsed rows so that a retried job reprocesses exactly
// the input it was created with.
type UploadJob struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	OwnerID  string      `json:"owner_id"`
	Status   JobStatus   `json:"status"`
	Format   string      `json:"format"`
	Settings JobSettings `json:"settings"`

	TotalItems      int `json:"total_items"`
	ProcessedItems  int `json:"processed_items"`
	SuccessfulItems int `json:"successful_items"`
	FailedItems     int `json:"failed_items"`
	SkippedItems    int `json:"skipped_items"`
	DuplicateItems  int `json:"duplicate_items"`

	Errors  []JobError  `json:"errors,omitempty"`
	Results *JobResults `json:"results,omitempty"`
	Records []RawRecord `json:"records,omitempty"`

	RetryCount  int        `json:"retry_count"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobProgress is the read-only snapshot returned by the progress query
// boundary. It is computed on demand from the counters, never stored.
type JobProgress struct {
	JobID                  string        `json:"job_id"`
	Status                 JobStatus     `json:"status"`
	Progress               float64       `json:"progress"` // 0-100
	Throughput             float64       `json:"throughput_items_per_sec"`
	ErrorRate              float64       `json:"error_rate"`
	EstimatedTimeRemaining time.Duration `json:"estimated_time_remaining"`
}
