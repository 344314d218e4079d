// Package repository implements the persistence ports on PostgreSQL.
// Jobs, feedback and model snapshots are stored as jsonb documents keyed
// by their identity columns; the engine owns all invariants, the database
// is a durable mirror.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Schema returns the DDL the repository expects. Callers run it at startup;
// every statement is idempotent.
func Schema() string {
	return `
		CREATE TABLE IF NOT EXISTS upload_jobs (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL,
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS upload_jobs_owner_idx ON upload_jobs (owner_id);

		CREATE TABLE IF NOT EXISTS user_feedback (
			id         TEXT PRIMARY KEY,
			ioc_id     TEXT NOT NULL DEFAULT '',
			document   JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS user_feedback_ioc_idx ON user_feedback (ioc_id);

		CREATE TABLE IF NOT EXISTS learning_models (
			version    BIGINT PRIMARY KEY,
			document   JSONB NOT NULL,
			trained_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
}

func (r *PostgresRepository) Save(ctx context.Context, job *domain.UploadJob) error {
	doc, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	query := `
		INSERT INTO upload_jobs (id, owner_id, status, document, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET owner_id = EXCLUDED.owner_id,
		    status = EXCLUDED.status,
		    document = EXCLUDED.document,
		    updated_at = now()
	`
	if _, err := r.db.Exec(ctx, query, job.ID, job.OwnerID, job.Status, doc); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, id string) (*domain.UploadJob, error) {
	var doc []byte
	err := r.db.QueryRow(ctx, `SELECT document FROM upload_jobs WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query job: %w", err)
	}
	return unmarshalJob(doc)
}

func (r *PostgresRepository) FindAll(ctx context.Context) ([]*domain.UploadJob, error) {
	return r.queryJobs(ctx, `SELECT document FROM upload_jobs ORDER BY updated_at DESC`)
}

func (r *PostgresRepository) FindByOwner(ctx context.Context, ownerID string) ([]*domain.UploadJob, error) {
	return r.queryJobs(ctx,
		`SELECT document FROM upload_jobs WHERE owner_id = $1 ORDER BY updated_at DESC`, ownerID)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM upload_jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func (r *PostgresRepository) queryJobs(ctx context.Context, query string, args ...any) ([]*domain.UploadJob, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.UploadJob
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job, err := unmarshalJob(doc)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return jobs, nil
}

func unmarshalJob(doc []byte) (*domain.UploadJob, error) {
	var job domain.UploadJob
	if err := json.Unmarshal(doc, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// SaveFeedback and the other feedback methods implement the feedback port
// on the same pool; the learning service keeps its working set in memory
// and treats these as the durable log.

type FeedbackStore struct {
	db *pgxpool.Pool
}

func NewFeedbackStore(db *pgxpool.Pool) *FeedbackStore {
	return &FeedbackStore{db: db}
}

func (s *FeedbackStore) Save(ctx context.Context, fb *domain.UserFeedback) error {
	doc, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}
	query := `
		INSERT INTO user_feedback (id, ioc_id, document, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document
	`
	if _, err := s.db.Exec(ctx, query, fb.ID, fb.IOCID, doc, fb.CreatedAt); err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

func (s *FeedbackStore) FindByIOC(ctx context.Context, iocID string) ([]*domain.UserFeedback, error) {
	return s.queryFeedback(ctx,
		`SELECT document FROM user_feedback WHERE ioc_id = $1 ORDER BY created_at`, iocID)
}

func (s *FeedbackStore) FindAll(ctx context.Context) ([]*domain.UserFeedback, error) {
	return s.queryFeedback(ctx, `SELECT document FROM user_feedback ORDER BY created_at`)
}

func (s *FeedbackStore) queryFeedback(ctx context.Context, query string, args ...any) ([]*domain.UserFeedback, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var out []*domain.UserFeedback
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		var fb domain.UserFeedback
		if err := json.Unmarshal(doc, &fb); err != nil {
			return nil, fmt.Errorf("failed to unmarshal feedback: %w", err)
		}
		out = append(out, &fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// ModelStore persists learning-model snapshots, one row per version.

type ModelStore struct {
	db *pgxpool.Pool
}

func NewModelStore(db *pgxpool.Pool) *ModelStore {
	return &ModelStore{db: db}
}

func (s *ModelStore) SaveModel(ctx context.Context, model *domain.LearningModel) error {
	doc, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	query := `
		INSERT INTO learning_models (version, document, trained_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (version) DO UPDATE
		SET document = EXCLUDED.document, trained_at = EXCLUDED.trained_at
	`
	if _, err := s.db.Exec(ctx, query, model.Version, doc, model.TrainedAt); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	return nil
}

func (s *ModelStore) LatestModel(ctx context.Context) (*domain.LearningModel, error) {
	var doc []byte
	err := s.db.QueryRow(ctx,
		`SELECT document FROM learning_models ORDER BY version DESC LIMIT 1`).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model: %w", err)
	}
	var model domain.LearningModel
	if err := json.Unmarshal(doc, &model); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}
	return &model, nil
}
