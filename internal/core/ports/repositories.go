package ports

import (
	"context"

	"github.com/hive-corporation/harrier/internal/core/domain"
)

// JobRepository persists upload jobs. The engine only needs load-all-at-init
// and save-on-mutation semantics; the storage technology behind it is an
// adapter concern.
type JobRepository interface {
	Save(ctx context.Context, job *domain.UploadJob) error
	Find(ctx context.Context, id string) (*domain.UploadJob, error)
	FindAll(ctx context.Context) ([]*domain.UploadJob, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*domain.UploadJob, error)
	Delete(ctx context.Context, id string) error
}

// FeedbackRepository persists analyst feedback events.
type FeedbackRepository interface {
	Save(ctx context.Context, fb *domain.UserFeedback) error
	FindByIOC(ctx context.Context, iocID string) ([]*domain.UserFeedback, error)
	FindAll(ctx context.Context) ([]*domain.UserFeedback, error)
}

// ModelRepository persists learning-model snapshots.
type ModelRepository interface {
	SaveModel(ctx context.Context, model *domain.LearningModel) error
	LatestModel(ctx context.Context) (*domain.LearningModel, error)
}
