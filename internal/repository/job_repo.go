package repository

import (
	"context"

	"github.com/davin/policyrag/internal/domain"
	"gorm.io/gorm"
)

// IndexJobRepository handles index-job ledger operations.
type IndexJobRepository struct {
	db *gorm.DB
}

// NewIndexJobRepository creates a new IndexJobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *IndexJobRepository: repository instance bound to db.
func NewIndexJobRepository(db *gorm.DB) *IndexJobRepository {
	return &IndexJobRepository{db: db}
}

// Create inserts a new index job record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *IndexJobRepository) Create(ctx context.Context, job *domain.IndexJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// Update updates an existing index job record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record with updated fields.
// Returns:
//   - error: non-nil if the update fails.
func (r *IndexJobRepository) Update(ctx context.Context, job *domain.IndexJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// GetByID retrieves an index job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.IndexJob: job record if found.
//   - error: non-nil if lookup fails.
func (r *IndexJobRepository) GetByID(ctx context.Context, id string) (*domain.IndexJob, error) {
	var job domain.IndexJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListRecent retrieves the most recent index jobs, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.IndexJob: matching job records.
//   - error: non-nil if the query fails.
func (r *IndexJobRepository) ListRecent(ctx context.Context, limit int) ([]domain.IndexJob, error) {
	var jobs []domain.IndexJob
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
