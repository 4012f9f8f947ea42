package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"texturelab/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository with one table per
// job variant.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// CreateGeneration inserts a new generation job record.
func (r *JobRepositoryPG) CreateGeneration(ctx context.Context, job *domain.GenerationJob) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO generation_jobs (id, user_id, prompt, size, status, gen_images)
VALUES ($1, $2, $3, $4, $5, $6);
`,
		job.ID,
		job.UserID,
		job.Prompt,
		job.Size,
		job.Status,
		job.GenImages,
	)
	return err
}

// GetGeneration fetches a generation job by its identifier.
func (r *JobRepositoryPG) GetGeneration(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, prompt, size, status, gen_images, created_at, updated_at
FROM generation_jobs
WHERE id = $1;
`, jobID)
	return scanGeneration(row)
}

// SetGenerationResult updates the status and, when genImages is
// non-nil, replaces the full result list.
func (r *JobRepositoryPG) SetGenerationResult(ctx context.Context, jobID string, status domain.JobStatus, genImages []string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE generation_jobs
SET status = $2,
    gen_images = COALESCE($3, gen_images),
    updated_at = NOW()
WHERE id = $1;
`, jobID, status, genImages)
	return err
}

// FindCompletedGenerationWithImage locates the most recent completed
// generation job owned by userID whose results contain imageURL.
func (r *JobRepositoryPG) FindCompletedGenerationWithImage(ctx context.Context, userID, imageURL string) (*domain.GenerationJob, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, prompt, size, status, gen_images, created_at, updated_at
FROM generation_jobs
WHERE user_id = $1
  AND status = 'completed'
  AND $2 = ANY(gen_images)
ORDER BY created_at DESC
LIMIT 1;
`, userID, imageURL)
	return scanGeneration(row)
}

// CreateModification inserts a new modification job record.
func (r *JobRepositoryPG) CreateModification(ctx context.Context, job *domain.ModificationJob) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO modification_jobs (id, user_id, generation_job_id, prompt, images, modifications, status)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`,
		job.ID,
		job.UserID,
		job.GenerationJobID,
		job.Prompt,
		job.Images,
		job.Modifications,
		job.Status,
	)
	return err
}

// GetModification fetches a modification job by its identifier.
func (r *JobRepositoryPG) GetModification(ctx context.Context, jobID string) (*domain.ModificationJob, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, generation_job_id, prompt, images, modifications, status, created_at, updated_at
FROM modification_jobs
WHERE id = $1;
`, jobID)
	return scanModification(row)
}

// GetModificationBySource returns the modification job tied to the
// given originating job id.
func (r *JobRepositoryPG) GetModificationBySource(ctx context.Context, userID, generationJobID string) (*domain.ModificationJob, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, generation_job_id, prompt, images, modifications, status, created_at, updated_at
FROM modification_jobs
WHERE user_id = $1
  AND generation_job_id = $2;
`, userID, generationJobID)
	return scanModification(row)
}

// ReuseModification re-enters an existing modification job into the
// pipeline: bump the counter, replace the prompt, reset to pending.
func (r *JobRepositoryPG) ReuseModification(ctx context.Context, jobID, prompt string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE modification_jobs
SET modifications = modifications + 1,
    prompt = $2,
    status = 'pending',
    updated_at = NOW()
WHERE id = $1;
`, jobID, prompt)
	return err
}

// SetModificationResult updates the status and appends the result
// image unless it is already recorded, keeping webhook redelivery
// from duplicating entries.
func (r *JobRepositoryPG) SetModificationResult(ctx context.Context, jobID string, status domain.JobStatus, image *string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE modification_jobs
SET status = $2,
    images = CASE
        WHEN $3::text IS NOT NULL AND NOT ($3 = ANY(images)) THEN array_append(images, $3)
        ELSE images
    END,
    updated_at = NOW()
WHERE id = $1;
`, jobID, status, image)
	return err
}

// FindCompletedModificationWithImage locates the most recent completed
// modification job owned by userID whose image list contains imageURL.
func (r *JobRepositoryPG) FindCompletedModificationWithImage(ctx context.Context, userID, imageURL string) (*domain.ModificationJob, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, generation_job_id, prompt, images, modifications, status, created_at, updated_at
FROM modification_jobs
WHERE user_id = $1
  AND status = 'completed'
  AND $2 = ANY(images)
ORDER BY created_at DESC
LIMIT 1;
`, userID, imageURL)
	return scanModification(row)
}

// CreateUpscale inserts a new upscale job record.
func (r *JobRepositoryPG) CreateUpscale(ctx context.Context, job *domain.UpscaleJob) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO upscale_jobs (id, user_id, original_image, upscaled_image, status)
VALUES ($1, $2, $3, $4, $5);
`,
		job.ID,
		job.UserID,
		job.OriginalImage,
		job.UpscaledImage,
		job.Status,
	)
	return err
}

// GetUpscale fetches an upscale job by its identifier.
func (r *JobRepositoryPG) GetUpscale(ctx context.Context, jobID string) (*domain.UpscaleJob, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, original_image, upscaled_image, status, created_at, updated_at
FROM upscale_jobs
WHERE id = $1;
`, jobID)
	var job domain.UpscaleJob
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.OriginalImage,
		&job.UpscaledImage,
		&job.Status,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// SetUpscaleResult updates the status and sets the upscaled image
// locator when provided.
func (r *JobRepositoryPG) SetUpscaleResult(ctx context.Context, jobID string, status domain.JobStatus, upscaledImage *string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE upscale_jobs
SET status = $2,
    upscaled_image = COALESCE($3, upscaled_image),
    updated_at = NOW()
WHERE id = $1;
`, jobID, status, upscaledImage)
	return err
}

func scanGeneration(row pgx.Row) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Prompt,
		&job.Size,
		&job.Status,
		&job.GenImages,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func scanModification(row pgx.Row) (*domain.ModificationJob, error) {
	var job domain.ModificationJob
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.GenerationJobID,
		&job.Prompt,
		&job.Images,
		&job.Modifications,
		&job.Status,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}
