package domain

import "context"

// UserRepository defines access methods for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	// DecrementCredit atomically deducts one credit. It returns
	// ErrInsufficientCredit when the balance is already zero.
	DecrementCredit(ctx context.Context, id string) error
}

// JobRepository persists the three job variants and implements the
// polymorphic lookups the façade needs. All status mutations preserve
// updated_at bookkeeping; transition validation happens in the service
// layer, which owns the lifecycle rules.
type JobRepository interface {
	CreateGeneration(ctx context.Context, job *GenerationJob) error
	GetGeneration(ctx context.Context, jobID string) (*GenerationJob, error)
	// SetGenerationResult sets the status and replaces the full result
	// list. A nil genImages leaves the stored list untouched.
	SetGenerationResult(ctx context.Context, jobID string, status JobStatus, genImages []string) error
	// FindCompletedGenerationWithImage locates a completed generation
	// job owned by userID whose results contain imageURL.
	FindCompletedGenerationWithImage(ctx context.Context, userID, imageURL string) (*GenerationJob, error)

	CreateModification(ctx context.Context, job *ModificationJob) error
	GetModification(ctx context.Context, jobID string) (*ModificationJob, error)
	// GetModificationBySource returns the modification job tied to the
	// given originating job, if one exists.
	GetModificationBySource(ctx context.Context, userID, generationJobID string) (*ModificationJob, error)
	// ReuseModification increments the modification counter, replaces
	// the prompt and resets the job to pending.
	ReuseModification(ctx context.Context, jobID, prompt string) error
	// SetModificationResult sets the status and, when image is
	// non-nil, appends it to the image list unless already present.
	SetModificationResult(ctx context.Context, jobID string, status JobStatus, image *string) error
	FindCompletedModificationWithImage(ctx context.Context, userID, imageURL string) (*ModificationJob, error)

	CreateUpscale(ctx context.Context, job *UpscaleJob) error
	GetUpscale(ctx context.Context, jobID string) (*UpscaleJob, error)
	SetUpscaleResult(ctx context.Context, jobID string, status JobStatus, upscaledImage *string) error
}

// TextureRepository handles persistence for texture records.
type TextureRepository interface {
	Create(ctx context.Context, texture *Texture) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	GetByID(ctx context.Context, id string) (*Texture, error)
	GetBySlug(ctx context.Context, slug string) (*Texture, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Texture, int, error)
	Delete(ctx context.Context, userID, id string) (*Texture, error)
}
