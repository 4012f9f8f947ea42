package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"texturelab/internal/domain"
	"texturelab/internal/infra"
	"texturelab/internal/queue"
)

// Service is the job façade: it validates submissions, authorizes them
// against the user's credit balance, creates job records, enqueues
// pipeline work and exposes the status/result read paths plus the
// webhook mutation path the worker reports through.
type Service struct {
	users  domain.UserRepository
	jobs   domain.JobRepository
	queue  queue.Enqueuer
	logger infra.Logger
}

// NewService constructs the façade with injected dependencies so tests
// can substitute fakes for the store and the queue.
func NewService(users domain.UserRepository, jobs domain.JobRepository, q queue.Enqueuer, logger infra.Logger) *Service {
	return &Service{users: users, jobs: jobs, queue: q, logger: logger}
}

// SubmitGeneration accepts a text-to-texture request. The resolved
// side-effect order is: create job row, enqueue, deduct credit — so no
// message can exist without a backing record and no credit is lost
// without a job. The residual risk (credit deducted after a successful
// enqueue fails) is accepted.
func (s *Service) SubmitGeneration(ctx context.Context, userID string, in GenerationInput) (*SubmitResult, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required: %w", domain.ErrValidation)
	}
	if in.Size == "" {
		in.Size = DefaultSize
	}
	if !ValidSize(in.Size) {
		return nil, fmt.Errorf("unsupported size %q: %w", in.Size, domain.ErrValidation)
	}
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}

	job := &domain.GenerationJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		Prompt:    in.Prompt,
		Size:      in.Size,
		Status:    domain.JobStatusPending,
		GenImages: []string{},
	}
	if err := s.jobs.CreateGeneration(ctx, job); err != nil {
		return nil, fmt.Errorf("create generation job: %w", err)
	}

	task := queue.Task{
		Kind:            domain.JobKindGenerate,
		JobID:           job.ID,
		UserID:          userID,
		Prompt:          in.Prompt,
		Size:            in.Size,
		ReferenceImages: in.ReferenceImages,
	}
	return s.finishSubmission(ctx, job.ID, userID, task)
}

// SubmitModification accepts an edit request against an image produced
// by a completed job the caller owns. Re-modifying the same source job
// reuses the existing modification row instead of creating another.
func (s *Service) SubmitModification(ctx context.Context, userID string, in ModificationInput) (*SubmitResult, error) {
	if strings.TrimSpace(in.Prompt) == "" || strings.TrimSpace(in.ImageURL) == "" {
		return nil, fmt.Errorf("prompt and imageUrl are required: %w", domain.ErrValidation)
	}
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}
	if _, _, err := s.findSourceImage(ctx, userID, in.ImageURL); err != nil {
		return nil, err
	}

	jobID := ""
	existing, err := s.jobs.GetModificationBySource(ctx, userID, in.SourceJobID)
	switch {
	case err == nil:
		if err := s.jobs.ReuseModification(ctx, existing.ID, in.Prompt); err != nil {
			return nil, fmt.Errorf("reuse modification job: %w", err)
		}
		jobID = existing.ID
	case errors.Is(err, domain.ErrNotFound):
		job := &domain.ModificationJob{
			ID:              uuid.NewString(),
			UserID:          userID,
			GenerationJobID: in.SourceJobID,
			Prompt:          in.Prompt,
			Images:          []string{},
			Modifications:   1,
			Status:          domain.JobStatusPending,
		}
		if err := s.jobs.CreateModification(ctx, job); err != nil {
			return nil, fmt.Errorf("create modification job: %w", err)
		}
		jobID = job.ID
	default:
		return nil, fmt.Errorf("lookup modification job: %w", err)
	}

	task := queue.Task{
		Kind:            domain.JobKindModify,
		JobID:           jobID,
		UserID:          userID,
		Prompt:          in.Prompt,
		ImageURL:        in.ImageURL,
		ReferenceImages: in.ReferenceImages,
		OriginalJobID:   in.SourceJobID,
	}
	return s.finishSubmission(ctx, jobID, userID, task)
}

// SubmitUpscale accepts an upscale request against an image produced by
// a completed job the caller owns.
func (s *Service) SubmitUpscale(ctx context.Context, userID string, in UpscaleInput) (*SubmitResult, error) {
	if strings.TrimSpace(in.ImageURL) == "" {
		return nil, fmt.Errorf("imageUrl is required: %w", domain.ErrValidation)
	}
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}
	if _, _, err := s.findSourceImage(ctx, userID, in.ImageURL); err != nil {
		return nil, err
	}

	job := &domain.UpscaleJob{
		ID:            uuid.NewString(),
		UserID:        userID,
		OriginalImage: in.ImageURL,
		Status:        domain.JobStatusPending,
	}
	if err := s.jobs.CreateUpscale(ctx, job); err != nil {
		return nil, fmt.Errorf("create upscale job: %w", err)
	}

	task := queue.Task{
		Kind:          domain.JobKindUpscale,
		JobID:         job.ID,
		UserID:        userID,
		ImageURL:      in.ImageURL,
		OriginalJobID: in.SourceJobID,
	}
	return s.finishSubmission(ctx, job.ID, userID, task)
}

// JobStatus reads the job's lifecycle state across all three job kinds.
// Lookup order is fixed: generation, then modification, then upscale.
func (s *Service) JobStatus(ctx context.Context, jobID string) (*StatusResult, error) {
	status, _, err := s.lookupStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	progress := 0
	if status == domain.JobStatusCompleted {
		progress = 100
	}
	return &StatusResult{JobID: jobID, Status: status, Progress: progress}, nil
}

// JobResults maps a generation job's stored image locators into texture
// descriptors. A failed or unfinished job is still found; its list is
// simply empty.
func (s *Service) JobResults(ctx context.Context, jobID string) ([]TextureResult, error) {
	job, err := s.jobs.GetGeneration(ctx, jobID)
	if err != nil {
		return nil, err
	}
	results := make([]TextureResult, 0, len(job.GenImages))
	for _, url := range job.GenImages {
		results = append(results, TextureResult{
			ID:         job.ID,
			Name:       "Generated Texture",
			Slug:       "texture-" + job.ID,
			S3Key:      url,
			Resolution: job.Size,
		})
	}
	return results, nil
}

// ApplyWebhook is the single mutation path advancing a job's status.
// It is safe to invoke at least twice for the same (job, status) pair:
// transitions are validated against the forward-only lifecycle, result
// application replaces or dedupes rather than blindly appending, and a
// repeated non-advancing update is a no-op.
func (s *Service) ApplyWebhook(ctx context.Context, update WebhookUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("jobId is required: %w", domain.ErrValidation)
	}
	if !update.Status.Valid() {
		return fmt.Errorf("unknown status %q: %w", update.Status, domain.ErrValidation)
	}

	switch update.Kind {
	case domain.JobKindGenerate:
		job, err := s.jobs.GetGeneration(ctx, update.JobID)
		if err != nil {
			return err
		}
		if skip, err := checkTransition(job.Status, update.Status); skip || err != nil {
			return err
		}
		var images []string
		if update.Status == domain.JobStatusCompleted {
			images = update.Results
		}
		return s.jobs.SetGenerationResult(ctx, update.JobID, update.Status, images)

	case domain.JobKindModify:
		job, err := s.jobs.GetModification(ctx, update.JobID)
		if err != nil {
			return err
		}
		if skip, err := checkTransition(job.Status, update.Status); skip || err != nil {
			return err
		}
		var image *string
		if update.Status == domain.JobStatusCompleted && len(update.Results) > 0 {
			image = &update.Results[0]
		}
		return s.jobs.SetModificationResult(ctx, update.JobID, update.Status, image)

	case domain.JobKindUpscale:
		job, err := s.jobs.GetUpscale(ctx, update.JobID)
		if err != nil {
			return err
		}
		if skip, err := checkTransition(job.Status, update.Status); skip || err != nil {
			return err
		}
		var image *string
		if update.Status == domain.JobStatusCompleted && len(update.Results) > 0 {
			image = &update.Results[0]
		}
		return s.jobs.SetUpscaleResult(ctx, update.JobID, update.Status, image)
	}
	return fmt.Errorf("unknown job type %q: %w", update.Kind, domain.ErrValidation)
}

// checkTransition enforces the forward-only lifecycle. A repeated
// non-terminal update (processing → processing under redelivery) is
// skipped silently; a repeated terminal state falls through so the
// idempotent result write re-applies; anything backward is a conflict.
func checkTransition(current, next domain.JobStatus) (skip bool, err error) {
	if current == next && !next.Terminal() {
		return true, nil
	}
	if !current.CanTransition(next) {
		return false, fmt.Errorf("status %s cannot advance to %s: %w", current, next, domain.ErrConflict)
	}
	return false, nil
}

// authorize confirms the user exists and has credit left. The balance
// is re-checked atomically at deduction time; this early check exists
// to reject obviously broke submissions before creating any state.
func (s *Service) authorize(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasCredit() {
		return domain.ErrInsufficientCredit
	}
	return nil
}

// findSourceImage resolves the completed job a modify/upscale source
// image came from. Search order is fixed and documented: modification
// jobs first, then generation jobs.
func (s *Service) findSourceImage(ctx context.Context, userID, imageURL string) (domain.JobKind, string, error) {
	if mod, err := s.jobs.FindCompletedModificationWithImage(ctx, userID, imageURL); err == nil {
		return domain.JobKindModify, mod.ID, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", "", err
	}
	gen, err := s.jobs.FindCompletedGenerationWithImage(ctx, userID, imageURL)
	if err != nil {
		return "", "", err
	}
	return domain.JobKindGenerate, gen.ID, nil
}

// lookupStatus tries the three job stores in the documented order.
func (s *Service) lookupStatus(ctx context.Context, jobID string) (domain.JobStatus, domain.JobKind, error) {
	if job, err := s.jobs.GetGeneration(ctx, jobID); err == nil {
		return job.Status, domain.JobKindGenerate, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", "", err
	}
	if job, err := s.jobs.GetModification(ctx, jobID); err == nil {
		return job.Status, domain.JobKindModify, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", "", err
	}
	job, err := s.jobs.GetUpscale(ctx, jobID)
	if err != nil {
		return "", "", err
	}
	return job.Status, domain.JobKindUpscale, nil
}

// finishSubmission enqueues the task and then deducts credit, logging
// the accepted inconsistency when the deduction fails after a
// successful enqueue.
func (s *Service) finishSubmission(ctx context.Context, jobID, userID string, task queue.Task) (*SubmitResult, error) {
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("ai: enqueue failed, job row left pending")
		return nil, fmt.Errorf("enqueue %s: %w", task.Kind, err)
	}
	if err := s.users.DecrementCredit(ctx, userID); err != nil {
		// The job is already queued; the user keeps the credit. Accepted
		// limitation of the create → enqueue → deduct ordering.
		s.logger.Error().Err(err).Str("job_id", jobID).Str("user_id", userID).Msg("ai: credit deduction failed after enqueue")
	}
	return &SubmitResult{JobID: jobID, Status: domain.JobStatusPending}, nil
}
