package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texturelab/internal/domain"
	"texturelab/internal/queue"
)

type fakeUsers struct {
	users      map[string]*domain.User
	deductions []string
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*domain.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) DecrementCredit(ctx context.Context, id string) error {
	u, ok := f.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	if u.Credits <= 0 {
		return domain.ErrInsufficientCredit
	}
	u.Credits--
	f.deductions = append(f.deductions, id)
	return nil
}

type fakeJobs struct {
	generations   map[string]*domain.GenerationJob
	modifications map[string]*domain.ModificationJob
	upscales      map[string]*domain.UpscaleJob

	// calls records lookup order for source-image resolution assertions.
	calls []string
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{
		generations:   map[string]*domain.GenerationJob{},
		modifications: map[string]*domain.ModificationJob{},
		upscales:      map[string]*domain.UpscaleJob{},
	}
}

func (f *fakeJobs) CreateGeneration(ctx context.Context, job *domain.GenerationJob) error {
	cp := *job
	f.generations[job.ID] = &cp
	return nil
}

func (f *fakeJobs) GetGeneration(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	job, ok := f.generations[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobs) SetGenerationResult(ctx context.Context, jobID string, status domain.JobStatus, genImages []string) error {
	job, ok := f.generations[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = status
	if genImages != nil {
		job.GenImages = genImages
	}
	return nil
}

func (f *fakeJobs) FindCompletedGenerationWithImage(ctx context.Context, userID, imageURL string) (*domain.GenerationJob, error) {
	f.calls = append(f.calls, "generation")
	for _, job := range f.generations {
		if job.UserID != userID || job.Status != domain.JobStatusCompleted {
			continue
		}
		for _, img := range job.GenImages {
			if img == imageURL {
				cp := *job
				return &cp, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeJobs) CreateModification(ctx context.Context, job *domain.ModificationJob) error {
	cp := *job
	f.modifications[job.ID] = &cp
	return nil
}

func (f *fakeJobs) GetModification(ctx context.Context, jobID string) (*domain.ModificationJob, error) {
	job, ok := f.modifications[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobs) GetModificationBySource(ctx context.Context, userID, generationJobID string) (*domain.ModificationJob, error) {
	for _, job := range f.modifications {
		if job.UserID == userID && job.GenerationJobID == generationJobID {
			cp := *job
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeJobs) ReuseModification(ctx context.Context, jobID, prompt string) error {
	job, ok := f.modifications[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Prompt = prompt
	job.Modifications++
	job.Status = domain.JobStatusPending
	return nil
}

func (f *fakeJobs) SetModificationResult(ctx context.Context, jobID string, status domain.JobStatus, image *string) error {
	job, ok := f.modifications[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = status
	if image != nil {
		for _, existing := range job.Images {
			if existing == *image {
				return nil
			}
		}
		job.Images = append(job.Images, *image)
	}
	return nil
}

func (f *fakeJobs) FindCompletedModificationWithImage(ctx context.Context, userID, imageURL string) (*domain.ModificationJob, error) {
	f.calls = append(f.calls, "modification")
	for _, job := range f.modifications {
		if job.UserID != userID || job.Status != domain.JobStatusCompleted {
			continue
		}
		for _, img := range job.Images {
			if img == imageURL {
				cp := *job
				return &cp, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeJobs) CreateUpscale(ctx context.Context, job *domain.UpscaleJob) error {
	cp := *job
	f.upscales[job.ID] = &cp
	return nil
}

func (f *fakeJobs) GetUpscale(ctx context.Context, jobID string) (*domain.UpscaleJob, error) {
	job, ok := f.upscales[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobs) SetUpscaleResult(ctx context.Context, jobID string, status domain.JobStatus, upscaledImage *string) error {
	job, ok := f.upscales[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = status
	if upscaledImage != nil {
		job.UpscaledImage = upscaledImage
	}
	return nil
}

// fakeQueue records tasks and can assert on repository state at enqueue
// time via the onEnqueue hook.
type fakeQueue struct {
	tasks     []queue.Task
	failWith  error
	onEnqueue func(queue.Task)
}

func (f *fakeQueue) Enqueue(ctx context.Context, task queue.Task) error {
	if f.failWith != nil {
		return f.failWith
	}
	if f.onEnqueue != nil {
		f.onEnqueue(task)
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func newTestService(users *fakeUsers, jobs *fakeJobs, q *fakeQueue) *Service {
	return NewService(users, jobs, q, zerolog.Nop())
}

func TestSubmitGenerationHappyPath(t *testing.T) {
	users := newFakeUsers(&domain.User{ID: "u1", Credits: 3})
	jobs := newFakeJobs()
	q := &fakeQueue{}
	svc := newTestService(users, jobs, q)
	ctx := context.Background()

	// The job row must exist before its message does, so a consumer can
	// never dequeue a task with no backing record.
	q.onEnqueue = func(task queue.Task) {
		if _, err := jobs.GetGeneration(ctx, task.JobID); err != nil {
			t.Errorf("task enqueued before job row existed: %v", err)
		}
	}

	res, err := svc.SubmitGeneration(ctx, "u1", GenerationInput{Prompt: "mossy cobblestone"})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, res.Status)
	require.Len(t, q.tasks, 1)
	assert.Equal(t, domain.JobKindGenerate, q.tasks[0].Kind)
	assert.Equal(t, res.JobID, q.tasks[0].JobID)
	assert.Equal(t, DefaultSize, q.tasks[0].Size)
	assert.Equal(t, 2, users.users["u1"].Credits)
}

func TestSubmitGenerationRejectsZeroCredit(t *testing.T) {
	users := newFakeUsers(&domain.User{ID: "u1", Credits: 0})
	jobs := newFakeJobs()
	q := &fakeQueue{}
	svc := newTestService(users, jobs, q)

	_, err := svc.SubmitGeneration(context.Background(), "u1", GenerationInput{Prompt: "brick"})
	require.ErrorIs(t, err, domain.ErrInsufficientCredit)
	assert.Empty(t, jobs.generations, "no job row may be created for a rejected submission")
	assert.Empty(t, q.tasks, "no message may be enqueued for a rejected submission")
}

func TestSubmitGenerationValidation(t *testing.T) {
	users := newFakeUsers(&domain.User{ID: "u1", Credits: 1})
	svc := newTestService(users, newFakeJobs(), &fakeQueue{})
	ctx := context.Background()

	_, err := svc.SubmitGeneration(ctx, "u1", GenerationInput{Prompt: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.SubmitGeneration(ctx, "u1", GenerationInput{Prompt: "ok", Size: "640x480"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSubmitGenerationEnqueueFailureKeepsCredit(t *testing.T) {
	users := newFakeUsers(&domain.User{ID: "u1", Credits: 1})
	jobs := newFakeJobs()
	q := &fakeQueue{failWith: errors.New("redis down")}
	svc := newTestService(users, jobs, q)

	_, err := svc.SubmitGeneration(context.Background(), "u1", GenerationInput{Prompt: "brick"})
	require.Error(t, err)
	assert.Equal(t, 1, users.users["u1"].Credits, "credit must not be deducted when enqueue fails")
	assert.Len(t, jobs.generations, 1, "the pending row is left behind for inspection")
}

func TestSubmitModificationReusesExistingJob(t *testing.T) {
	users := newFakeUsers(&domain.User{ID: "u1", Credits: 5})
	jobs := newFakeJobs()
	jobs.generations["gen1"] = &domain.GenerationJob{
		ID: "gen1", UserID: "u1", Status: domain.JobStatusCompleted,
		GenImages: []string{"https://img/one.png"},
	}
	q := &fakeQueue{}
	svc := newTestService(users, jobs, q)
	ctx := context.Background()

	in := ModificationInput{SourceJobID: "gen1", Prompt: "make it darker", ImageURL: "https://img/one.png"}
	first, err := svc.SubmitModification(ctx, "u1", in)
	require.NoError(t, err)
	require.Len(t, jobs.modifications, 1)
	assert.Equal(t, 1, jobs.modifications[first.JobID].Modifications)

	in.Prompt = "now make it mossy"
	second, err := svc.SubmitModification(ctx, "u1", in)
	require.NoError(t, err)
	assert.Equal(t, first.JobID, second.JobID, "re-modifying the same source reuses the job row")
	require.Len(t, jobs.modifications, 1)
	mod := jobs.modifications[first.JobID]
	assert.Equal(t, 2, mod.Modifications)
	assert.Equal(t, "now make it mossy", mod.Prompt)
	assert.Equal(t, domain.JobStatusPending, mod.Status)
	assert.Len(t, q.tasks, 2, "each submission still enqueues pipeline work")
	assert.Equal(t, 3, users.users["u1"].Credits)
}

func TestSubmitModificationUnknownSourceImage(t *testing.T) {
	users := newFakeUsers(&domain.User{ID: "u1", Credits: 5})
	svc := newTestService(users, newFakeJobs(), &fakeQueue{})

	_, err := svc.SubmitModification(context.Background(), "u1", ModificationInput{
		SourceJobID: "gen1", Prompt: "darker", ImageURL: "https://img/unknown.png",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSourceImageSearchPrefersModifications(t *testing.T) {
	users := newFakeUsers(&domain.User{ID: "u1", Credits: 5})
	jobs := newFakeJobs()
	// The same locator appears on both a completed modification and a
	// completed generation; the modification must win the search.
	jobs.modifications["mod1"] = &domain.ModificationJob{
		ID: "mod1", UserID: "u1", GenerationJobID: "gen1",
		Status: domain.JobStatusCompleted, Images: []string{"https://img/shared.png"},
	}
	jobs.generations["gen1"] = &domain.GenerationJob{
		ID: "gen1", UserID: "u1", Status: domain.JobStatusCompleted,
		GenImages: []string{"https://img/shared.png"},
	}
	svc := newTestService(users, jobs, &fakeQueue{})

	_, err := svc.SubmitUpscale(context.Background(), "u1", UpscaleInput{ImageURL: "https://img/shared.png"})
	require.NoError(t, err)
	require.NotEmpty(t, jobs.calls)
	assert.Equal(t, "modification", jobs.calls[0])
	assert.NotContains(t, jobs.calls, "generation", "generation store must not be consulted once the modification matched")
}

func TestJobStatusProgress(t *testing.T) {
	jobs := newFakeJobs()
	jobs.generations["gen1"] = &domain.GenerationJob{ID: "gen1", Status: domain.JobStatusProcessing}
	jobs.upscales["up1"] = &domain.UpscaleJob{ID: "up1", Status: domain.JobStatusCompleted}
	svc := newTestService(newFakeUsers(), jobs, &fakeQueue{})
	ctx := context.Background()

	res, err := svc.JobStatus(ctx, "gen1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, res.Status)
	assert.Equal(t, 0, res.Progress)

	res, err = svc.JobStatus(ctx, "up1")
	require.NoError(t, err)
	assert.Equal(t, 100, res.Progress)

	_, err = svc.JobStatus(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobResults(t *testing.T) {
	jobs := newFakeJobs()
	jobs.generations["done"] = &domain.GenerationJob{
		ID: "done", Size: "512x512", Status: domain.JobStatusCompleted,
		GenImages: []string{"https://img/a.png", "https://img/b.png"},
	}
	jobs.generations["bad"] = &domain.GenerationJob{ID: "bad", Status: domain.JobStatusFailed}
	svc := newTestService(newFakeUsers(), jobs, &fakeQueue{})
	ctx := context.Background()

	results, err := svc.JobResults(ctx, "done")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://img/a.png", results[0].S3Key)
	assert.Equal(t, "512x512", results[0].Resolution)

	// A failed job is still found; it just has nothing to show.
	results, err = svc.JobResults(ctx, "bad")
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = svc.JobResults(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplyWebhookLifecycle(t *testing.T) {
	jobs := newFakeJobs()
	jobs.generations["gen1"] = &domain.GenerationJob{ID: "gen1", Status: domain.JobStatusPending}
	svc := newTestService(newFakeUsers(), jobs, &fakeQueue{})
	ctx := context.Background()

	require.NoError(t, svc.ApplyWebhook(ctx, WebhookUpdate{
		JobID: "gen1", Status: domain.JobStatusProcessing, Kind: domain.JobKindGenerate,
	}))
	assert.Equal(t, domain.JobStatusProcessing, jobs.generations["gen1"].Status)

	done := WebhookUpdate{
		JobID: "gen1", Status: domain.JobStatusCompleted, Kind: domain.JobKindGenerate,
		Results: []string{"https://img/out.png"},
	}
	require.NoError(t, svc.ApplyWebhook(ctx, done))
	assert.Equal(t, []string{"https://img/out.png"}, jobs.generations["gen1"].GenImages)

	// Redelivered terminal report: re-applying must leave exactly the
	// same stored state behind.
	require.NoError(t, svc.ApplyWebhook(ctx, done))
	assert.Equal(t, []string{"https://img/out.png"}, jobs.generations["gen1"].GenImages)
}

func TestApplyWebhookRejectsBackwardTransition(t *testing.T) {
	jobs := newFakeJobs()
	jobs.generations["gen1"] = &domain.GenerationJob{ID: "gen1", Status: domain.JobStatusCompleted, GenImages: []string{"a"}}
	svc := newTestService(newFakeUsers(), jobs, &fakeQueue{})

	err := svc.ApplyWebhook(context.Background(), WebhookUpdate{
		JobID: "gen1", Status: domain.JobStatusProcessing, Kind: domain.JobKindGenerate,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, []string{"a"}, jobs.generations["gen1"].GenImages)
}

func TestApplyWebhookRepeatedProcessingIsNoOp(t *testing.T) {
	jobs := newFakeJobs()
	jobs.modifications["mod1"] = &domain.ModificationJob{ID: "mod1", Status: domain.JobStatusProcessing}
	svc := newTestService(newFakeUsers(), jobs, &fakeQueue{})

	err := svc.ApplyWebhook(context.Background(), WebhookUpdate{
		JobID: "mod1", Status: domain.JobStatusProcessing, Kind: domain.JobKindModify,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, jobs.modifications["mod1"].Status)
}

func TestApplyWebhookModificationDedupesImage(t *testing.T) {
	jobs := newFakeJobs()
	jobs.modifications["mod1"] = &domain.ModificationJob{ID: "mod1", Status: domain.JobStatusProcessing}
	svc := newTestService(newFakeUsers(), jobs, &fakeQueue{})
	ctx := context.Background()

	done := WebhookUpdate{
		JobID: "mod1", Status: domain.JobStatusCompleted, Kind: domain.JobKindModify,
		Results: []string{"https://img/edit.png"},
	}
	require.NoError(t, svc.ApplyWebhook(ctx, done))
	require.NoError(t, svc.ApplyWebhook(ctx, done))
	assert.Equal(t, []string{"https://img/edit.png"}, jobs.modifications["mod1"].Images)
}

func TestApplyWebhookValidation(t *testing.T) {
	svc := newTestService(newFakeUsers(), newFakeJobs(), &fakeQueue{})
	ctx := context.Background()

	err := svc.ApplyWebhook(ctx, WebhookUpdate{Status: domain.JobStatusCompleted, Kind: domain.JobKindGenerate})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = svc.ApplyWebhook(ctx, WebhookUpdate{JobID: "x", Status: "done", Kind: domain.JobKindGenerate})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = svc.ApplyWebhook(ctx, WebhookUpdate{JobID: "x", Status: domain.JobStatusCompleted, Kind: "transmogrify"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
