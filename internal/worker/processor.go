package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"texturelab/internal/domain"
	"texturelab/internal/infra"
	"texturelab/internal/provider/openai"
	"texturelab/internal/queue"
	"texturelab/internal/storage"
	"texturelab/internal/texture"
)

// Synthesizer is the slice of the AI provider the pipeline consumes.
// *openai.Client satisfies it; tests substitute a fake.
type Synthesizer interface {
	EnhancePrompt(ctx context.Context, userPrompt string, referenceImages [][]byte, limit int) (string, error)
	GenerateImage(ctx context.Context, prompt, size string) (string, error)
	EditImage(ctx context.Context, image []byte, prompt, model, size string) (string, error)
	DescribeImage(ctx context.Context, image []byte) (string, error)
}

const (
	// Prompt length caps mirror what the synthesis models accept per
	// output size tier.
	promptCapSmall = 1000
	promptCapLarge = 4000

	editModel = "dall-e-2"
	editSize  = "256x256"

	upscaleModel = "dall-e-3"
	upscaleSize  = "1024x1024"
	upscaleInstruction = "Upscale the image to 1024x1024. Keep the original image details. " +
		"Do not add anything to the image. Just upscale it."

	fallbackTitle = "Untitled Texture"
)

// Processor executes the staged external pipeline for one dequeued
// task at a time. Stages are strictly sequential within a job; each
// stage's output feeds the next. Any stage failure is terminal for the
// job and reported through the failed webhook — there is no automatic
// retry.
type Processor struct {
	provider Synthesizer
	store    storage.ObjectStore
	textures *texture.Service
	reporter StatusReporter
	fetcher  *http.Client
	logger   infra.Logger
}

// NewProcessor wires the pipeline's dependencies.
func NewProcessor(provider Synthesizer, store storage.ObjectStore, textures *texture.Service, reporter StatusReporter, fetcher *http.Client, logger infra.Logger) *Processor {
	if fetcher == nil {
		fetcher = &http.Client{Timeout: 60 * time.Second}
	}
	return &Processor{
		provider: provider,
		store:    store,
		textures: textures,
		reporter: reporter,
		fetcher:  fetcher,
		logger:   logger,
	}
}

// Process runs one task through its stage chain with the uniform
// wrapper: mark processing on entry, failed on any stage error,
// completed with result locators on success.
func (p *Processor) Process(ctx context.Context, task queue.Task) error {
	if err := p.reporter.Report(ctx, task.JobID, domain.JobStatusProcessing, task.Kind, nil); err != nil {
		return fmt.Errorf("report processing: %w", err)
	}

	var (
		results []string
		err     error
	)
	switch task.Kind {
	case domain.JobKindGenerate:
		results, err = p.generate(ctx, task)
	case domain.JobKindModify:
		results, err = p.modify(ctx, task)
	case domain.JobKindUpscale:
		results, err = p.upscale(ctx, task)
	default:
		err = fmt.Errorf("unsupported task kind %q", task.Kind)
	}

	if err != nil {
		p.logger.Error().Err(err).
			Str("job_id", task.JobID).
			Str("task", string(task.Kind)).
			Msg("worker: pipeline failed")
		if repErr := p.reporter.Report(ctx, task.JobID, domain.JobStatusFailed, task.Kind, nil); repErr != nil {
			p.logger.Error().Err(repErr).Str("job_id", task.JobID).Msg("worker: failed-status report failed")
		}
		return fmt.Errorf("%s pipeline: %w", task.Kind, domain.ErrUpstreamFailure)
	}

	if err := p.reporter.Report(ctx, task.JobID, domain.JobStatusCompleted, task.Kind, results); err != nil {
		return fmt.Errorf("report completed: %w", err)
	}
	p.logger.Info().
		Str("job_id", task.JobID).
		Str("task", string(task.Kind)).
		Int("results", len(results)).
		Msg("worker: pipeline completed")
	return nil
}

func (p *Processor) generate(ctx context.Context, task queue.Task) ([]string, error) {
	prompt := task.Prompt
	if len(task.ReferenceImages) > 0 {
		refs, err := p.loadReferences(ctx, task.ReferenceImages)
		if err != nil {
			return nil, fmt.Errorf("load references: %w", err)
		}
		limit := promptCapLarge
		if openai.SmallSize(task.Size) {
			limit = promptCapSmall
		}
		prompt, err = p.provider.EnhancePrompt(ctx, task.Prompt, refs, limit)
		if err != nil {
			return nil, fmt.Errorf("enhance prompt: %w", err)
		}
	}

	imageURL, err := p.provider.GenerateImage(ctx, prompt, task.Size)
	if err != nil {
		return nil, fmt.Errorf("synthesize image: %w", err)
	}
	data, err := p.fetch(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}

	name := p.describe(ctx, data)
	key := fmt.Sprintf("generated/%s/%d.png", task.UserID, time.Now().UnixMilli())
	if err := p.store.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	if _, err := p.textures.Create(ctx, task.UserID, name, key, task.Size, []string{"generated"}); err != nil {
		return nil, fmt.Errorf("create texture: %w", err)
	}
	return []string{imageURL}, nil
}

func (p *Processor) modify(ctx context.Context, task queue.Task) ([]string, error) {
	original, err := p.fetch(ctx, task.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch original: %w", err)
	}

	prompt := task.Prompt
	if len(task.ReferenceImages) > 0 {
		refs, err := p.loadReferences(ctx, task.ReferenceImages)
		if err != nil {
			return nil, fmt.Errorf("load references: %w", err)
		}
		// Edits always enhance at the largest cap.
		prompt, err = p.provider.EnhancePrompt(ctx, task.Prompt, refs, promptCapLarge)
		if err != nil {
			return nil, fmt.Errorf("enhance prompt: %w", err)
		}
	}

	editedURL, err := p.provider.EditImage(ctx, original, prompt, editModel, editSize)
	if err != nil {
		return nil, fmt.Errorf("edit image: %w", err)
	}
	edited, err := p.fetch(ctx, editedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch edited: %w", err)
	}

	name := p.describe(ctx, edited)
	key := fmt.Sprintf("modified/%s/%d_modified.png", task.UserID, time.Now().UnixMilli())
	if err := p.store.Put(ctx, key, edited); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	if _, err := p.textures.Create(ctx, task.UserID, name, key, "1k", []string{"modified"}); err != nil {
		return nil, fmt.Errorf("create texture: %w", err)
	}
	return []string{editedURL}, nil
}

func (p *Processor) upscale(ctx context.Context, task queue.Task) ([]string, error) {
	original, err := p.fetch(ctx, task.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch original: %w", err)
	}

	upscaledURL, err := p.provider.EditImage(ctx, original, upscaleInstruction, upscaleModel, upscaleSize)
	if err != nil {
		return nil, fmt.Errorf("upscale image: %w", err)
	}
	upscaled, err := p.fetch(ctx, upscaledURL)
	if err != nil {
		return nil, fmt.Errorf("fetch upscaled: %w", err)
	}

	originalName := p.describe(ctx, original)
	upscaledName := p.describe(ctx, upscaled)

	ts := time.Now().UnixMilli()
	originalKey := fmt.Sprintf("textures/%s/%d_original.png", task.UserID, ts)
	upscaledKey := fmt.Sprintf("textures/%s/%d_upscaled.png", task.UserID, ts)

	if err := p.store.Put(ctx, originalKey, original); err != nil {
		return nil, fmt.Errorf("store original: %w", err)
	}
	if err := p.store.Put(ctx, upscaledKey, upscaled); err != nil {
		return nil, fmt.Errorf("store upscaled: %w", err)
	}

	if _, err := p.textures.Create(ctx, task.UserID, originalName, originalKey, "1k", []string{"original"}); err != nil {
		return nil, fmt.Errorf("create original texture: %w", err)
	}
	if _, err := p.textures.Create(ctx, task.UserID, upscaledName, upscaledKey, "4k", []string{"upscaled"}); err != nil {
		return nil, fmt.Errorf("create upscaled texture: %w", err)
	}

	// Only the upscaled locator goes back on the job record.
	return []string{upscaledURL}, nil
}

// describe derives a title from pixel content. Description failures do
// not fail the job; the texture just gets a generic name.
func (p *Processor) describe(ctx context.Context, data []byte) string {
	name, err := p.provider.DescribeImage(ctx, data)
	if err != nil || strings.TrimSpace(name) == "" {
		p.logger.Warn().Err(err).Msg("worker: image description unavailable")
		return fallbackTitle
	}
	return strings.TrimSpace(name)
}

// fetch downloads image bytes from a locator produced by the provider.
func (p *Processor) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.fetcher.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// loadReferences resolves reference image locators into bytes. Remote
// locators are fetched; anything else is read from the upload path the
// API stored it under.
func (p *Processor) loadReferences(ctx context.Context, refs []string) ([][]byte, error) {
	images := make([][]byte, 0, len(refs))
	for _, ref := range refs {
		if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
			data, err := p.fetch(ctx, ref)
			if err != nil {
				return nil, err
			}
			images = append(images, data)
			continue
		}
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, err
		}
		images = append(images, data)
	}
	return images, nil
}
