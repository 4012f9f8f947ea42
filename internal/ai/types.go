package ai

import "texturelab/internal/domain"

// DefaultSize is used when a submission does not request a size.
const DefaultSize = "1024x1024"

var allowedSizes = map[string]struct{}{
	"256x256":   {},
	"512x512":   {},
	"1024x1024": {},
	"1792x1024": {},
	"1024x1792": {},
}

// ValidSize reports whether the requested output size is supported by
// the synthesis capability.
func ValidSize(size string) bool {
	_, ok := allowedSizes[size]
	return ok
}

// SubmitResult is returned by all three submission operations.
type SubmitResult struct {
	JobID  string           `json:"jobId"`
	Status domain.JobStatus `json:"status"`
}

// GenerationInput carries a generation submission.
type GenerationInput struct {
	Prompt          string
	ReferenceImages []string
	Size            string
}

// ModificationInput carries a modification submission.
type ModificationInput struct {
	SourceJobID     string
	Prompt          string
	ImageURL        string
	ReferenceImages []string
}

// UpscaleInput carries an upscale submission.
type UpscaleInput struct {
	SourceJobID string
	ImageURL    string
}

// StatusResult reports a job's lifecycle state. Progress is coarse:
// 100 once completed, 0 otherwise — nothing finer is tracked.
type StatusResult struct {
	JobID    string           `json:"id"`
	Status   domain.JobStatus `json:"status"`
	Progress int              `json:"progress"`
}

// TextureResult is the lightweight descriptor JobResults maps each
// stored generation image into.
type TextureResult struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	S3Key      string `json:"s3Key"`
	Resolution string `json:"resolution"`
}

// WebhookUpdate is the single mutation the worker applies to advance a
// job. Results carries zero or more result locators; generate replaces
// the stored list, modify appends one, upscale sets one.
type WebhookUpdate struct {
	JobID   string
	Status  domain.JobStatus
	Kind    domain.JobKind
	Results []string
}
