package domain

import "time"

// JobKind enumerates the three asynchronous texture job categories.
type JobKind string

const (
	JobKindGenerate JobKind = "generate"
	JobKindModify   JobKind = "modify"
	JobKindUpscale  JobKind = "upscale"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Valid reports whether s is a known lifecycle state.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether moving from s to next is allowed. The
// lifecycle only advances pending → processing → {completed|failed};
// re-applying the current terminal state is permitted so status updates
// stay idempotent under queue redelivery.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s == next && s.Terminal() {
		return true
	}
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next.Terminal()
	case JobStatusProcessing:
		return next.Terminal()
	}
	return false
}

// GenerationJob tracks one text-to-texture generation request.
type GenerationJob struct {
	ID        string
	UserID    string
	Prompt    string
	Size      string
	Status    JobStatus
	GenImages []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ModificationJob tracks edits applied to a previously generated
// texture. One row exists per (user, source job); modifying the same
// source again bumps Modifications and re-enters the pipeline instead
// of creating a new row.
type ModificationJob struct {
	ID              string
	UserID          string
	GenerationJobID string
	Prompt          string
	Images          []string
	Modifications   int
	Status          JobStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UpscaleJob tracks an upscale of a single source image. UpscaledImage
// stays nil until the pipeline completes.
type UpscaleJob struct {
	ID            string
	UserID        string
	OriginalImage string
	UpscaledImage *string
	Status        JobStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
