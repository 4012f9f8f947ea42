package domain

import "time"

// Texture is a persisted, named image artifact produced by a completed
// job. Slug is unique across all textures; collisions are resolved by
// the slug retry loop with the database constraint as the backstop.
type Texture struct {
	ID         string
	UserID     string
	Name       string
	Slug       string
	Tags       []string
	S3Key      string
	Resolution string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
