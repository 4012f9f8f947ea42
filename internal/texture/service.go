package texture

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"texturelab/internal/domain"
	"texturelab/internal/infra"
	"texturelab/internal/storage"
)

// slugAttempts bounds the collision-retry loop. Under concurrent
// workers producing the same base slug the loop is best-effort only;
// the UNIQUE constraint on textures.slug is the authoritative backstop
// and surfaces as domain.ErrConflict.
const slugAttempts = 100

// Service owns texture record lifecycle: creation on pipeline
// completion and the read/delete surface.
type Service struct {
	textures domain.TextureRepository
	store    storage.ObjectStore
	logger   infra.Logger
}

// NewService constructs a texture service.
func NewService(textures domain.TextureRepository, store storage.ObjectStore, logger infra.Logger) *Service {
	return &Service{textures: textures, store: store, logger: logger}
}

// UniqueSlug derives a slug from name and appends -1, -2, ... until no
// existing texture uses it. Termination is bounded by slugAttempts
// repository lookups.
func (s *Service) UniqueSlug(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = "texture"
	}
	candidate := base
	for i := 1; i <= slugAttempts; i++ {
		exists, err := s.textures.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("slug lookup: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("slug %q: %w", base, domain.ErrConflict)
}

// Create persists a texture record with a freshly derived unique slug.
// On a slug race it retries once against the constraint before giving up.
func (s *Service) Create(ctx context.Context, userID, name, s3Key, resolution string, tags []string) (*domain.Texture, error) {
	for attempt := 0; attempt < 2; attempt++ {
		slug, err := s.UniqueSlug(ctx, name)
		if err != nil {
			return nil, err
		}
		t := &domain.Texture{
			ID:         uuid.NewString(),
			UserID:     userID,
			Name:       name,
			Slug:       slug,
			Tags:       tags,
			S3Key:      s3Key,
			Resolution: resolution,
		}
		err = s.textures.Create(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("create texture: %w", err)
		}
		s.logger.Warn().Str("slug", slug).Msg("texture: slug raced, retrying")
	}
	return nil, fmt.Errorf("create texture: %w", domain.ErrConflict)
}

// Get returns a texture by slug.
func (s *Service) Get(ctx context.Context, slug string) (*domain.Texture, error) {
	return s.textures.GetBySlug(ctx, slug)
}

// List returns one page of the user's textures plus the total count.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]domain.Texture, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.textures.ListByUser(ctx, userID, limit, offset)
}

// Delete removes the texture record and best-effort deletes the stored
// object; a storage failure is logged, not surfaced, since the record
// is already gone.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	t, err := s.textures.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, t.S3Key); err != nil {
		s.logger.Warn().Err(err).Str("s3_key", t.S3Key).Msg("texture: object delete failed")
	}
	return nil
}

// DownloadURL returns a signed download URL for the texture's object.
func (s *Service) DownloadURL(ctx context.Context, t *domain.Texture) (string, error) {
	return s.store.SignedURL(ctx, t.S3Key)
}
