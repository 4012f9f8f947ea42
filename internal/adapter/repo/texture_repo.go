package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"texturelab/internal/domain"
)

// TextureRepositoryPG implements domain.TextureRepository.
type TextureRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewTextureRepository creates a new texture repository backed by PostgreSQL.
func NewTextureRepository(pool *pgxpool.Pool) *TextureRepositoryPG {
	return &TextureRepositoryPG{pool: pool}
}

// Create inserts a new texture record. The slug column carries a UNIQUE
// constraint; a violation surfaces as domain.ErrConflict so the slug
// retry loop can respond to races between concurrent workers.
func (r *TextureRepositoryPG) Create(ctx context.Context, texture *domain.Texture) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO textures (id, user_id, name, slug, tags, s3_key, resolution)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`,
		texture.ID,
		texture.UserID,
		texture.Name,
		texture.Slug,
		texture.Tags,
		texture.S3Key,
		texture.Resolution,
	)
	if err != nil && isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

// SlugExists reports whether any texture already uses the given slug.
func (r *TextureRepositoryPG) SlugExists(ctx context.Context, slug string) (bool, error) {
	row := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM textures WHERE slug = $1);`, slug)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// GetByID fetches a texture by its identifier.
func (r *TextureRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Texture, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, name, slug, tags, s3_key, resolution, created_at, updated_at
FROM textures
WHERE id = $1;
`, id)
	return scanTexture(row)
}

// GetBySlug fetches a texture by its slug.
func (r *TextureRepositoryPG) GetBySlug(ctx context.Context, slug string) (*domain.Texture, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, name, slug, tags, s3_key, resolution, created_at, updated_at
FROM textures
WHERE slug = $1;
`, slug)
	return scanTexture(row)
}

// ListByUser returns one page of the user's textures, newest first,
// along with the total count for pagination.
func (r *TextureRepositoryPG) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Texture, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM textures WHERE user_id = $1;`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, name, slug, tags, s3_key, resolution, created_at, updated_at
FROM textures
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;
`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var textures []domain.Texture
	for rows.Next() {
		var t domain.Texture
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Slug, &t.Tags, &t.S3Key, &t.Resolution, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		textures = append(textures, t)
	}
	return textures, total, rows.Err()
}

// Delete removes a texture owned by userID and returns the deleted
// record so callers can clean up object storage.
func (r *TextureRepositoryPG) Delete(ctx context.Context, userID, id string) (*domain.Texture, error) {
	row := r.pool.QueryRow(ctx, `
DELETE FROM textures
WHERE id = $1
  AND user_id = $2
RETURNING id, user_id, name, slug, tags, s3_key, resolution, created_at, updated_at;
`, id, userID)
	return scanTexture(row)
}

func scanTexture(row pgx.Row) (*domain.Texture, error) {
	var t domain.Texture
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Slug, &t.Tags, &t.S3Key, &t.Resolution, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// isUniqueViolation matches the Postgres unique_violation SQLSTATE.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "23505")
}
