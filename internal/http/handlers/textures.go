package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"texturelab/internal/domain"
)

type textureResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	Tags       []string  `json:"tags"`
	S3Key      string    `json:"s3Key"`
	Resolution string    `json:"resolution"`
	URL        string    `json:"url,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (a *App) textureResponse(r *http.Request, t *domain.Texture) textureResponse {
	resp := textureResponse{
		ID:         t.ID,
		Name:       t.Name,
		Slug:       t.Slug,
		Tags:       t.Tags,
		S3Key:      t.S3Key,
		Resolution: t.Resolution,
		CreatedAt:  t.CreatedAt,
	}
	if url, err := a.Textures.DownloadURL(r.Context(), t); err == nil {
		resp.URL = url
	}
	return resp
}

// ListTextures returns one page of the caller's textures.
func (a *App) ListTextures(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	textures, total, err := a.Textures.List(r.Context(), userID, limit, offset)
	if err != nil {
		a.domainError(w, err)
		return
	}
	items := make([]textureResponse, 0, len(textures))
	for i := range textures {
		items = append(items, a.textureResponse(r, &textures[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"textures": items, "total": total})
}

// GetTexture returns a single texture by slug.
func (a *App) GetTexture(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "slug required")
		return
	}
	t, err := a.Textures.Get(r.Context(), slug)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, a.textureResponse(r, t))
}

// DeleteTexture removes a texture the caller owns.
func (a *App) DeleteTexture(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return
	}
	if err := a.Textures.Delete(r.Context(), userID, id); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "deleted"})
}
