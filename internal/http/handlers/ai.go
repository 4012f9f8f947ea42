package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"texturelab/internal/ai"
	"texturelab/internal/domain"
)

type generateRequest struct {
	Prompt          string   `json:"prompt"`
	ReferenceImages []string `json:"referenceImages,omitempty"`
	Size            string   `json:"size,omitempty"`
}

type modifyRequest struct {
	JobID           string   `json:"jobId"`
	Prompt          string   `json:"prompt"`
	ImageURL        string   `json:"imageUrl"`
	ReferenceImages []string `json:"referenceImages,omitempty"`
}

type upscaleRequest struct {
	JobID    string `json:"jobId"`
	ImageURL string `json:"imageUrl"`
}

// webhookRequest is the worker's status report. Result may arrive as a
// single locator or a list; it is normalized to a list.
type webhookRequest struct {
	JobID  string          `json:"jobId"`
	Status string          `json:"status"`
	Type   string          `json:"type"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Generate accepts a texture generation submission.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	res, err := a.AI.SubmitGeneration(r.Context(), userID, ai.GenerationInput{
		Prompt:          req.Prompt,
		ReferenceImages: req.ReferenceImages,
		Size:            req.Size,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, res)
}

// Modify accepts a texture modification submission.
func (a *App) Modify(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req modifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	res, err := a.AI.SubmitModification(r.Context(), userID, ai.ModificationInput{
		SourceJobID:     req.JobID,
		Prompt:          req.Prompt,
		ImageURL:        req.ImageURL,
		ReferenceImages: req.ReferenceImages,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, res)
}

// Upscale accepts a texture upscale submission.
func (a *App) Upscale(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req upscaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	res, err := a.AI.SubmitUpscale(r.Context(), userID, ai.UpscaleInput{
		SourceJobID: req.JobID,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, res)
}

// JobStatus returns the lifecycle state of any job kind.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "jobId required")
		return
	}
	res, err := a.AI.JobStatus(r.Context(), jobID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

// JobResults returns the texture descriptors of a generation job.
func (a *App) JobResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "jobId required")
		return
	}
	results, err := a.AI.JobResults(r.Context(), jobID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"textures": results})
}

// Webhook ingests the worker's status reports. It is guarded by the
// shared worker token, not user auth, and keeps the 200 contract even
// for repeated deliveries of the same terminal state.
func (a *App) Webhook(w http.ResponseWriter, r *http.Request) {
	if !a.authorizeWorker(r) {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid worker token")
		return
	}
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	update := ai.WebhookUpdate{
		JobID:   req.JobID,
		Status:  domain.JobStatus(req.Status),
		Kind:    domain.JobKind(req.Type),
		Results: normalizeResult(req.Result),
	}
	if err := a.AI.ApplyWebhook(r.Context(), update); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) authorizeWorker(r *http.Request) bool {
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
	return a.Config.WebhookToken != "" && token == a.Config.WebhookToken
}

// normalizeResult accepts either a JSON string or a JSON string array.
func normalizeResult(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}
