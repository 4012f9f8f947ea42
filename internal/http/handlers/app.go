package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"texturelab/internal/ai"
	"texturelab/internal/domain"
	"texturelab/internal/infra"
	"texturelab/internal/middleware"
	"texturelab/internal/texture"
)

// App is the handler container wiring services into the router.
type App struct {
	AI       *ai.Service
	Textures *texture.Service
	Config   *infra.Config
	Logger   infra.Logger
}

func NewApp(aiSvc *ai.Service, textures *texture.Service, cfg *infra.Config, logger infra.Logger) *App {
	return &App{AI: aiSvc, Textures: textures, Config: cfg, Logger: logger}
}

type errorBody struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	StatusCode int    `json:"statusCode"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Message: message, Code: code, StatusCode: status})
}

// domainError maps service errors onto the API error contract.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrInsufficientCredit):
		a.error(w, http.StatusBadRequest, "insufficient_credit", "insufficient credits")
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", "conflicting update")
	default:
		a.Logger.Error().Err(err).Msg("api: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// Health reports liveness.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
