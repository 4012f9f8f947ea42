package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"texturelab/internal/http/handlers"
	"texturelab/internal/middleware"
)

// NewRouter assembles the API surface. The webhook route sits outside
// user auth: it is invoked by the worker and guarded by the shared
// token inside the handler.
func NewRouter(app *handlers.App) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.CORS(app.Config.CORSOrigins))

	r.Get("/healthz", app.Health)

	r.Route("/ai", func(r chi.Router) {
		r.Post("/webhook", app.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(app.Config.JWTSecret))
			r.Post("/generate", app.Generate)
			r.Post("/modify", app.Modify)
			r.Post("/upscale", app.Upscale)
			r.Get("/status/{jobId}", app.JobStatus)
			r.Get("/job-results/{jobId}", app.JobResults)
		})
	})

	r.Route("/textures", func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.Config.JWTSecret))
		r.Get("/", app.ListTextures)
		r.Get("/{slug}", app.GetTexture)
		r.Delete("/{id}", app.DeleteTexture)
	})

	return r
}
