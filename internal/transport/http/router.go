// Package httptransport assembles the public HTTP surface. Handlers stay in
// their feature packages; this package only owns middleware order and route
// grouping.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kanon/pkg/platform/middleware/auth"
	"kanon/pkg/platform/middleware/metadata"
	"kanon/pkg/platform/middleware/request"
	"kanon/pkg/platform/middleware/requesttime"
)

// Registrar mounts a feature's endpoints on a router.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router needs.
type Deps struct {
	Validator auth.JWTValidator
	Logger    *slog.Logger

	// Authenticated feature surfaces.
	Policy   Registrar
	PRB      Registrar
	Pairwise Registrar
	Cohort   Registrar
	Consent  Registrar
	Linkage  Registrar
	Audit    Registrar
}

// NewRouter wires the middleware stack and all endpoints. Everything except
// health and metrics requires a valid requester token.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Validator, deps.Logger))

		for _, registrar := range []Registrar{
			deps.Policy,
			deps.PRB,
			deps.Pairwise,
			deps.Cohort,
			deps.Consent,
			deps.Linkage,
			deps.Audit,
		} {
			if registrar != nil {
				registrar.Register(r)
			}
		}
	})

	return r
}
