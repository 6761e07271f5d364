package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kalambet/folio/internal/pipeline"
	"github.com/kalambet/folio/internal/render"
	"github.com/kalambet/folio/internal/tenant"
)

const msgPortfolioNotFound = "Portfolio not found"

// PortfolioLoader runs the resolve, fetch and normalize stages for a request.
type PortfolioLoader interface {
	Load(ctx context.Context, id tenant.Identity) pipeline.Result
}

// PageRenderer writes one page of a template variant.
type PageRenderer interface {
	Render(w io.Writer, v render.Variant, page render.Page, data render.PageData) error
}

type SiteDeps struct {
	Loader   PortfolioLoader
	Renderer PageRenderer
	Rules    tenant.Rules

	// AllowedOrigins feeds CORS on /api. Empty means "*".
	AllowedOrigins []string

	// Admin, when non-nil, is mounted at /admin.
	Admin http.Handler

	Logger *slog.Logger
}

// NewSiteHandler returns the public router: tenant pages keyed on the
// request host, /health, and the JSON API under /api.
func NewSiteHandler(deps SiteDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &site{loader: deps.Loader, renderer: deps.Renderer, logger: logger}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(tenant.Middleware(deps.Rules))
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)

	r.Get("/", s.page(render.PageHome))
	r.Get("/projects", s.page(render.PageProjects))
	r.Get("/projects/{id}", s.page(render.PageProject))
	r.Get("/experiences", s.page(render.PageExperiences))
	r.Get("/experiences/{id}", s.page(render.PageExperience))

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", requestIDHeader},
			ExposedHeaders:   []string{requestIDHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		r.Get("/tenant", handleTenant)
		r.Get("/portfolio", s.handlePortfolio)
	})

	if deps.Admin != nil {
		r.Mount("/admin", deps.Admin)
	}

	return r
}

type site struct {
	loader   PortfolioLoader
	renderer PageRenderer
	logger   *slog.Logger
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleTenant(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenant.FromContext(r.Context()))
}

func (s *site) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	res := s.loader.Load(r.Context(), tenant.FromContext(r.Context()))
	switch res.Status {
	case pipeline.StatusOK:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res.Profile)
	case pipeline.StatusUnresolved:
		httpError(w, http.StatusNotFound, "not_found_error", msgPortfolioNotFound)
	case pipeline.StatusCanceled:
		// Client is gone.
	default:
		httpError(w, http.StatusBadGateway, "api_error", "%s", res.Message)
	}
}

func (s *site) page(p render.Page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := s.loader.Load(r.Context(), tenant.FromContext(r.Context()))
		switch res.Status {
		case pipeline.StatusOK:
		case pipeline.StatusUnresolved:
			writeErrorPage(w, http.StatusNotFound, msgPortfolioNotFound, "")
			return
		case pipeline.StatusCanceled:
			return
		default:
			writeErrorPage(w, http.StatusBadGateway, "Something went wrong", res.Message)
			return
		}

		data := render.PageData{Profile: *res.Profile, ID: chi.URLParam(r, "id")}
		variant := render.ParseVariant(res.Profile.TemplateID)

		status := http.StatusOK
		if variant != render.VariantUnknown && !detailExists(p, data) {
			status = http.StatusNotFound
		}

		var buf bytes.Buffer
		if err := s.renderer.Render(&buf, variant, p, data); err != nil {
			s.logger.Error("render failed", "template", res.Profile.TemplateID, "page", p.String(), "error", err)
			writeErrorPage(w, http.StatusInternalServerError, "Something went wrong", "")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		buf.WriteTo(w)
	}
}

func detailExists(p render.Page, data render.PageData) bool {
	switch p {
	case render.PageProject:
		_, _, ok := render.FindProject(data.Profile, data.ID)
		return ok
	case render.PageExperience:
		_, _, ok := render.FindExperience(data.Profile, data.ID)
		return ok
	default:
		return true
	}
}

var errorPage = template.Must(template.New("error").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body class="error-page">
<main>
  <h1>{{.Title}}</h1>
  {{- with .Detail}}
  <p>{{.}}</p>
  {{- end}}
</main>
</body>
</html>
`))

func writeErrorPage(w http.ResponseWriter, code int, title, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	errorPage.Execute(w, struct{ Title, Detail string }{title, detail})
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
