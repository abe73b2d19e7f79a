// Package api implements the HTTP transport edge (C9): every endpoint in
// §6 of the specification, routed with github.com/go-chi/chi/v5.
//
// The teacher carries no HTTP server of its own — its only network
// surfaces are a Discord gateway and an MCP stdio server — so the routing
// stack itself is an enrichment pulled from the rest of the retrieval
// pack (2lar-b2's interfaces/http/rest/router.go routes a near-identical
// node/graph/category domain through chi.Route groups, chi middleware,
// and a health/ready pair). Handler bodies follow
// internal/mcp/tools/memorytool/memorytool.go's JSON-in/validate/call/
// JSON-out shape and fmt.Errorf("op: %w", err) wrapping convention,
// served over chi routes instead of MCP tool calls.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/tieredmem/internal/apperr"
	"github.com/MrWong99/tieredmem/internal/health"
	"github.com/MrWong99/tieredmem/internal/ingest"
	"github.com/MrWong99/tieredmem/internal/maintenance"
	"github.com/MrWong99/tieredmem/internal/observe"
	"github.com/MrWong99/tieredmem/internal/store"
	embedprovider "github.com/MrWong99/tieredmem/pkg/provider/embeddings"
	llmprovider "github.com/MrWong99/tieredmem/pkg/provider/llm"
)

// defaultGraphDepth, defaultFindPathsDepth and defaultFindPathsCount are the
// query-parameter fallbacks of /graph/neighbors and /graph/paths. They are
// applied before the graph package is called: graph.FindPaths by itself
// treats a non-positive maxDepth as MaxDepthCap and a non-positive maxPaths
// as no limit.
const (
	defaultGraphDepth     = 1
	defaultFindPathsDepth = 2
	defaultFindPathsCount = 20
)

// Server wires every domain package (ingest, retrieval, graph, priority,
// maintenance) to the HTTP routes that expose them.
type Server struct {
	st         store.Store
	ingestPipe *ingest.Pipeline
	maint      *maintenance.Runner
	embedder   embedprovider.Provider
	llmProv    llmprovider.Provider
	metrics    *observe.Metrics
	health     *health.Handler
}

// New builds a Server. embedder and llmProv may be nil; handlers that need
// them degrade per §7 rather than failing the request.
func New(st store.Store, ingestPipe *ingest.Pipeline, maint *maintenance.Runner, embedder embedprovider.Provider, llmProv llmprovider.Provider, metrics *observe.Metrics, healthHandler *health.Handler) *Server {
	return &Server{
		st:         st,
		ingestPipe: ingestPipe,
		maint:      maint,
		embedder:   embedder,
		llmProv:    llmProv,
		metrics:    metrics,
		health:     healthHandler,
	}
}

func promHandler() http.Handler {
	return promhttp.Handler()
}

// Router builds the full chi.Router: global middleware, health, metrics,
// and every domain route group from §6.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(observe.Middleware(s.metrics))

	r.Get("/health", s.health.Healthz)
	r.Get("/health/detailed", s.health.Readyz)
	r.Handle("/metrics", promHandler())
	r.Post("/metrics/reset", s.handleMetricsReset)

	r.Post("/ingest", s.handleIngest)
	r.Post("/extract", s.handleExtract)
	r.Post("/process", s.handleProcess)

	r.Route("/v2/items", func(r chi.Router) {
		r.Post("/", s.handleCreateItem)
		r.Get("/", s.handleListItemsV2)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/meta", s.handleGetItemMeta)
			r.Post("/meta", s.handleCreateItemMeta)
		})
	})

	r.Get("/retrieve", s.handleRetrieve)
	r.Get("/search", s.handleSearch)
	r.Get("/context", s.handleContext)
	r.Get("/items", s.handleListItems)
	r.Get("/resources", s.handleListResources)
	r.Get("/resources/{id}", s.handleGetResource)
	r.Get("/categories", s.handleListCategories)
	r.Get("/v2/categories", s.handleListCategories)
	r.Get("/v2/stats", s.handleStats)

	r.Get("/graph/neighbors", s.handleGraphNeighbors)
	r.Get("/graph/paths", s.handleGraphPaths)

	r.Post("/jobs/nightly", s.handleJobNightly)
	r.Post("/jobs/weekly", s.handleJobWeekly)
	r.Post("/jobs/monthly", s.handleJobMonthly)
	r.Post("/summarize", s.handleSummarize)

	return r
}

func clampDepth(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

// stBegin opens a UnitOfWork against the server's store, wrapping any
// failure as a Backend error so handlers never hand a bare storage error to
// writeError.
func (s *Server) stBegin(r *http.Request) (store.UnitOfWork, error) {
	uow, err := s.st.Begin(r.Context())
	if err != nil {
		return nil, apperr.NewBackend("api.begin", err)
	}
	return uow, nil
}

// chiURLParam reads a chi route parameter from r.
func chiURLParam(r *http.Request, name string) string {
	return chi.URLParamFromCtx(r.Context(), name)
}
