package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MrWong99/tieredmem/internal/apperr"
	"github.com/MrWong99/tieredmem/internal/model"
	"github.com/MrWong99/tieredmem/internal/priority"
	"github.com/MrWong99/tieredmem/internal/retrieval"
)

// handleRetrieve implements GET /retrieve: §6's smart-search entry point.
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	category := r.URL.Query().Get("category")
	limit := queryInt(r, "limit", 20)

	uow, err := s.stBegin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer uow.Rollback(r.Context())

	resp, err := retrieval.SmartSearch(r.Context(), uow, s.embedder, query, category, limit, 0.5)
	if err != nil {
		writeError(w, fmt.Errorf("retrieve: %w", apperr.NewBackend("retrieve", err)))
		return
	}

	categories := map[string]bool{}
	for _, it := range resp.Items {
		categories[it.Category] = true
	}
	catList := make([]string, 0, len(categories))
	for c := range categories {
		catList = append(catList, c)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":       query,
		"categories":  catList,
		"items":       resp.Items,
		"total_items": resp.Total,
	})
}

// handleSearch implements GET /search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")
	limit := queryInt(r, "limit", 10)
	minSimilarity := queryFloat(r, "min_similarity", 0.5)

	uow, err := s.stBegin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer uow.Rollback(r.Context())

	resp, err := retrieval.SmartSearch(r.Context(), uow, s.embedder, query, category, limit, minSimilarity)
	if err != nil {
		writeError(w, fmt.Errorf("search: %w", apperr.NewBackend("search", err)))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"intent":  resp.Intent,
		"results": resp.Items,
		"total":   resp.Total,
	})
}

// handleContext implements GET /context: the tiered markdown context block.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var categories []string
	if raw := r.URL.Query().Get("categories"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				categories = append(categories, c)
			}
		}
	}
	maxChars := queryInt(r, "max_chars", 0)
	maxItems := queryInt(r, "max_items_per_category", 10)

	uow, err := s.stBegin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer uow.Rollback(r.Context())

	body, err := priority.BuildTieredContext(r.Context(), uow, categories, maxItems, maxChars, true)
	if err != nil {
		writeError(w, fmt.Errorf("context: %w", apperr.NewBackend("context", err)))
		return
	}
	if err := uow.Commit(r.Context()); err != nil {
		writeError(w, fmt.Errorf("context: %w", apperr.NewBackend("context.commit", err)))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"context": body})
}

// listItems backs both GET /items and GET /v2/items.
func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	limit := queryInt(r, "limit", 50)

	uow, err := s.stBegin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer uow.Rollback(r.Context())

	items, err := uow.Items().List(r.Context(), category, model.StatusActive, limit)
	if err != nil {
		writeError(w, fmt.Errorf("list_items: %w", apperr.NewBackend("list_items", err)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	s.listItems(w, r)
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	limit := queryInt(r, "limit", 50)

	uow, err := s.stBegin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer uow.Rollback(r.Context())

	resources, err := uow.Resources().List(r.Context(), source, nil, limit)
	if err != nil {
		writeError(w, fmt.Errorf("list_resources: %w", apperr.NewBackend("list_resources", err)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources, "total": len(resources)})
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	uow, err := s.stBegin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer uow.Rollback(r.Context())

	res, err := uow.Resources().Get(r.Context(), id)
	if err != nil {
		writeError(w, fmt.Errorf("get_resource: %w", apperr.NewBackend("get_resource", err)))
		return
	}
	if res == nil {
		writeError(w, apperr.NewNotFound("resource", id.String()))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	uow, err := s.stBegin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer uow.Rollback(r.Context())

	categories, err := uow.Categories().List(r.Context())
	if err != nil {
		writeError(w, fmt.Errorf("list_categories: %w", apperr.NewBackend("list_categories", err)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories, "total": len(categories)})
}

// handleStats implements GET /v2/stats: item counts by status, average
// confidence, and per-category item counts.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	uow, err := s.stBegin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer uow.Rollback(r.Context())

	byStatus, err := uow.Items().GetStatsByStatus(r.Context())
	if err != nil {
		writeError(w, fmt.Errorf("stats: %w", apperr.NewBackend("stats.by_status", err)))
		return
	}
	avgConfidence, err := uow.Items().GetAvgConfidence(r.Context(), model.StatusActive)
	if err != nil {
		writeError(w, fmt.Errorf("stats: %w", apperr.NewBackend("stats.avg_confidence", err)))
		return
	}
	perCategory, err := uow.Categories().CountItemsPerCategory(r.Context(), model.StatusActive)
	if err != nil {
		writeError(w, fmt.Errorf("stats: %w", apperr.NewBackend("stats.per_category", err)))
		return
	}
	embeddingCount, err := uow.Embeddings().Count(r.Context())
	if err != nil {
		writeError(w, fmt.Errorf("stats: %w", apperr.NewBackend("stats.embeddings", err)))
		return
	}
	edgeCount, err := uow.Graph().Count(r.Context())
	if err != nil {
		writeError(w, fmt.Errorf("stats: %w", apperr.NewBackend("stats.edges", err)))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items_by_status":  byStatus,
		"avg_confidence":   avgConfidence,
		"items_by_category": perCategory,
		"embeddings_total": embeddingCount,
		"edges_total":      edgeCount,
	})
}
