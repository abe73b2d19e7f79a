package api

import (
	"fmt"
	"net/http"

	"github.com/MrWong99/tieredmem/internal/apperr"
	"github.com/MrWong99/tieredmem/internal/graph"
	"github.com/MrWong99/tieredmem/internal/resolve"
)

// handleGraphNeighbors implements GET /graph/neighbors?entity&depth=1.
func (s *Server) handleGraphNeighbors(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	if entity == "" {
		writeError(w, apperr.NewValidation("entity", "must not be empty"))
		return
	}
	depth := clampDepth(queryInt(r, "depth", defaultGraphDepth), defaultGraphDepth, 0)
	canonical := resolve.Resolve(entity)

	uow, err := s.stBegin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer uow.Rollback(r.Context())

	edges, err := graph.Neighbors(r.Context(), uow.Graph(), canonical, depth)
	if err != nil {
		writeError(w, fmt.Errorf("graph_neighbors: %w", apperr.NewBackend("graph_neighbors", err)))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entity": entity,
		"depth":  depth,
		"edges":  edges,
		"total":  len(edges),
	})
}

// handleGraphPaths implements GET /graph/paths?source&target?&max_depth=2&max_paths=20.
func (s *Server) handleGraphPaths(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		writeError(w, apperr.NewValidation("source", "must not be empty"))
		return
	}
	var target *string
	if raw := r.URL.Query().Get("target"); raw != "" {
		canonicalTarget := resolve.Resolve(raw)
		target = &canonicalTarget
	}
	maxDepth := clampDepth(queryInt(r, "max_depth", defaultFindPathsDepth), defaultFindPathsDepth, graph.MaxDepthCap)
	maxPaths := queryInt(r, "max_paths", defaultFindPathsCount)
	canonicalSource := resolve.Resolve(source)

	uow, err := s.stBegin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer uow.Rollback(r.Context())

	paths, err := graph.FindPaths(r.Context(), uow.Graph(), canonicalSource, target, maxDepth, maxPaths)
	if err != nil {
		writeError(w, fmt.Errorf("graph_paths: %w", apperr.NewBackend("graph_paths", err)))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"source":    source,
		"target":    target,
		"max_depth": maxDepth,
		"paths":     paths,
		"total":     len(paths),
	})
}
