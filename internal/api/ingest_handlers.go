package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/tieredmem/internal/apperr"
	"github.com/MrWong99/tieredmem/internal/ingest"
)

// ingestRequest is POST /ingest's body.
type ingestRequest struct {
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	id, err := s.ingestPipe.IngestResource(r.Context(), req.Source, req.Content, req.Metadata)
	if err != nil {
		writeError(w, fmt.Errorf("ingest: %w", err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"resource_id": id,
		"created_at":  time.Now().UTC(),
	})
}

type extractRequest struct {
	ResourceID string `json:"resource_id"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	resourceID, err := uuid.Parse(req.ResourceID)
	if err != nil {
		writeError(w, apperr.NewValidation("resource_id", "must be a UUID"))
		return
	}

	items, err := s.ingestPipe.ExtractResource(r.Context(), resourceID)
	if err != nil {
		writeError(w, fmt.Errorf("extract: %w", err))
		return
	}

	ids := make([]uuid.UUID, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resource_id":   resourceID,
		"items_created": len(items),
		"item_ids":      ids,
	})
}

// handleProcess implements POST /process?limit=N: batch-extract every
// pending (unextracted) resource, up to limit.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	uow, err := s.stBegin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	resources, err := uow.Resources().ListUnextracted(r.Context(), limit)
	uow.Rollback(r.Context())
	if err != nil {
		writeError(w, fmt.Errorf("process: %w", apperr.NewBackend("process.list_unextracted", err)))
		return
	}

	processed := 0
	for _, res := range resources {
		if _, err := s.ingestPipe.ExtractResource(r.Context(), res.ID); err != nil {
			continue
		}
		processed++
	}
	writeJSON(w, http.StatusOK, map[string]any{"processed": processed})
}

// createItemRequest is POST /v2/items's body.
type createItemRequest struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	it, err := s.ingestPipe.CreateItem(r.Context(), ingest.ItemInput{
		Subject:    req.Subject,
		Predicate:  req.Predicate,
		Object:     req.Object,
		Category:   req.Category,
		Confidence: req.Confidence,
	})
	if err != nil {
		writeError(w, fmt.Errorf("create_item: %w", err))
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

// createMetaRequest is POST /v2/items/{id}/meta's body.
type createMetaRequest struct {
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence,omitempty"`
}

func (s *Server) handleCreateItemMeta(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createMetaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Confidence == 0 {
		req.Confidence = 1.0
	}

	uow, err := s.stBegin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer uow.Rollback(r.Context())

	meta, err := uow.Items().CreateMetaFact(r.Context(), id, req.Predicate, req.Object, req.Confidence)
	if err != nil {
		writeError(w, fmt.Errorf("create_item_meta: %w", apperr.NewBackend("create_item_meta", err)))
		return
	}
	if err := uow.Commit(r.Context()); err != nil {
		writeError(w, fmt.Errorf("create_item_meta: %w", apperr.NewBackend("create_item_meta.commit", err)))
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (s *Server) handleGetItemMeta(w http.ResponseWriter, r *http.Request) {
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

	meta, err := uow.Items().GetMetaFacts(r.Context(), id)
	if err != nil {
		writeError(w, fmt.Errorf("get_item_meta: %w", apperr.NewBackend("get_item_meta", err)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": meta})
}

func (s *Server) handleListItemsV2(w http.ResponseWriter, r *http.Request) {
	s.listItems(w, r)
}

func parseIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chiURLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.NewValidation("id", "must be a UUID")
	}
	return id, nil
}
