package api

import (
	"fmt"
	"net/http"

	"github.com/MrWong99/tieredmem/internal/apperr"
	"github.com/MrWong99/tieredmem/internal/llm"
	"github.com/MrWong99/tieredmem/internal/model"
)

func (s *Server) handleJobNightly(w http.ResponseWriter, r *http.Request) {
	stats, err := s.maint.Nightly(r.Context())
	if err != nil {
		writeError(w, fmt.Errorf("jobs.nightly: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleJobWeekly(w http.ResponseWriter, r *http.Request) {
	stats, err := s.maint.Weekly(r.Context())
	if err != nil {
		writeError(w, fmt.Errorf("jobs.weekly: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleJobMonthly(w http.ResponseWriter, r *http.Request) {
	stats, err := s.maint.Monthly(r.Context())
	if err != nil {
		writeError(w, fmt.Errorf("jobs.monthly: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleSummarize implements POST /summarize: regenerate every active
// category's cached summary and return the full set, independent of the
// nightly pipeline's own summary-refresh step.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	uow, err := s.stBegin(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer uow.Rollback(r.Context())

	categories, err := uow.Items().ListDistinctCategories(r.Context(), model.StatusActive)
	if err != nil {
		writeError(w, fmt.Errorf("summarize: %w", apperr.NewBackend("summarize.list_categories", err)))
		return
	}

	summaries := make(map[string]string, len(categories))
	for _, category := range categories {
		items, err := uow.Items().List(r.Context(), category, model.StatusActive, 1000)
		if err != nil {
			writeError(w, fmt.Errorf("summarize: %w", apperr.NewBackend("summarize.list_items", err)))
			return
		}
		summary, err := llm.BuildCategorySummary(r.Context(), s.llmProv, category, items)
		if err != nil {
			summary = fmt.Sprintf("No information available for %s.", category)
		}
		if err := uow.Categories().UpdateSummary(r.Context(), category, summary); err != nil {
			writeError(w, fmt.Errorf("summarize: %w", apperr.NewBackend("summarize.update", err)))
			return
		}
		summaries[category] = summary
	}

	if err := uow.Commit(r.Context()); err != nil {
		writeError(w, fmt.Errorf("summarize: %w", apperr.NewBackend("summarize.commit", err)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": summaries})
}

// handleMetricsReset implements POST /metrics/reset. OpenTelemetry
// instruments have no reset primitive exposed through the metric.Meter API
// — only the underlying SDK's reader can be reconfigured — so this only
// calls Metrics.Reset, which counts reset requests; every OTel instrument
// keeps its accumulated values. See DESIGN.md.
func (s *Server) handleMetricsReset(w http.ResponseWriter, r *http.Request) {
	s.metrics.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"reset": true})
}
