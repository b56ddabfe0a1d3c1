package handlers

import (
	"net/http"

	"bobbin-backend/application/commands"
	"bobbin-backend/application/queries"
	"bobbin-backend/application/services"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ConceptHandler handles concept-related HTTP requests
type ConceptHandler struct {
	base
}

// NewConceptHandler creates a new concept handler
func NewConceptHandler(graph *services.KnowledgeGraph, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *ConceptHandler {
	return &ConceptHandler{base{graph: graph, errs: errs, logger: logger}}
}

// ListConcepts handles GET /concepts?type=&origin=
func (h *ConceptHandler) ListConcepts(w http.ResponseWriter, r *http.Request) {
	page, err := h.graph.ListConcepts(r.Context(), queries.ListConceptsQuery{
		Type:       r.URL.Query().Get("type"),
		Origin:     r.URL.Query().Get("origin"),
		Pagination: common.ExtractPaginationParams(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, mapPage(page, (*entities.Concept).State))
}

// CreateConcept handles POST /concepts
func (h *ConceptHandler) CreateConcept(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreateConceptCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}

	concept, err := h.graph.CreateConcept(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, concept.State())
}

// GetConcept handles GET /concepts/{conceptID}
func (h *ConceptHandler) GetConcept(w http.ResponseWriter, r *http.Request) {
	concept, err := h.graph.GetConcept(r.Context(), chi.URLParam(r, "conceptID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, concept.State())
}

// UpdateConcept handles PATCH /concepts/{conceptID}
func (h *ConceptHandler) UpdateConcept(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpdateConceptCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}

	concept, err := h.graph.UpdateConcept(r.Context(), chi.URLParam(r, "conceptID"), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, concept.State())
}

// DeleteConcept handles DELETE /concepts/{conceptID}
func (h *ConceptHandler) DeleteConcept(w http.ResponseWriter, r *http.Request) {
	if err := h.graph.DeleteConcept(r.Context(), chi.URLParam(r, "conceptID")); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}
