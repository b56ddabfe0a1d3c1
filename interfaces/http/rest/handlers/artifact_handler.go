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

// ArtifactHandler handles artifact-related HTTP requests
type ArtifactHandler struct {
	base
}

// NewArtifactHandler creates a new artifact handler
func NewArtifactHandler(graph *services.KnowledgeGraph, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *ArtifactHandler {
	return &ArtifactHandler{base{graph: graph, errs: errs, logger: logger}}
}

// ListArtifacts handles GET /artifacts
func (h *ArtifactHandler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	page, err := h.graph.ListArtifacts(r.Context(), queries.ListArtifactsQuery{
		Pagination: common.ExtractPaginationParams(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, mapPage(page, (*entities.Artifact).State))
}

// CreateArtifact handles POST /artifacts
func (h *ArtifactHandler) CreateArtifact(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreateArtifactCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}

	artifact, err := h.graph.CreateArtifact(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, artifact.State())
}

// GetArtifact handles GET /artifacts/{artifactID} and returns the artifact
// with its concepts and connections
func (h *ArtifactHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	result, err := h.graph.GetArtifactWithRelations(r.Context(), chi.URLParam(r, "artifactID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// UpdateArtifact handles PATCH /artifacts/{artifactID}
func (h *ArtifactHandler) UpdateArtifact(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpdateArtifactCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}

	artifact, err := h.graph.UpdateArtifact(r.Context(), chi.URLParam(r, "artifactID"), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, artifact.State())
}

// DeleteArtifact handles DELETE /artifacts/{artifactID}
func (h *ArtifactHandler) DeleteArtifact(w http.ResponseWriter, r *http.Request) {
	if err := h.graph.DeleteArtifact(r.Context(), chi.URLParam(r, "artifactID")); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// DeriveConcepts handles POST /artifacts/{artifactID}/concepts
func (h *ArtifactHandler) DeriveConcepts(w http.ResponseWriter, r *http.Request) {
	var cmd commands.DeriveConceptsCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}

	concepts, err := h.graph.DeriveConcepts(r.Context(), chi.URLParam(r, "artifactID"), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, ListResponse[entities.ConceptState]{
		Items: mapSlice(concepts, (*entities.Concept).State),
	})
}
