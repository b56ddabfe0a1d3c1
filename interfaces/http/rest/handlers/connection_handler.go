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

// ConnectionHandler handles connection and suggestion HTTP requests
type ConnectionHandler struct {
	base
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(graph *services.KnowledgeGraph, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{base{graph: graph, errs: errs, logger: logger}}
}

// ListConnections handles GET /connections?endpoint_kind=&endpoint_id=&kind=&status=
func (h *ConnectionHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.graph.ListConnections(r.Context(), queries.ListConnectionsQuery{
		EndpointKind: q.Get("endpoint_kind"),
		EndpointID:   q.Get("endpoint_id"),
		Kind:         q.Get("kind"),
		Status:       q.Get("status"),
		Pagination:   common.ExtractPaginationParams(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, mapPage(page, (*entities.Connection).State))
}

// CreateConnection handles POST /connections. When the duplicate policy
// hands back an existing connection the status is 200 instead of 201.
func (h *ConnectionHandler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreateConnectionCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}

	connection, created, err := h.graph.CreateConnection(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	common.RespondJSON(w, status, connection.State())
}

// GetConnection handles GET /connections/{connectionID}
func (h *ConnectionHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	result, err := h.graph.GetConnection(r.Context(), chi.URLParam(r, "connectionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// UpdateConnection handles PATCH /connections/{connectionID}
func (h *ConnectionHandler) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpdateConnectionCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}

	connection, err := h.graph.UpdateConnection(r.Context(), chi.URLParam(r, "connectionID"), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, connection.State())
}

// ConfirmConnection handles POST /connections/{connectionID}/confirm
func (h *ConnectionHandler) ConfirmConnection(w http.ResponseWriter, r *http.Request) {
	connection, err := h.graph.ConfirmConnection(r.Context(), chi.URLParam(r, "connectionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, connection.State())
}

// DeleteConnection handles DELETE /connections/{connectionID}
func (h *ConnectionHandler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.graph.DeleteConnection(r.Context(), chi.URLParam(r, "connectionID")); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// SuggestConnections handles POST /suggestions. The lazy sequence is
// drained here; the request context bounds how long that may take.
func (h *ConnectionHandler) SuggestConnections(w http.ResponseWriter, r *http.Request) {
	var sc queries.SuggestionContext
	if err := common.DecodeJSON(w, r, &sc); err != nil {
		h.fail(w, r, err)
		return
	}

	seq, err := h.graph.GetConnectionSuggestions(r.Context(), sc)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items := []queries.ConnectionSuggestion{}
	for suggestion := range seq {
		if err := r.Context().Err(); err != nil {
			h.fail(w, r, pkgerrors.Classify("suggest connections", err))
			return
		}
		items = append(items, suggestion)
	}
	common.RespondJSON(w, http.StatusOK, ListResponse[queries.ConnectionSuggestion]{Items: items})
}
