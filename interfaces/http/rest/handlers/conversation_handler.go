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

// ConversationHandler handles conversation-related HTTP requests
type ConversationHandler struct {
	base
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(graph *services.KnowledgeGraph, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{base{graph: graph, errs: errs, logger: logger}}
}

// ListConversations handles GET /conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	page, err := h.graph.ListConversations(r.Context(), queries.ListConversationsQuery{
		Pagination: common.ExtractPaginationParams(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, mapPage(page, (*entities.Conversation).State))
}

// CreateConversation handles POST /conversations
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreateConversationCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}

	conversation, err := h.graph.CreateConversation(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, conversation.State())
}

// GetConversation handles GET /conversations/{conversationID}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conversation, err := h.graph.GetConversation(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, conversation.State())
}

// UpdateConversation handles PATCH /conversations/{conversationID}
func (h *ConversationHandler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpdateConversationCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}

	conversation, err := h.graph.UpdateConversation(r.Context(), chi.URLParam(r, "conversationID"), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, conversation.State())
}

// AppendMessage handles POST /conversations/{conversationID}/messages
func (h *ConversationHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	var cmd commands.AppendMessageCommand
	if err := common.DecodeJSON(w, r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}

	conversation, err := h.graph.AppendMessage(r.Context(), chi.URLParam(r, "conversationID"), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, conversation.State())
}

// DeleteConversation handles DELETE /conversations/{conversationID}
func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.graph.DeleteConversation(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
		h.fail(w, r, err)
		return
	}
	common.RespondNoContent(w)
}
