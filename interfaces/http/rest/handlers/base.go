// Package handlers adapts HTTP requests onto the knowledge graph access
// layer. Handlers decode the request, call one access layer operation and
// encode its result; every error goes through the shared ErrorHandler.
package handlers

import (
	"net/http"

	"bobbin-backend/application/queries"
	"bobbin-backend/application/services"
	pkgerrors "bobbin-backend/pkg/errors"

	"go.uber.org/zap"
)

// ListResponse wraps a non-paginated list
type ListResponse[T any] struct {
	Items []T `json:"items"`
}

type base struct {
	graph  *services.KnowledgeGraph
	errs   *pkgerrors.ErrorHandler
	logger *zap.Logger
}

func (b base) fail(w http.ResponseWriter, r *http.Request, err error) {
	b.errs.Handle(w, r, err)
}

func mapSlice[E, S any](items []E, f func(E) S) []S {
	out := make([]S, 0, len(items))
	for _, item := range items {
		out = append(out, f(item))
	}
	return out
}

func mapPage[E, S any](page queries.Page[E], f func(E) S) queries.Page[S] {
	return queries.Page[S]{
		Items:      mapSlice(page.Items, f),
		Pagination: page.Pagination,
	}
}
