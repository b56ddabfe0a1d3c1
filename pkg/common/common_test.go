package common

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPaginationParams(t *testing.T) {
	tests := []struct {
		query string
		want  PaginationParams
	}{
		{"", PaginationParams{Page: 1, PageSize: 20, Order: "desc"}},
		{"?page=3&page_size=5&order=asc", PaginationParams{Page: 3, PageSize: 5, Order: "asc"}},
		{"?page=-1&page_size=abc&order=sideways", PaginationParams{Page: 1, PageSize: 20, Order: "desc"}},
		{"?page_size=5000", PaginationParams{Page: 1, PageSize: MaxPageSize, Order: "desc"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/artifacts"+tt.query, nil)
			assert.Equal(t, tt.want, ExtractPaginationParams(r))
		})
	}
}

func TestBuildPaginationMeta(t *testing.T) {
	meta := BuildPaginationMeta(2, 10, 25)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)
	assert.Equal(t, 10, PaginationParams{Page: 2, PageSize: 10}.CalculateOffset())

	assert.Equal(t, 0, CalculateTotalPages(10, 0))
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Title string `json:"title"`
	}
	decode := func(payload string) (body, error) {
		var b body
		r := httptest.NewRequest("POST", "/", strings.NewReader(payload))
		err := DecodeJSON(httptest.NewRecorder(), r, &b)
		return b, err
	}

	b, err := decode(`{"title":"Notes"}`)
	require.NoError(t, err)
	assert.Equal(t, "Notes", b.Title)

	for _, payload := range []string{"", `{"title":`, `{"unknown":1}`, `{"title":"a"}{"title":"b"}`} {
		_, err := decode(payload)
		assert.True(t, pkgerrors.IsValidation(err), payload)
	}

	_, err = decode(`{"title":"` + strings.Repeat("x", MaxBodyBytes) + `"}`)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestRoles(t *testing.T) {
	ctx := WithUserRoles(WithUserID(context.Background(), "alice"), []string{"admin"})
	id, ok := GetUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "alice", id)
	assert.True(t, HasRole(ctx, "admin"))
	assert.False(t, HasRole(context.Background(), "admin"))
}
