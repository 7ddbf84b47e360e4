package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "mindboard/pkg/errors"
)

func TestExtractPaginationParams(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected PaginationParams
	}{
		{"defaults", "", PaginationParams{Page: 1, PageSize: DefaultPageSize}},
		{"explicit", "page=3&page_size=5", PaginationParams{Page: 3, PageSize: 5}},
		{"clamped", "page_size=500", PaginationParams{Page: 1, PageSize: MaxPageSize}},
		{"invalid ignored", "page=-2&page_size=abc", PaginationParams{Page: 1, PageSize: DefaultPageSize}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/boards?"+tt.query, nil)
			assert.Equal(t, tt.expected, ExtractPaginationParams(r))
		})
	}
}

func TestBuildPaginationMeta(t *testing.T) {
	meta := BuildPaginationMeta(2, 10, 25)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)

	last := BuildPaginationMeta(3, 10, 25)
	assert.False(t, last.HasNext)

	assert.Equal(t, 0, CalculateTotalPages(10, 0))
}

func TestParseJSONBody(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("decodes", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Roadmap"}`))
		var p payload
		require.NoError(t, ParseJSONBody(r, &p, DefaultMaxBodyBytes))
		assert.Equal(t, "Roadmap", p.Name)
	})

	t.Run("empty body is allowed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		p := payload{Name: "kept"}
		require.NoError(t, ParseJSONBody(r, &p, DefaultMaxBodyBytes))
		assert.Equal(t, "kept", p.Name)
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x"}`))
		var p payload
		assert.True(t, pkgerrors.IsValidation(ParseJSONBody(r, &p, DefaultMaxBodyBytes)))
	})

	t.Run("too large", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("a", 64)+`"}`))
		var p payload
		assert.True(t, pkgerrors.IsValidation(ParseJSONBody(r, &p, 16)))
	})
}

func TestRespondJSON(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithMeta(w, http.StatusOK, map[string]string{"id": "b1"}, &MetaInfo{RequestID: "req-1"})

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"data":{"id":"b1"},"meta":{"requestId":"req-1"}}`, w.Body.String())
}

func TestContextMetadata(t *testing.T) {
	ctx := WithSessionID(context.Background(), "s1")
	ctx = WithRequestID(ctx, "req-1")

	meta := ExtractMetadata(ctx)
	assert.Equal(t, "s1", meta.SessionID)
	assert.Equal(t, "req-1", meta.RequestID)

	_, ok := GetSessionID(WithSessionID(context.Background(), ""))
	assert.False(t, ok)
}
