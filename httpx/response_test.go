package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/validation"
)

func TestError_Classified(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/products/p1", nil)

	Error(rec, req, apperr.Forbidden("You don't have permission to modify this product"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"FORBIDDEN","message":"You don't have permission to modify this product"}`, rec.Body.String())
}

func TestError_UnclassifiedHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)

	Error(rec, req, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), `"INTERNAL"`)
}

func TestDecode(t *testing.T) {
	var v map[string]any
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Widget"}`))
	require.NoError(t, Decode(req, &v))
	assert.Equal(t, "Widget", v["name"])

	bad := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	err := Decode(bad, &v)
	assert.Equal(t, apperr.CodeBadRequest, apperr.CodeOf(err))
}

func TestInvalid(t *testing.T) {
	rec := httptest.NewRecorder()
	Invalid(rec, map[string]string{"name": "required"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"BAD_REQUEST","message":"validation failed","details":{"name":"required"}}`, rec.Body.String())
}

func TestError_Violations(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/products", nil)

	Error(rec, req, validation.Violations{"name": "required"}.Err())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"BAD_REQUEST","message":"validation failed","details":{"name":"required"}}`, rec.Body.String())
}
