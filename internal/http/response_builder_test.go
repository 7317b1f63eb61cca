package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/core"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestSuccess_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Success("Users fetched successfully", []core.User{}).Write(rec)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"message":"Users fetched successfully","data":[]}`, rec.Body.String())
}

func TestSuccess_WithPaginationAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	Success("Expenses fetched successfully", []int{1, 2}).
		Pagination(core.NewPagination(core.NewPageRequest(2, 2), 5)).
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Write(rec)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "value", rec.Header().Get("X-Custom"))
	assert.JSONEq(t, `{
		"success": true,
		"message": "Expenses fetched successfully",
		"data": [1, 2],
		"pagination": {"page": 2, "limit": 2, "total": 5, "totalPages": 3, "hasNextPage": true, "hasPrevPage": true}
	}`, rec.Body.String())
}

func TestFailure_OmitsData(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFoundError("Route not found").Write(rec)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Route not found"}`, rec.Body.String())
}

func TestValidationFailed(t *testing.T) {
	rec := httptest.NewRecorder()
	ValidationFailed([]core.FieldError{{Field: "amount", Message: core.MsgAmountInvalid}}).Write(rec)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Validation failed", body["message"])
	assert.Equal(t, []any{map[string]any{"field": "amount", "message": core.MsgAmountInvalid}}, body["errors"])
}

func TestInternalServerError_Detail(t *testing.T) {
	rec := httptest.NewRecorder()
	InternalServerError("Failed to fetch users", "Internal server error").Write(rec)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Failed to fetch users","error":"Internal server error"}`, rec.Body.String())
}

func TestTooManyRequestsError(t *testing.T) {
	b := TooManyRequestsError()
	assert.False(t, b.Body().Success)
	assert.Equal(t, http.StatusTooManyRequests, b.statusCode)
}
