package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/core"
)

func jsonRequest(method, body string) *http.Request {
	r := httptest.NewRequest(method, "/api/v1/expenses", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var v *core.ValidationError
	require.True(t, errors.As(err, &v), "expected a validation error, got %v", err)
	out := make(map[string]string, len(v.Fields))
	for _, f := range v.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestParseNewExpense(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		ne, err := ParseNewExpense(httptest.NewRecorder(), jsonRequest(http.MethodPost,
			`{"user_id": 1, "category_id": "2", "amount": 12.5, "date": "2024-03-05", "description": "Lunch\u0007"}`))
		require.NoError(t, err)

		assert.Equal(t, int64(1), ne.UserID)
		assert.Equal(t, int64(2), ne.CategoryID)
		assert.Equal(t, "12.50", ne.Amount.String())
		assert.Equal(t, "2024-03-05", ne.Date.String())
		require.NotNil(t, ne.Description)
		assert.Equal(t, "Lunch", *ne.Description)
	})

	t.Run("description is optional", func(t *testing.T) {
		ne, err := ParseNewExpense(httptest.NewRecorder(), jsonRequest(http.MethodPost,
			`{"user_id": 1, "category_id": 2, "amount": "0.01", "date": "2024-03-05T10:00:00Z"}`))
		require.NoError(t, err)
		assert.Nil(t, ne.Description)
		assert.Equal(t, "2024-03-05", ne.Date.String())
	})

	tests := []struct {
		name string
		body string
		want map[string]string
	}{
		{
			name: "empty body reports every required field",
			body: ``,
			want: map[string]string{
				"user_id":     core.MsgUserIDRequired,
				"category_id": core.MsgCategoryIDRequired,
				"amount":      core.MsgAmountRequired,
				"date":        core.MsgDateRequired,
			},
		},
		{
			name: "nulls and empty strings count as missing",
			body: `{"user_id": null, "category_id": "", "amount": null, "date": ""}`,
			want: map[string]string{
				"user_id":     core.MsgUserIDRequired,
				"category_id": core.MsgCategoryIDRequired,
				"amount":      core.MsgAmountRequired,
				"date":        core.MsgDateRequired,
			},
		},
		{
			name: "wrong types and ranges",
			body: `{"user_id": 0, "category_id": 1.5, "amount": 0.001, "date": "05/03/2024", "description": 42}`,
			want: map[string]string{
				"user_id":     core.MsgUserIDInvalid,
				"category_id": core.MsgCategoryIDInvalid,
				"amount":      core.MsgAmountInvalid,
				"date":        core.MsgDateInvalid,
				"description": core.MsgDescriptionInvalid,
			},
		},
		{
			name: "negative amount and long description",
			body: `{"user_id": 1, "category_id": 1, "amount": -5, "date": "2024-03-05", "description": "` + strings.Repeat("x", 501) + `"}`,
			want: map[string]string{
				"amount":      core.MsgAmountInvalid,
				"description": core.MsgDescriptionTooLong,
			},
		},
		{
			name: "non numeric amount and numeric date",
			body: `{"user_id": true, "category_id": 1, "amount": "ten", "date": 20240305}`,
			want: map[string]string{
				"user_id": core.MsgUserIDInvalid,
				"amount":  core.MsgAmountInvalid,
				"date":    core.MsgDateInvalid,
			},
		},
		{
			name: "unknown field",
			body: `{"user_id": 1, "category_id": 1, "amount": 5, "date": "2024-03-05", "currency": "EUR"}`,
			want: map[string]string{"currency": "Unknown field"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNewExpense(httptest.NewRecorder(), jsonRequest(http.MethodPost, tt.body))
			assert.Equal(t, tt.want, fieldErrors(t, err))
		})
	}
}

func TestParseNewExpense_BadJSON(t *testing.T) {
	for _, body := range []string{`{"user_id": 1,`, `[1, 2]`, `{"user_id": 1} {"user_id": 2}`, `nope`} {
		_, err := ParseNewExpense(httptest.NewRecorder(), jsonRequest(http.MethodPost, body))
		assert.ErrorIs(t, err, errInvalidJSON, "body %q", body)
	}
}

func TestParseNewExpense_BodyTooLarge(t *testing.T) {
	body := `{"description": "` + strings.Repeat("x", MaxBodyBytes) + `"}`
	_, err := ParseNewExpense(httptest.NewRecorder(), jsonRequest(http.MethodPost, body))
	assert.ErrorIs(t, err, errBodyTooLarge)
}

func TestParseExpensePatch(t *testing.T) {
	t.Run("absent fields stay nil", func(t *testing.T) {
		p, err := ParseExpensePatch(httptest.NewRecorder(), jsonRequest(http.MethodPut, `{"amount": "99.999"}`))
		require.NoError(t, err)
		require.NotNil(t, p.Amount)
		assert.Equal(t, "100.00", p.Amount.String())
		assert.Nil(t, p.UserID)
		assert.Nil(t, p.CategoryID)
		assert.Nil(t, p.Date)
		assert.Nil(t, p.Description)
	})

	t.Run("empty body is an empty patch", func(t *testing.T) {
		p, err := ParseExpensePatch(httptest.NewRecorder(), jsonRequest(http.MethodPut, `{}`))
		require.NoError(t, err)
		assert.True(t, p.IsEmpty())
	})

	t.Run("present fields must be valid", func(t *testing.T) {
		_, err := ParseExpensePatch(httptest.NewRecorder(), jsonRequest(http.MethodPut,
			`{"user_id": null, "category_id": "", "date": "tomorrow", "description": null}`))
		assert.Equal(t, map[string]string{
			"user_id":     core.MsgUserIDInvalid,
			"category_id": core.MsgCategoryIDInvalid,
			"date":        core.MsgDateInvalid,
			"description": core.MsgDescriptionInvalid,
		}, fieldErrors(t, err))
	})

	t.Run("empty description clears it", func(t *testing.T) {
		p, err := ParseExpensePatch(httptest.NewRecorder(), jsonRequest(http.MethodPut, `{"description": ""}`))
		require.NoError(t, err)
		require.NotNil(t, p.Description)
		assert.Empty(t, *p.Description)
	})
}

func TestParseExpenseID(t *testing.T) {
	for raw, valid := range map[string]bool{"1": true, "42": true, "0": false, "-3": false, "abc": false, "1.5": false} {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/expenses/"+raw, nil)
		r.SetPathValue("id", raw)
		id, err := ParseExpenseID(r)
		if valid {
			assert.NoError(t, err, raw)
			assert.Positive(t, id)
			continue
		}
		assert.Equal(t, map[string]string{"id": core.MsgExpenseIDInvalid}, fieldErrors(t, err), raw)
	}
}

func TestParseExpenseQuery(t *testing.T) {
	t.Run("filters and page", func(t *testing.T) {
		q := url.Values{
			"user_id":     {"3"},
			"category_id": {"7"},
			"start_date":  {"2024-01-01"},
			"end_date":    {"2024-01-31"},
			"page":        {"2"},
			"limit":       {"500"},
		}
		f, p, err := ParseExpenseQuery(q)
		require.NoError(t, err)

		require.NotNil(t, f.UserID)
		assert.Equal(t, int64(3), *f.UserID)
		require.NotNil(t, f.CategoryID)
		assert.Equal(t, int64(7), *f.CategoryID)
		assert.Equal(t, "2024-01-01", f.StartDate.String())
		assert.Equal(t, "2024-01-31", f.EndDate.String())
		assert.Equal(t, core.PageRequest{Page: 2, Limit: core.MaxLimit}, p)
	})

	t.Run("no parameters", func(t *testing.T) {
		f, p, err := ParseExpenseQuery(url.Values{})
		require.NoError(t, err)
		assert.Equal(t, core.ExpenseFilter{}, f)
		assert.Equal(t, core.PageRequest{Page: 1, Limit: 10}, p)
	})

	t.Run("invalid filters", func(t *testing.T) {
		q := url.Values{"user_id": {""}, "category_id": {"x"}, "start_date": {"2024-13-01"}, "end_date": {"soon"}}
		_, _, err := ParseExpenseQuery(q)
		assert.Equal(t, map[string]string{
			"user_id":     core.MsgUserIDInvalid,
			"category_id": core.MsgCategoryIDInvalid,
			"start_date":  core.MsgStartDateInvalid,
			"end_date":    core.MsgEndDateInvalid,
		}, fieldErrors(t, err))
	})
}
