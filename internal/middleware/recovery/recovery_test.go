package recovery

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/log"
)

func TestMiddleware_RecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	var got error
	h := Middleware(logger, func(w http.ResponseWriter, r *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusInternalServerError)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)) })

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Error(t, got)
	assert.Equal(t, "boom", got.Error())
	assert.Contains(t, buf.String(), "Recovered from panic")
}

func TestMiddleware_KeepsErrorValue(t *testing.T) {
	sentinel := errors.New("bad state")
	var got error
	h := Middleware(log.New(log.Config{Writer: &bytes.Buffer{}}), func(w http.ResponseWriter, r *http.Request, err error) {
		got = err
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(sentinel)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, got, sentinel)
}

func TestMiddleware_RepanicsAbortHandler(t *testing.T) {
	h := Middleware(log.New(log.Config{Writer: &bytes.Buffer{}}), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
