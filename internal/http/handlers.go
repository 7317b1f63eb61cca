package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"expenses/internal/core"
	"expenses/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"message":   s.cfg.AppName + " is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Seconds(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{
			"active_clients": s.rateLimiter.ActiveClients(),
			"status":         "ok",
		},
	}

	if err := s.store.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldComponent, log.ComponentStorage, log.FieldError, err.Error())
		checks["store"] = "failed"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError("Route not found").Write(w)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

func (s *Server) handlePanic(w http.ResponseWriter, r *http.Request, err error) {
	InternalServerError("Internal server error", s.errorDetail(err)).Write(w)
}

// writeError maps err onto the envelope. failure is the message used when
// the error is not one the client can act on.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, failure, operation string) {
	var validation *core.ValidationError
	switch {
	case errors.As(err, &validation):
		ValidationFailed(validation.Fields).Write(w)
	case errors.Is(err, errInvalidJSON):
		BadRequestError("Invalid JSON body").Write(w)
	case errors.Is(err, errBodyTooLarge):
		Failure(http.StatusRequestEntityTooLarge, "Request body too large").Write(w)
	case errors.Is(err, core.ErrUserNotFound):
		BadRequestError("User not found").Write(w)
	case errors.Is(err, core.ErrCategoryNotFound):
		BadRequestError("Category not found").Write(w)
	case errors.Is(err, core.ErrExpenseNotFound):
		NotFoundError("Expense not found").Write(w)
	case errors.Is(err, core.ErrNoFieldsToUpdate):
		BadRequestError("No fields to update").Write(w)
	default:
		s.httpLog.LogError(r.Context(), failure, err, operation, log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
		InternalServerError(failure, s.errorDetail(err)).Write(w)
	}
}

// errorDetail exposes the cause only in development.
func (s *Server) errorDetail(err error) string {
	if s.cfg.Development {
		return err.Error()
	}
	return "Internal server error"
}

// writeJSON is for the probe endpoints, which answer outside the envelope.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
