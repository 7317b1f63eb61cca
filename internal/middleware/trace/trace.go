package trace

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"expenses/internal/log"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

// RouteUnmatched labels requests that never reached a registered route.
const RouteUnmatched = "unmatched"

const maxIncomingIDLength = 64

// Recorder receives one observation per finished request.
type Recorder interface {
	ObserveRequest(method, route string, status int, d time.Duration)
}

type routeKey struct{}

// routeHolder is filled in by the matched handler and read back once the
// chain returns, since the mux sets Pattern on its own request copy.
type routeHolder struct {
	pattern string
}

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.StructuredLogger
	recorder  Recorder
	now       func() time.Time
}

// NewMiddleware creates a new trace middleware. recorder may be nil.
func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string, recorder Recorder) *Middleware {
	return &Middleware{
		extractIP: extractIP,
		logger:    log.NewStructuredLogger(logger),
		recorder:  recorder,
		now:       time.Now,
	}
}

// Middleware returns HTTP middleware for request tracing
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := m.now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := incomingRequestID(r)
		if requestID == "" {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		route := &routeHolder{}
		ctx := log.WithRequestID(r.Context(), requestID)
		ctx = context.WithValue(ctx, routeKey{}, route)
		r = r.WithContext(ctx)

		m.logger.LogHTTPStart(ctx, r, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := m.now().Sub(start)
		m.logger.LogHTTPEnd(ctx, r, rw.statusCode, duration, clientIP)

		if m.recorder != nil {
			pattern := route.pattern
			if pattern == "" {
				pattern = RouteUnmatched
			}
			m.recorder.ObserveRequest(r.Method, pattern, rw.statusCode, duration)
		}
	})
}

// SetRoute records the matched route pattern for the current request.
// It is a no-op outside the trace middleware.
func SetRoute(ctx context.Context, pattern string) {
	if h, ok := ctx.Value(routeKey{}).(*routeHolder); ok {
		h.pattern = pattern
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	return uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	return log.RequestID(ctx)
}

// incomingRequestID accepts a caller supplied id only when it is short and
// made of safe characters, so it can be echoed into logs and headers.
func incomingRequestID(r *http.Request) string {
	id := r.Header.Get(HeaderRequestID)
	if id == "" || len(id) > maxIncomingIDLength {
		return ""
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return ""
		}
	}
	return id
}
