package recovery

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"expenses/internal/log"
)

// Middleware turns a handler panic into onPanic's response and an error log
// with the stack. http.ErrAbortHandler is re-raised so the server can abort
// the connection as intended.
func Middleware(logger *log.Logger, onPanic func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	logger = logger.WithComponent(log.ComponentHTTP)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}
				logger.ErrorContext(r.Context(), "Recovered from panic",
					log.FieldError, err.Error(),
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path,
					"stack", string(debug.Stack()))

				if onPanic != nil {
					onPanic(w, r, err)
					return
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
