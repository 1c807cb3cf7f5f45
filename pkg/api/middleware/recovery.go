package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/ekagra1602/NeuraVault-MCP/pkg/api/response"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/logger"
)

// Recovery returns a middleware that recovers from handler panics, logs the
// stack, and writes a 500 error envelope.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					stack := debug.Stack()
					log.Error("Panic recovered",
						"error", err,
						"path", r.URL.Path,
						"method", r.Method,
						"stack", string(stack),
					)

					requestID := GetRequestID(r.Context())
					if requestID == "" {
						requestID = "unknown"
					}

					response.Error(w,
						http.StatusInternalServerError,
						response.ErrCodeInternalServer,
						fmt.Sprintf("Internal server error: %v", err),
						requestID,
					)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
