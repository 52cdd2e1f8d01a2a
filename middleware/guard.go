package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"gravecare-api/utils"
)

// Guard inspects a request and returns the request to continue with, or an
// error that answers the request immediately.
type Guard func(r *http.Request) (*http.Request, error)

// Chain runs guards in order ahead of the wrapped handler. The first failing
// guard writes the error response and the rest of the chain is skipped.
func Chain(log logrus.FieldLogger, guards ...Guard) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, guard := range guards {
				guarded, err := guard(r)
				if err != nil {
					utils.LoggerFrom(r.Context(), log).WithError(err).Warn("request rejected")
					utils.ErrorResponse(w, err)
					return
				}
				r = guarded
			}
			next.ServeHTTP(w, r)
		})
	}
}
