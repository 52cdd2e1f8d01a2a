package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"gravecare-api/apperrors"
)

// Key type for context
type contextKey string

const userIDKey = contextKey("userID")

// TokenVerifier resolves a session token to its subject user id
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Authenticate is the guard that requires a valid Bearer session token and
// attaches the subject user id to the request context.
func Authenticate(verifier TokenVerifier) Guard {
	return func(r *http.Request) (*http.Request, error) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			return nil, apperrors.Unauthenticated("Authorization token is required")
		}

		scheme, token, _ := strings.Cut(header, " ")
		if !strings.EqualFold(scheme, "Bearer") {
			return nil, apperrors.InvalidToken(errors.New("authorization scheme is not Bearer"))
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, apperrors.Unauthenticated("Authorization token is required")
		}

		subject, err := verifier.Verify(token)
		if err != nil {
			if _, ok := apperrors.As(err); !ok {
				err = apperrors.InvalidToken(err)
			}
			return nil, err
		}
		return r.WithContext(WithUserID(r.Context(), subject)), nil
	}
}

// AuthMiddleware verifies session tokens and attaches the user id to the context
func AuthMiddleware(verifier TokenVerifier, log logrus.FieldLogger) mux.MiddlewareFunc {
	return Chain(log, Authenticate(verifier))
}

// WithUserID returns a copy of ctx carrying the authenticated user id
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user id stored by Authenticate
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}
