package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/httputil"
	"unitedhelp/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the user it was issued to.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims is the identity the middleware needs from a validated token.
type Claims struct {
	UserID string
}

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated user ID in the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r)
			if !ok {
				logger.WarnContext(r.Context(), "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(r.Context()),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}
			authenticate(w, r, next, validator, logger, token)
		})
	}
}

// OptionalAuth lets anonymous requests through without a user. A presented
// token must still be valid. Handlers that write require the user themselves.
func OptionalAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := bearer(r)
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}
			authenticate(w, r, next, validator, logger, token)
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

func authenticate(w http.ResponseWriter, r *http.Request, next http.Handler, validator TokenValidator, logger *slog.Logger, token string) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	claims, err := validator.ValidateToken(token)
	if err != nil {
		logger.WarnContext(ctx, "unauthorized access - invalid token",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
		return
	}

	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		logger.WarnContext(ctx, "unauthorized access - malformed subject",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
		return
	}

	ctx = requestcontext.WithUserID(ctx, userID)
	next.ServeHTTP(w, r.WithContext(ctx))
}
