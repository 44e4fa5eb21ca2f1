package auth

import (
	"context"
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"

	"tradejournal/src/model"
)

type userFinder interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// Middleware resolves the bearer token to a user and stores it in the
// request context. Requests without a valid token get 401.
func Middleware(tokens JWT, users userFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				logger.WithError(err).Debug("rejected bearer token")
				unauthorized(w)
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				unauthorized(w)
				return
			}

			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				logger.WithError(err).WithField("user_id", userID).Error("failed to load token user")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if user == nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "Not authenticated", http.StatusUnauthorized)
}
