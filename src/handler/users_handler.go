package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradejournal/src/auth"
	"tradejournal/src/model"
	"tradejournal/src/repository"
	"tradejournal/src/security"
)

type userCreator interface {
	Create(ctx context.Context, user *model.User) error
}

type userByEmail interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type tokenSigner interface {
	Sign(userID uint, email string) (string, time.Time, error)
}

func SignupHandler(users userCreator, hasher passwordHasher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload model.CreateUserPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid signup payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		email := repository.NormalizeEmail(payload.Email)
		if email == "" || !strings.Contains(email, "@") {
			http.Error(w, "A valid email is required", http.StatusBadRequest)
			return
		}

		hash, err := hasher.Hash(payload.Password)
		if err != nil {
			if errors.Is(err, security.ErrPasswordTooShort) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.WithError(err).Error("failed to hash password")
			http.Error(w, "Unable to create user", http.StatusInternalServerError)
			return
		}

		user := &model.User{Email: email, PasswordHash: hash}
		if err := users.Create(r.Context(), user); err != nil {
			if errors.Is(err, repository.ErrEmailTaken) {
				http.Error(w, "Email already registered", http.StatusBadRequest)
				return
			}
			logger.WithError(err).Error("failed to create user")
			http.Error(w, "Unable to create user", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, user.ToResponse())
	}
}

// TokenHandler implements the OAuth2 password grant: form fields
// username (the email) and password.
func TokenHandler(users userByEmail, hasher passwordHasher, tokens tokenSigner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}

		email := r.PostForm.Get("username")
		password := r.PostForm.Get("password")
		if email == "" || password == "" {
			http.Error(w, "username and password are required", http.StatusBadRequest)
			return
		}

		user, err := users.FindByEmail(r.Context(), email)
		if err != nil {
			logger.WithError(err).Error("failed to look up user")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if user == nil || hasher.Compare(user.PasswordHash, password) != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "Incorrect email or password", http.StatusUnauthorized)
			return
		}

		token, _, err := tokens.Sign(user.ID, user.Email)
		if err != nil {
			logger.WithError(err).Error("failed to sign token")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, model.TokenResponse{AccessToken: token, TokenType: "bearer"})
	}
}

func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok {
			http.Error(w, "Not authenticated", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, user.ToResponse())
	}
}

func DefaultSignupHandler() http.HandlerFunc {
	return SignupHandler(repository.NewUserRepository(), security.DefaultPasswordHasher())
}

func DefaultTokenHandler(tokens auth.JWT) http.HandlerFunc {
	return TokenHandler(repository.NewUserRepository(), security.DefaultPasswordHasher(), tokens)
}
