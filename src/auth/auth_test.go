package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/src/model"
)

type stubUsers struct {
	users map[uint]*model.User
	err   error
}

func (s stubUsers) FindByID(_ context.Context, id uint) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.users[id], nil
}

func testJWT() JWT {
	return JWT{Secret: []byte("test-secret"), TokenTTL: time.Hour, Issuer: "tradejournal"}
}

func TestJWTRoundTrip(t *testing.T) {
	j := testJWT()

	token, expiresAt, err := j.Sign(42, "trader@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := j.Verify(token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.Equal(t, "trader@example.com", claims.Email)
}

func TestJWTRejectsForeignAndExpiredTokens(t *testing.T) {
	j := testJWT()

	other := JWT{Secret: []byte("other"), TokenTTL: time.Hour, Issuer: "tradejournal"}
	token, _, err := other.Sign(1, "a@b.c")
	require.NoError(t, err)
	_, err = j.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	expired := JWT{Secret: j.Secret, TokenTTL: -time.Hour, Issuer: "tradejournal"}
	token, _, err = expired.Sign(1, "a@b.c")
	require.NoError(t, err)
	_, err = j.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = j.Verify("not-a-token")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	j := testJWT()
	users := stubUsers{users: map[uint]*model.User{7: {ID: 7, Email: "seven@example.com"}}}

	var seen *model.User
	handler := Middleware(j, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	valid, _, err := j.Sign(7, "seven@example.com")
	require.NoError(t, err)
	unknown, _, err := j.Sign(8, "eight@example.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"unknown user", "Bearer " + unknown, http.StatusUnauthorized},
		{"valid", "bearer " + valid, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), "Not authenticated")
				assert.Nil(t, seen)
			} else {
				require.NotNil(t, seen)
				assert.Equal(t, uint(7), seen.ID)
			}
		})
	}
}

func TestMiddlewareLookupFailure(t *testing.T) {
	j := testJWT()
	token, _, err := j.Sign(7, "x@y.z")
	require.NoError(t, err)

	handler := Middleware(j, stubUsers{err: errors.New("db down")})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetUserFromContext(t *testing.T) {
	_, ok := GetUserFromContext(context.Background())
	assert.False(t, ok)

	ctx := context.WithValue(context.Background(), UserKey, &model.User{ID: 3})
	u, ok := GetUserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, uint(3), u.ID)
}
