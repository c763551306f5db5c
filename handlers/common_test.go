package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"checkit-service/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticatedMissingHeader(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	called := false
	h := Authenticated(tokens, func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		called = true
	})

	w := httptest.NewRecorder()
	h(context.Background(), w, httptest.NewRequest("GET", "/projects", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestAuthenticatedMalformedHeader(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	h := Authenticated(tokens, func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	r := httptest.NewRequest("GET", "/projects", nil)
	r.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()
	h(context.Background(), w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticatedInvalidToken(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	h := Authenticated(tokens, func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	r := httptest.NewRequest("GET", "/projects", nil)
	r.Header.Set("Authorization", "Bearer not-a-real-token")
	w := httptest.NewRecorder()
	h(context.Background(), w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthenticatedExpiredToken(t *testing.T) {
	expired := auth.NewTokenManager("test-secret", -time.Hour)
	token, err := expired.Issue(7)
	require.NoError(t, err)

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	h := Authenticated(tokens, func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	r := httptest.NewRequest("GET", "/projects", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h(context.Background(), w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthenticatedAttachesUserID(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	token, err := tokens.Issue(42)
	require.NoError(t, err)

	var gotID int
	h := Authenticated(tokens, func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		id, ok := auth.UserID(ctx)
		require.True(t, ok)
		gotID = id
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest("GET", "/projects", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h(context.Background(), w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 42, gotID)
}

func TestValidEmail(t *testing.T) {
	assert.True(t, validEmail("a@b.com"))
	assert.True(t, validEmail("first.last@sub.domain.org"))
	assert.False(t, validEmail("a@b"))
	assert.False(t, validEmail("no-at-sign.com"))
	assert.False(t, validEmail("spaces in@mail.com"))
	assert.False(t, validEmail(""))
}

func TestValidateTitle(t *testing.T) {
	assert.NoError(t, validateTitle("Trip", "Project"))
	assert.NoError(t, validateTitle(strings.Repeat("x", 100), "Project"))
	assert.Error(t, validateTitle(strings.Repeat("x", 101), "Project"))
	assert.Error(t, validateTitle("", "Project"))
	assert.Error(t, validateTitle("   ", "Project"))
}

func TestValidateDatesOrdering(t *testing.T) {
	created := "2024-01-02"
	completedBefore := "2024-01-01"
	completedAfter := "2024-01-03"

	assert.Error(t, validateDates(&created, &completedBefore))
	assert.NoError(t, validateDates(&created, &completedAfter))
	assert.NoError(t, validateDates(&created, &created)) // same day is allowed
	assert.NoError(t, validateDates(&created, nil))
	assert.NoError(t, validateDates(nil, &completedAfter))

	bad := "yesterday-ish"
	assert.Error(t, validateDates(&bad, nil))
	assert.Error(t, validateDates(&created, &bad))
}

func TestValidateDatesLayouts(t *testing.T) {
	for _, s := range []string{"2024-01-01", "2024-01-01T10:30:00", "2024-01-01T10:30:00Z"} {
		v := s
		assert.NoError(t, validateDates(&v, nil), s)
	}
}

func TestValidateChecklistContentBoundary(t *testing.T) {
	assert.NoError(t, validateChecklistContent(strings.Repeat("x", 100)))
	assert.Error(t, validateChecklistContent(strings.Repeat("x", 101)))
	assert.Error(t, validateChecklistContent(""))
	assert.Error(t, validateChecklistContent("   "))
}
