package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	a := New("s3cret", time.Hour)
	tok, err := a.Issue("alice", RoleStaff)
	require.NoError(t, err)

	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.Subject)
	assert.Equal(t, RoleStaff, c.Role)

	_, err = New("other", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_Expired(t *testing.T) {
	a := New("s3cret", time.Minute)
	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := a.Issue("alice", RoleStaff)
	require.NoError(t, err)

	_, err = New("s3cret", time.Minute).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequire(t *testing.T) {
	a := New("s3cret", time.Hour)
	var actor string
	h := a.Require(RoleStaff)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = Actor(r.Context(), "anonymous")
		w.WriteHeader(http.StatusNoContent)
	}))

	staff, _ := a.Issue("bob", RoleStaff)
	guest, _ := a.Issue("eve", "guest")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + guest, http.StatusForbidden},
		{"staff", "Bearer " + staff, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/api/orders/1/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, "bob", actor)
}

func TestRequire_DisabledWithoutSecret(t *testing.T) {
	a := New("", time.Hour)
	h := a.Require(RoleStaff)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/menu/1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := a.Issue("x", RoleStaff)
	assert.Error(t, err)
}
