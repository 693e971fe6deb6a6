package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestRouter(am *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin", am.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString("subject")})
	})
	return router
}

func TestTokenRoundtrip(t *testing.T) {
	am := NewAuthMiddleware("test-secret", "", bcrypt.MinCost)

	token, err := am.GenerateToken("operator", time.Hour)
	require.NoError(t, err)

	claims, err := am.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Subject)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	am := NewAuthMiddleware("test-secret", "", bcrypt.MinCost)
	other := NewAuthMiddleware("other-secret", "", bcrypt.MinCost)

	token, err := am.GenerateToken("operator", time.Hour)
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	am := NewAuthMiddleware("test-secret", "", bcrypt.MinCost)
	router := newTestRouter(am)

	token, err := am.GenerateToken("operator", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"malformed header", "NotBearer " + token, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
		{"case-insensitive scheme", "bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	am := NewAuthMiddleware("test-secret", "", bcrypt.MinCost)
	router := newTestRouter(am)

	token, err := am.GenerateToken("operator", -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "expired")
}

func TestPasswordVerification(t *testing.T) {
	am := NewAuthMiddleware("test-secret", "", bcrypt.MinCost)

	hash, err := am.HashPassword("hunter2")
	require.NoError(t, err)

	withHash := NewAuthMiddleware("test-secret", hash, bcrypt.MinCost)
	assert.True(t, withHash.VerifyPassword("hunter2"))
	assert.False(t, withHash.VerifyPassword("wrong"))

	// No stored hash means no password ever verifies.
	assert.False(t, am.VerifyPassword("hunter2"))
}
