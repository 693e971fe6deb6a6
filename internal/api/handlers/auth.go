package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/virellia/driftline/internal/middleware"
)

// AuthHandler issues operator tokens for the admin endpoints.
type AuthHandler struct {
	auth   *middleware.AuthMiddleware
	expiry time.Duration
}

func NewAuthHandler(auth *middleware.AuthMiddleware, expiry time.Duration) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		expiry: expiry,
	}
}

type TokenRequest struct {
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// Token exchanges the operator password for a JWT.
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	if !h.auth.VerifyPassword(req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.auth.GenerateToken("operator", h.expiry)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresIn: int64(h.expiry.Seconds()),
	})
}
