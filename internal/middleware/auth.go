package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// JWTClaims are the token claims issued to operators.
type JWTClaims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// AuthMiddleware guards the admin endpoints. Tokens are issued against the
// configured operator password and signed with HS256.
type AuthMiddleware struct {
	secretKey  []byte
	passHash   []byte
	bcryptCost int
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(secretKey, passHash string, bcryptCost int) *AuthMiddleware {
	return &AuthMiddleware{
		secretKey:  []byte(secretKey),
		passHash:   []byte(passHash),
		bcryptCost: bcryptCost,
	}
}

// RequireAuth validates a Bearer token in the Authorization header.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Case-insensitive Bearer prefix per RFC 6750
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" || tokenParts[1] == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := am.ValidateToken(tokenParts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			c.Abort()
			return
		}

		c.Set("subject", claims.Subject)
		c.Next()
	}
}

// VerifyPassword checks an operator password against the stored bcrypt hash.
func (am *AuthMiddleware) VerifyPassword(password string) bool {
	if len(am.passHash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(am.passHash, []byte(password)) == nil
}

// HashPassword produces a bcrypt hash at the configured cost, used by the
// token issuance path when rotating the operator credential.
func (am *AuthMiddleware) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), am.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// GenerateToken creates a signed JWT for a subject.
func (am *AuthMiddleware) GenerateToken(subject string, duration time.Duration) (string, error) {
	claims := &JWTClaims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(am.secretKey)
}

// ValidateToken validates a JWT token and returns its claims.
func (am *AuthMiddleware) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return am.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token claims")
}
