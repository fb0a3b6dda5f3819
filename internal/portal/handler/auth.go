package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusfound/campusfound/internal/identity"
)

// Context keys set by the auth middleware.
const (
	ctxUserID    = "user_id"
	ctxUserEmail = "user_email"
	ctxUserRole  = "user_role"
)

// UserAuth returns a middleware that requires a valid identity-provider
// bearer token and attaches the claimant identity to the request context.
// Handlers pass that identity explicitly into the services.
func UserAuth(verifier *identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxUserEmail, claims.Email)
		c.Set(ctxUserRole, claims.Role)
		c.Next()
	}
}

// AdminAuth returns a middleware that admits either a token bearing the
// admin role (must run after UserAuth) or the operator secret in the
// X-Admin-Secret header, checked against its bcrypt hash from config.
func AdminAuth(adminSecretHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, _ := c.Get(ctxUserRole); role == "admin" {
			c.Next()
			return
		}

		secret := c.GetHeader("X-Admin-Secret")
		if adminSecretHash != "" && secret != "" {
			if err := bcrypt.CompareHashAndPassword([]byte(adminSecretHash), []byte(secret)); err == nil {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
	}
}

// currentUser reads the identity attached by UserAuth.
func currentUser(c *gin.Context) (id, email string) {
	id = c.GetString(ctxUserID)
	email = c.GetString(ctxUserEmail)
	return id, email
}

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
