package auth

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminMiddleware requires a valid operator bearer token
func AdminMiddleware(signer *TokenSigner) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>" format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format. Expected: Bearer <token>",
			})
			c.Abort()
			return
		}

		claims, err := signer.ValidateAdminToken(parts[1])
		if err != nil {
			log.Printf("[Auth] Admin token rejected: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set("admin_subject", claims.Subject)

		c.Next()
	}
}

// GetAdminSubject retrieves the operator subject from the context
func GetAdminSubject(c *gin.Context) (string, bool) {
	subject, exists := c.Get("admin_subject")
	if !exists {
		return "", false
	}

	s, ok := subject.(string)
	return s, ok
}
