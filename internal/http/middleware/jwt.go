package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
)

// Identity management is external; this server only verifies bearer tokens
// it is handed and issues short device tokens at pairing time.

// GenerateDeviceToken signs a token embedding the display id in the "sub"
// claim. Issued once, when a display completes pairing.
func GenerateDeviceToken(displayID int, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": displayID,
		"aud": "display",
		"exp": time.Now().Add(30 * 24 * time.Hour).Unix(),
	})
	return token.SignedString([]byte(secret))
}

// parseToken verifies the signature and returns the "sub" claim.
func parseToken(tokenString, secret string) (int, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid claims")
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, errors.New("invalid sub claim")
	}
	return int(sub), nil
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		// SSE clients cannot set headers; accept the token as a query
		// parameter on the stream endpoint
		if tok := c.Query("token"); tok != "" {
			return tok, true
		}
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// AdminAuthMiddleware checks "Authorization: Bearer <token>" and verifies
// the signature. The admin identity behind the token lives elsewhere.
func AdminAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing auth header"})
			return
		}
		sub, err := parseToken(tok, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("adminSubject", sub)
		c.Next()
	}
}

// DeviceAuthMiddleware verifies a device token and sets "currentDisplayID"
// in the context.
func DeviceAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing auth header"})
			return
		}
		displayID, err := parseToken(tok, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("currentDisplayID", displayID)
		c.Next()
	}
}

// DisplayIDFromToken verifies a device token outside the middleware chain.
// The SSE stream uses it to scope a connection when a token is offered
// without requiring one.
func DisplayIDFromToken(token, secret string) (int, error) {
	return parseToken(token, secret)
}

// GetCurrentDisplayID retrieves the display id set by DeviceAuthMiddleware.
func GetCurrentDisplayID(c *gin.Context) (int, bool) {
	v, exists := c.Get("currentDisplayID")
	if !exists {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}
