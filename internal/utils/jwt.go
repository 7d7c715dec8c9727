package utils

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var errNoSubject = errors.New("token carries no subject")

// GetSubjectFromToken extracts the caller's subject from the bearer token.
// The token signature has already been checked by the auth middleware, so the
// claims are read without verification. The "sub" claim wins over "user_id".
func GetSubjectFromToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || tokenString == "" {
		return "", errors.New("missing bearer token")
	}

	// Parse without verification since middleware already validated it
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errNoSubject
	}
	for _, key := range []string{"sub", "user_id"} {
		if s, ok := claims[key].(string); ok && s != "" {
			return s, nil
		}
	}
	return "", errNoSubject
}
