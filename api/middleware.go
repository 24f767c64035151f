package api

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"propmarket/models"
	"propmarket/services"
)

const actorKey = "actor"

// Claims are the token fields the API reads. Tokens are issued elsewhere.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// authMiddleware checks the bearer token and makes sure a local user record
// exists for its subject
func authMiddleware(secret []byte, users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		var claims Claims
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), &claims, func(t *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid subject")
			return
		}
		role := models.UserRole(claims.Role)
		if role != models.RoleAdmin {
			role = models.RoleUser
		}
		actor := services.Actor{UserID: userID, Role: role}

		if _, err := users.Ensure(c.Request.Context(), actor); err != nil {
			writeError(c, err)
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !actorFrom(c).IsAdmin() {
			abort(c, http.StatusForbidden, "forbidden", "admin access only")
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) services.Actor {
	v, _ := c.Get(actorKey)
	actor, _ := v.(services.Actor)
	return actor
}

// requestLogger writes one line per request through the standard logger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[http] %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Millisecond))
	}
}

// SignToken issues an HS256 token for a user. Used by tests and the -token
// flag.
func SignToken(secret []byte, userID uuid.UUID, role models.UserRole, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
