package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"fieldtrack/internal/dto"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"

	RolePromoter     = "promoter"
	RoleProjectAdmin = "project-admin"
	RoleAdmin        = "admin"
)

func LoggingMiddleware() func(*ginext.Context) {
	return func(c *ginext.Context) {
		start := time.Now()
		c.Next()
		zlog.Logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request handled")
	}
}

// Auth validates the Bearer token issued by the external session provider and
// places the caller's id and role into the request context. Tokens are not
// issued here.
func Auth(secret string) func(*ginext.Context) {
	return func(c *ginext.Context) {
		userID, role, err := parseToken(c.GetHeader("Authorization"), secret)
		if err != nil {
			zlog.Logger.Debug().Err(err).Msg("token rejected")
			dto.UnauthorizedError(c)
			c.Abort()
			return
		}
		c.Set(CtxUserID, userID)
		c.Set(CtxRole, role)
		c.Next()
	}
}

// RequireRoles aborts with 403 unless the authenticated role is in the list.
// This is the server-side half of the UI's advisory role gating.
func RequireRoles(roles ...string) func(*ginext.Context) {
	return func(c *ginext.Context) {
		role := c.GetString(CtxRole)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		dto.ForbiddenError(c)
		c.Abort()
	}
}

func parseToken(header, secret string) (userID, role string, err error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", "", errors.New("missing bearer token")
	}
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == "" {
		return "", "", errors.New("missing bearer token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", errors.New("invalid token claims")
	}

	userID, _ = claims["user_id"].(string)
	role, _ = claims["role"].(string)
	if userID == "" || role == "" {
		return "", "", errors.New("token missing user_id or role")
	}

	switch role {
	case RolePromoter, RoleProjectAdmin, RoleAdmin:
	default:
		return "", "", fmt.Errorf("unknown role %q", role)
	}

	return userID, role, nil
}
