package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/http/response"
	"github.com/clearcite/integrity-engine/internal/platform/apierr"
	"github.com/clearcite/integrity-engine/internal/platform/ctxutil"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

// AuthMiddleware turns a Bearer JWT into a Principal on the request context.
// Tokens carry sub (user id) and role claims; signing is HS256 only.
type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(baseLog *logger.Logger, secret string) *AuthMiddleware {
	return &AuthMiddleware{
		log:    baseLog.With("Middleware", "AuthMiddleware"),
		secret: []byte(secret),
	}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			response.RespondDomainError(c, apierr.Unauthorized("unauthorized", fmt.Errorf("missing or invalid token")))
			c.Abort()
			return
		}

		principal, err := am.parse(tokenString)
		if err != nil {
			am.log.Debug("Token rejected", "error", err)
			response.RespondDomainError(c, apierr.Unauthorized("unauthorized", fmt.Errorf("invalid token")))
			c.Abort()
			return
		}

		ctx := ctxutil.WithPrincipal(c.Request.Context(), principal)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (am *AuthMiddleware) parse(tokenString string) (*domain.Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return am.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("missing sub claim")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("sub is not a uuid: %w", err)
	}

	role, _ := claims["role"].(string)
	switch domain.Role(role) {
	case domain.RoleStudent, domain.RoleLecturer:
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	return &domain.Principal{UserID: userID, Role: domain.Role(role)}, nil
}

func extractToken(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
