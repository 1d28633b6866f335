package middleware

import (
	"context"
	"net/http"
	"strings"

	"appointly/core/errors"
	"appointly/core/logger"
	"appointly/core/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const ContextKeyUserID = "user_id"

type TokenBlacklist interface {
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
}

type Middleware struct {
	blacklist TokenBlacklist
}

func NewMiddleware(blacklist TokenBlacklist) *Middleware {
	return &Middleware{blacklist: blacklist}
}

// AuthMiddleware validates the Bearer token and stores the caller's user id
// on the echo context.
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized,
					errors.NewAppError(errors.ErrMissingAuthorizationHeader, "missing authorization header", nil))
			}

			token := strings.TrimPrefix(header, "Bearer ")
			if token == header {
				return echo.NewHTTPError(http.StatusUnauthorized,
					errors.NewAppError(errors.ErrInvalidTokenFormat, "authorization header must be a Bearer token", nil))
			}

			if m.blacklist != nil {
				blacklisted, err := m.blacklist.IsTokenBlacklisted(c.Request().Context(), token)
				if err != nil {
					logger.Error("Middleware:AuthMiddleware:IsTokenBlacklisted:Error", "error", err)
					return echo.NewHTTPError(http.StatusInternalServerError,
						errors.NewAppError(errors.ErrInternalServer, "failed to check token", err))
				}
				if blacklisted {
					return echo.NewHTTPError(http.StatusUnauthorized,
						errors.NewAppError(errors.ErrUnauthorized, "token is blacklisted", nil))
				}
			}

			tokenData, err := utils.ValidateAndParseToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized,
					errors.NewAppError(errors.ErrUnauthorized, "invalid token", err))
			}

			c.Set(ContextKeyUserID, tokenData.UserID)
			return next(c)
		}
	}
}

// UserIDFromContext returns the authenticated user id placed by AuthMiddleware.
func UserIDFromContext(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get(ContextKeyUserID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, errors.NewAppError(errors.ErrUnauthorized, "no authenticated user", nil)
	}
	return id, nil
}
