package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chathistory-server/internal/domain/user"
	authvalidator "chathistory-server/internal/infrastructure/auth"
	"chathistory-server/internal/infrastructure/metrics"
	"chathistory-server/internal/interfaces/httpserver/responses"
	"chathistory-server/internal/utils/platformerrors"
)

const userContextKey = "authenticated_user"

// AuthMiddleware validates bearer tokens and resolves the caller to a local
// user record, upserting one on first sight.
func AuthMiddleware(validator *authvalidator.TokenValidator, userService *user.Service, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			metrics.AuthRequestsTotal.WithLabelValues("missing").Inc()
			responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "authentication required")
			return
		}

		identity, err := validator.Validate(token)
		if err != nil {
			logger.Warn().Err(err).
				Str("path", c.FullPath()).
				Str("method", c.Request.Method).
				Msg("token validation failed")
			metrics.AuthRequestsTotal.WithLabelValues("invalid").Inc()
			responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "invalid token")
			return
		}

		usr, err := userService.EnsureUser(c.Request.Context(), *identity)
		if err != nil {
			logger.Error().Err(err).Str("subject", identity.Subject).Msg("failed to resolve user")
			metrics.AuthRequestsTotal.WithLabelValues("error").Inc()
			responses.HandleError(c, err, "failed to resolve user")
			return
		}

		metrics.AuthRequestsTotal.WithLabelValues("success").Inc()
		c.Set(userContextKey, usr)
		c.Next()
	}
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(c *gin.Context) (*user.User, bool) {
	val, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	usr, ok := val.(*user.User)
	return usr, ok
}

func bearerToken(authHeader string) (string, bool) {
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
