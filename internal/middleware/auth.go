package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dentallab-api/internal/handler"
	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/pkg/auth"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
	"github.com/jwalitptl/dentallab-api/pkg/httputil"
)

// AccountResolver maps a verified subject to its lab or clinic.
type AccountResolver interface {
	Resolve(ctx context.Context, subject string) (*model.Account, error)
}

type AuthMiddleware struct {
	verifier *auth.Verifier
	accounts AccountResolver
}

func NewAuthMiddleware(verifier *auth.Verifier, accounts AccountResolver) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, accounts: accounts}
}

// Authenticate verifies the bearer token and stores its claims. Browsers
// cannot set headers on websocket upgrades, so access_token is accepted as a
// query parameter too.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}

		handler.SetClaims(c, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("access_token"); token != "" {
			return token, nil
		}
		return "", apperrors.Unauthorized(nil)
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", apperrors.Unauthorized(nil)
	}
	return parts[1], nil
}

// RequireAccount resolves the caller's lab or clinic. It must run after
// Authenticate.
func (m *AuthMiddleware) RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := handler.Claims(c)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		acc, err := m.accounts.Resolve(c.Request.Context(), claims.Subject)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		handler.SetAccount(c, acc)
		c.Next()
	}
}
