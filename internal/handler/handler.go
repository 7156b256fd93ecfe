// Package handler holds what the per-domain HTTP handlers share: the
// authenticated caller stored on the gin context and request parsing helpers.
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/pkg/auth"
	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
)

const (
	contextClaims  = "auth_claims"
	contextAccount = "account"
)

func SetClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(contextClaims, claims)
}

// Claims returns the verified token claims of the caller.
func Claims(c *gin.Context) (*auth.Claims, error) {
	v, ok := c.Get(contextClaims)
	if !ok {
		return nil, apperrors.Unauthorized(nil)
	}
	claims, ok := v.(*auth.Claims)
	if !ok || claims == nil {
		return nil, apperrors.Unauthorized(nil)
	}
	return claims, nil
}

func SetAccount(c *gin.Context, acc *model.Account) {
	c.Set(contextAccount, acc)
}

// CurrentAccount returns the lab or clinic resolved for the caller.
func CurrentAccount(c *gin.Context) (*model.Account, error) {
	v, ok := c.Get(contextAccount)
	if !ok {
		return nil, apperrors.Unauthorized(nil)
	}
	acc, ok := v.(*model.Account)
	if !ok || acc == nil {
		return nil, apperrors.Unauthorized(nil)
	}
	return acc, nil
}

// UUIDParam parses the named path parameter.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid %s", name)
	}
	return id, nil
}

// PaginationQuery reads page and page_size, falling back to defaults.
func PaginationQuery(c *gin.Context) model.Pagination {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	return model.Pagination{Page: page, PageSize: size}.Normalize()
}
