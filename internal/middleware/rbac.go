package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/response"
)

// RequireRoles admits only the listed roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireSignoff admits roles that may sign ledger columns.
func RequireSignoff() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !claims.CanSignOff() {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role may not sign off revisions"))
			c.Abort()
			return
		}
		c.Next()
	}
}
