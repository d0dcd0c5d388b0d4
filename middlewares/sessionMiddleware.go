package middlewares

import (
	"errors"
	"net/http"

	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware loads the signed-in user (Redis first) so disabled
// accounts lose access before their token expires. It also puts the user's
// name in the context for the activity log.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if _, ok := utils.GetUserIdFromContext(ctx); !ok {
			c.Next()
			return
		}
		user, err := models.GetSessionUser(ctx)
		if err != nil {
			if errors.Is(err, utils.ErrNotFound) || errors.Is(err, utils.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if user.IsActive != nil && !*user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}

		ctx = utils.SetUserNameInContext(ctx, user.Name)
		// the stored role wins over a stale token claim
		ctx = utils.SetUserRoleInContext(ctx, string(user.Role))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
