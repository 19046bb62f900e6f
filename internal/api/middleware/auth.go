package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kayprogrammer/socialnet-v2/internal/relay"
	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
	"github.com/kayprogrammer/socialnet-v2/pkg/response"
)

const userIDKey = "user_id"

// Auth 要求有效的 bearer token，并保存调用者 id
func Auth(auth relay.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := relay.BearerToken(c.Request)
		if tok == "" {
			response.Unauthorized(c, errs.Unauthenticated("Unauthorized User!"))
			return
		}
		userID, err := auth.Authenticate(c.Request.Context(), tok)
		if err != nil {
			response.Unauthorized(c, err)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID 返回 Auth 保存的用户 id
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
