package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mockly-backend/internal/platform/authtoken"
	"github.com/yungbote/mockly-backend/internal/platform/ctxutil"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

type AuthMiddleware struct {
	log      *logger.Logger
	verifier *authtoken.Verifier
}

func NewAuthMiddleware(log *logger.Logger, verifier *authtoken.Verifier) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), verifier: verifier}
}

// RequireAuth accepts a bearer header, or a token query parameter for
// EventSource clients that cannot set headers.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			abortUnauthorized(c, "missing or invalid token")
			return
		}
		userID, err := am.verifier.Parse(tokenString)
		if err != nil {
			am.log.Debug("Rejected token", "error", err)
			abortUnauthorized(c, "missing or invalid token")
			return
		}
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
			TokenString: tokenString,
			UserID:      userID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"message": msg, "code": "unauthorized"},
	})
}

func extractToken(c *gin.Context) string {
	if tok := authtoken.FromHeader(c.GetHeader("Authorization")); tok != "" {
		return tok
	}
	return c.Query("token")
}
