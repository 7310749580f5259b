package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
	"github.com/PbVrCt/serverless-chat-demo/internal/identity"
	"github.com/PbVrCt/serverless-chat-demo/internal/logger"
)

const (
	authHeaderKey = "Authorization"
	bearerPrefix  = "Bearer "
)

// RequireIdentity resolves the bearer token of every request and stores the
// Identity in the request context. Requests without a valid token are
// rejected with 401.
func RequireIdentity(resolver identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(authHeaderKey)
		if header == "" {
			abortWithError(c, errs.NewIdentityError("missing authorization header", nil))
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			abortWithError(c, errs.NewIdentityError("invalid authorization format", nil))
			return
		}

		id, err := resolver.Resolve(c.Request.Context(), strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(logger.TenantKey, id.TenantID)
		c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// requester returns the Identity stored by RequireIdentity.
func requester(c *gin.Context) (identity.Identity, error) {
	id, ok := identity.FromContext(c.Request.Context())
	if !ok {
		return identity.Identity{}, errs.NewIdentityError("request has no resolved identity", nil)
	}
	return id, nil
}
