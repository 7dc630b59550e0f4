package middleware

import (
	"strings"

	"github.com/dukasoft/tillpoint-api/internal/presentation/http/dto/response"
	"github.com/dukasoft/tillpoint-api/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const principalKey = "auth.principal"

// Principal is the authenticated operator attached to the request context by
// AuthMiddleware.
type Principal struct {
	UserID      uuid.UUID
	Email       string
	Roles       []string
	Permissions []string
}

// HasRole reports whether the principal holds any of the given roles.
func (p *Principal) HasRole(roles ...string) bool {
	for _, have := range p.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Can reports whether the principal holds the given permission.
func (p *Principal) Can(permission string) bool {
	for _, have := range p.Permissions {
		if have == permission {
			return true
		}
	}
	return false
}

// CurrentPrincipal returns the authenticated principal for this request, or
// nil when the request did not pass AuthMiddleware.
func CurrentPrincipal(c *gin.Context) *Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || token == "" || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return token, true
}

// AuthMiddleware verifies the bearer token and attaches the resulting
// principal to the request context.
func AuthMiddleware(tokens *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Unauthorized(c, "missing or malformed Authorization header")
			c.Abort()
			return
		}

		claims, err := tokens.ValidateAccessToken(raw)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(principalKey, &Principal{
			UserID:      claims.UserID,
			Email:       claims.Email,
			Roles:       claims.Roles,
			Permissions: claims.Permissions,
		})
		c.Next()
	}
}

// RequirePermission rejects requests whose principal lacks the permission.
// Fine-grained ownership and override checks live in the service layer; this
// is the coarse route-level gate.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := CurrentPrincipal(c)
		if p == nil || !p.Can(permission) {
			response.Forbidden(c, "you do not have permission to perform this action")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole rejects requests whose principal holds none of the roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := CurrentPrincipal(c)
		if p == nil || !p.HasRole(roles...) {
			response.Forbidden(c, "insufficient role privileges")
			c.Abort()
			return
		}
		c.Next()
	}
}
