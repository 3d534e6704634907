package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"signet/internal/domain"
)

// principalKey is the gin context key the identity middleware stores the
// resolved principal under.
const principalKey = "signet.principal"

// requirePrincipal trusts the identity headers injected by the edge
// gateway. Requests that reach this service without them were not
// authenticated upstream and are rejected outright.
func (s *Server) requirePrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-User-Id")
		email := c.GetHeader("X-User-Email")
		if id == "" || email == "" {
			writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity headers")
			c.Abort()
			return
		}
		c.Set(principalKey, domain.Principal{
			ID:    id,
			Name:  c.GetHeader("X-User-Name"),
			Email: email,
		})
		c.Next()
	}
}

// requireAdminKey gates operator-only routes on a shared secret. The
// comparison is constant time so the key cannot be probed byte by byte.
func (s *Server) requireAdminKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.adminAPIKey == "" {
			writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin access is not configured")
			c.Abort()
			return
		}
		provided := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.adminAPIKey)) != 1 {
			writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
			c.Abort()
			return
		}
		c.Next()
	}
}

func getPrincipal(c *gin.Context) (domain.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := value.(domain.Principal)
	return principal, ok
}

// signerInfo combines the authenticated principal with per-request
// client context recorded alongside each signature.
func signerInfo(c *gin.Context) domain.SignerInfo {
	principal, _ := getPrincipal(c)
	return domain.SignerInfo{
		ID:        principal.ID,
		Name:      principal.Name,
		Email:     principal.Email,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Location:  c.GetHeader("X-User-Location"),
	}
}
