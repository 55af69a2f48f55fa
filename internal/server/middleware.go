package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	cartdomain "github.com/smallbiznis/herbcart/internal/cart/domain"
)

const (
	headerUserID    = "X-User-Id"
	headerSessionID = "X-Session-Id"
	headerAdminRole = "X-Admin-Role"

	ctxUserID       = "user_id"
	ctxSessionToken = "session_token"
)

// CartIdentity resolves the cart owner from upstream auth headers. An
// authenticated user wins; otherwise an anonymous session is looked up or
// minted, and a freshly minted token is echoed back in the response.
func (s *Server) CartIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := headerSnowflake(c, headerUserID); userID != nil {
			c.Set(ctxUserID, *userID)
			c.Next()
			return
		}

		token := strings.TrimSpace(c.GetHeader(headerSessionID))
		userAgent := optionalString(c.Request.UserAgent())
		ipAddress := optionalString(c.ClientIP())
		sess, created, err := s.cartSvc.EnsureSession(c.Request.Context(), token, userAgent, ipAddress)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if created {
			c.Header(headerSessionID, sess.Token)
		}
		c.Set(ctxSessionToken, sess.Token)
		c.Next()
	}
}

// UserRequired gates routes that only make sense for an authenticated
// user. Authentication itself happens upstream; this only checks the
// forwarded identity header.
func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := headerSnowflake(c, headerUserID)
		if userID == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(ctxUserID, *userID)
		c.Next()
	}
}

func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.EqualFold(strings.TrimSpace(c.GetHeader(headerAdminRole)), "admin") {
			AbortWithError(c, ErrForbidden)
			return
		}
		if userID := headerSnowflake(c, headerUserID); userID != nil {
			c.Set(ctxUserID, *userID)
		}
		c.Next()
	}
}

func currentUserID(c *gin.Context) *snowflake.ID {
	value, ok := c.Get(ctxUserID)
	if !ok {
		return nil
	}
	id, ok := value.(snowflake.ID)
	if !ok {
		return nil
	}
	return &id
}

func cartIdentity(c *gin.Context) cartdomain.Identity {
	if userID := currentUserID(c); userID != nil {
		return cartdomain.UserIdentity(*userID)
	}
	if value, ok := c.Get(ctxSessionToken); ok {
		if token, ok := value.(string); ok {
			return cartdomain.SessionIdentity(token)
		}
	}
	return cartdomain.Identity{}
}

func headerSnowflake(c *gin.Context, header string) *snowflake.ID {
	value := strings.TrimSpace(c.GetHeader(header))
	if value == "" {
		return nil
	}
	parsed, err := snowflake.ParseString(value)
	if err != nil || parsed == 0 {
		return nil
	}
	return &parsed
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
