package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	cartdomain "github.com/smallbiznis/herbcart/internal/cart/domain"
)

func (s *Server) GetCart(c *gin.Context) {
	summary, err := s.cartSvc.GetCart(c.Request.Context(), cartIdentity(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) AddCartItem(c *gin.Context) {
	var req cartdomain.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.cartSvc.AddItem(c.Request.Context(), cartIdentity(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) UpdateCartItem(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req cartdomain.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.cartSvc.UpdateItem(c.Request.Context(), cartIdentity(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if item.Removed {
		c.JSON(http.StatusOK, gin.H{"status": "removed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) RemoveCartItem(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.cartSvc.RemoveItem(c.Request.Context(), cartIdentity(c), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (s *Server) ClearCart(c *gin.Context) {
	if err := s.cartSvc.Clear(c.Request.Context(), cartIdentity(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// MergeCart folds the anonymous session cart into the authenticated
// user's cart, typically right after login.
func (s *Server) MergeCart(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	token := strings.TrimSpace(req.SessionID)
	if token == "" {
		token = strings.TrimSpace(c.GetHeader(headerSessionID))
	}

	userID := currentUserID(c)
	if userID == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.cartSvc.Merge(c.Request.Context(), *userID, token); err != nil {
		AbortWithError(c, err)
		return
	}

	summary, err := s.cartSvc.GetCart(c.Request.Context(), cartdomain.UserIdentity(*userID))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) ValidateCart(c *gin.Context) {
	result, err := s.cartSvc.Validate(c.Request.Context(), cartIdentity(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) EstimateCartShipping(c *gin.Context) {
	estimate, err := s.cartSvc.EstimateShipping(c.Request.Context(), cartIdentity(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"shipping": estimate}})
}
