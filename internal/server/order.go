package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/herbcart/internal/order/domain"
)

// Checkout converts the current cart into an order in one shot. Works for
// both authenticated users and anonymous sessions.
func (s *Server) Checkout(c *gin.Context) {
	var req orderdomain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.UserID = currentUserID(c)

	order, err := s.orderSvc.CreateFromCart(c.Request.Context(), cartIdentity(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": order})
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req orderdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.UserID = currentUserID(c)

	order, err := s.orderSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": order})
}

func (s *Server) ListOrders(c *gin.Context) {
	userID := currentUserID(c)
	if userID == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	page, limit := parsePagination(c)
	orders, total, err := s.orderSvc.List(c.Request.Context(), *userID, page, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders, "total": total})
}

func (s *Server) GetOrder(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	order, err := s.orderSvc.Get(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) GetOrderByNumber(c *gin.Context) {
	order, err := s.orderSvc.GetByNumber(c.Request.Context(), currentUserID(c), strings.TrimSpace(c.Param("number")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) GetOrderHistory(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	history, err := s.orderSvc.History(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": history})
}

func (s *Server) CancelOrder(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req struct {
		Reason *string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	order, err := s.orderSvc.Cancel(c.Request.Context(), currentUserID(c), id, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) AdminListOrders(c *gin.Context) {
	var query struct {
		Status string `form:"status"`
		UserID string `form:"user_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	filter := orderdomain.ListFilter{}
	filter.Page, filter.Limit = parsePagination(c)

	if raw := strings.TrimSpace(query.Status); raw != "" {
		status := orderdomain.OrderStatus(raw)
		if !status.Valid() {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		filter.Status = &status
	}
	userID, err := parseOptionalSnowflakeID(query.UserID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	filter.UserID = userID

	orders, total, err := s.orderSvc.AdminList(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders, "total": total})
}

func (s *Server) AdminGetOrder(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	order, err := s.orderSvc.Get(c.Request.Context(), nil, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) AdminUpdateOrderStatus(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req orderdomain.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.ChangedBy = currentUserID(c)

	order, err := s.orderSvc.AdminUpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}
