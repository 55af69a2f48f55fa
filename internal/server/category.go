package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	categorydomain "github.com/smallbiznis/herbcart/internal/category/domain"
)

func (s *Server) ListCategories(c *gin.Context) {
	categories, err := s.categorySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": categories})
}

func (s *Server) GetCategoryTree(c *gin.Context) {
	tree, err := s.categorySvc.Tree(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tree})
}

func (s *Server) GetCategoryBySlug(c *gin.Context) {
	category, err := s.categorySvc.GetBySlug(c.Request.Context(), strings.TrimSpace(c.Param("slug")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": category})
}

func (s *Server) AdminCreateCategory(c *gin.Context) {
	var req categorydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	category, err := s.categorySvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": category})
}

func (s *Server) AdminUpdateCategory(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req categorydomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	category, err := s.categorySvc.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": category})
}

func (s *Server) AdminDeleteCategory(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.categorySvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) AdminReorderCategories(c *gin.Context) {
	var req struct {
		Items []categorydomain.ReorderItem `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.categorySvc.Reorder(c.Request.Context(), req.Items); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reordered"})
}
