package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/herbcart/internal/catalog/domain"
	categorydomain "github.com/smallbiznis/herbcart/internal/category/domain"
)

// ListProducts is the storefront listing: active only, optionally scoped
// to a category subtree by slug.
func (s *Server) ListProducts(c *gin.Context) {
	var query struct {
		Category string `form:"category"`
		Featured string `form:"featured"`
		Search   string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	featured, err := parseOptionalBool(query.Featured)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	active := true
	filter := catalogdomain.ListFilter{
		Active:   &active,
		Featured: featured,
		Search:   strings.TrimSpace(query.Search),
	}
	filter.Page, filter.Limit = parsePagination(c)

	if slug := strings.TrimSpace(query.Category); slug != "" {
		ids, err := s.categorySvc.SubtreeIDs(c.Request.Context(), slug)
		if err != nil {
			if err == categorydomain.ErrNotFound {
				c.JSON(http.StatusOK, gin.H{"data": []catalogdomain.Product{}, "total": 0})
				return
			}
			AbortWithError(c, err)
			return
		}
		filter.CategoryIDs = ids
	}

	products, total, err := s.catalogSvc.ListProducts(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": products, "total": total})
}

func (s *Server) GetProductBySlug(c *gin.Context) {
	product, err := s.catalogSvc.GetProductBySlug(c.Request.Context(), strings.TrimSpace(c.Param("slug")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}

func (s *Server) ListProductVariants(c *gin.Context) {
	product, err := s.catalogSvc.GetProductBySlug(c.Request.Context(), strings.TrimSpace(c.Param("slug")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	variants, err := s.catalogSvc.ListVariants(c.Request.Context(), product.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": variants})
}

func (s *Server) AdminListProducts(c *gin.Context) {
	var query struct {
		CategoryID string `form:"category_id"`
		Active     string `form:"active"`
		Featured   string `form:"featured"`
		Search     string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	categoryID, err := parseOptionalSnowflakeID(query.CategoryID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	active, err := parseOptionalBool(query.Active)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	featured, err := parseOptionalBool(query.Featured)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	filter := catalogdomain.ListFilter{
		CategoryID: categoryID,
		Active:     active,
		Featured:   featured,
		Search:     strings.TrimSpace(query.Search),
	}
	filter.Page, filter.Limit = parsePagination(c)

	products, total, err := s.catalogSvc.ListProducts(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products, "total": total})
}

func (s *Server) AdminCreateProduct(c *gin.Context) {
	var req catalogdomain.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	product, err := s.catalogSvc.CreateProduct(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": product})
}

func (s *Server) AdminUpdateProduct(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req catalogdomain.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	product, err := s.catalogSvc.UpdateProduct(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}

func (s *Server) AdminArchiveProduct(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.catalogSvc.ArchiveProduct(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "archived"})
}

func (s *Server) AdminListVariants(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	variants, err := s.catalogSvc.ListVariants(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": variants})
}

func (s *Server) AdminAddVariant(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req catalogdomain.VariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	variant, err := s.catalogSvc.AddVariant(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": variant})
}

func (s *Server) AdminUpdateVariant(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req catalogdomain.VariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	variant, err := s.catalogSvc.UpdateVariant(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": variant})
}

func (s *Server) AdminDeleteVariant(c *gin.Context) {
	id, err := parsePathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.catalogSvc.DeleteVariant(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
