package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/herbcart/internal/cart"
	cartdomain "github.com/smallbiznis/herbcart/internal/cart/domain"
	"github.com/smallbiznis/herbcart/internal/catalog"
	catalogdomain "github.com/smallbiznis/herbcart/internal/catalog/domain"
	"github.com/smallbiznis/herbcart/internal/category"
	categorydomain "github.com/smallbiznis/herbcart/internal/category/domain"
	"github.com/smallbiznis/herbcart/internal/config"
	"github.com/smallbiznis/herbcart/internal/inventory"
	inventorydomain "github.com/smallbiznis/herbcart/internal/inventory/domain"
	"github.com/smallbiznis/herbcart/internal/observability"
	"github.com/smallbiznis/herbcart/internal/order"
	orderdomain "github.com/smallbiznis/herbcart/internal/order/domain"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	observability.Module,
	fx.Provide(registerGin),
	catalog.Module,
	category.Module,
	inventory.Module,
	cart.Module,
	order.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(tp trace.TracerProvider, httpMetrics *observability.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.TracingMiddleware(tp))
	r.Use(observability.MetricsMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(tp trace.TracerProvider, httpMetrics *observability.HTTPMetrics) *gin.Engine {
	return NewEngine(tp, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	genID        *snowflake.Node
	catalogSvc   catalogdomain.Service
	categorySvc  categorydomain.Service
	inventorySvc inventorydomain.Service
	cartSvc      cartdomain.Service
	orderSvc     orderdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	CatalogSvc   catalogdomain.Service
	CategorySvc  categorydomain.Service
	InventorySvc inventorydomain.Service
	CartSvc      cartdomain.Service
	OrderSvc     orderdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		genID:        p.GenID,
		catalogSvc:   p.CatalogSvc,
		categorySvc:  p.CategorySvc,
		inventorySvc: p.InventorySvc,
		cartSvc:      p.CartSvc,
		orderSvc:     p.OrderSvc,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Catalog --------
	api.GET("/products", s.ListProducts)
	api.GET("/products/:slug", s.GetProductBySlug)
	api.GET("/products/:slug/variants", s.ListProductVariants)

	// -------- Categories --------
	api.GET("/categories", s.ListCategories)
	api.GET("/categories/tree", s.GetCategoryTree)
	api.GET("/categories/:slug", s.GetCategoryBySlug)

	// -------- Cart --------
	cartGroup := api.Group("/cart", s.CartIdentity())
	{
		cartGroup.GET("", s.GetCart)
		cartGroup.DELETE("", s.ClearCart)
		cartGroup.POST("/items", s.AddCartItem)
		cartGroup.PATCH("/items/:id", s.UpdateCartItem)
		cartGroup.DELETE("/items/:id", s.RemoveCartItem)
		cartGroup.GET("/validate", s.ValidateCart)
		cartGroup.GET("/shipping-estimate", s.EstimateCartShipping)
	}
	api.POST("/cart/merge", s.UserRequired(), s.MergeCart)

	// -------- Orders --------
	api.POST("/checkout", s.CartIdentity(), s.Checkout)
	api.POST("/orders", s.UserRequired(), s.CreateOrder)
	api.GET("/orders", s.UserRequired(), s.ListOrders)
	api.GET("/orders/:id", s.UserRequired(), s.GetOrder)
	api.GET("/orders/:id/history", s.UserRequired(), s.GetOrderHistory)
	api.POST("/orders/:id/cancel", s.UserRequired(), s.CancelOrder)
	api.GET("/orders/number/:number", s.UserRequired(), s.GetOrderByNumber)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminRequired())

	// -------- Products --------
	admin.GET("/products", s.AdminListProducts)
	admin.POST("/products", s.AdminCreateProduct)
	admin.PATCH("/products/:id", s.AdminUpdateProduct)
	admin.POST("/products/:id/archive", s.AdminArchiveProduct)
	admin.GET("/products/:id/variants", s.AdminListVariants)
	admin.POST("/products/:id/variants", s.AdminAddVariant)
	admin.PATCH("/variants/:id", s.AdminUpdateVariant)
	admin.DELETE("/variants/:id", s.AdminDeleteVariant)

	// -------- Categories --------
	admin.POST("/categories", s.AdminCreateCategory)
	admin.PATCH("/categories/:id", s.AdminUpdateCategory)
	admin.DELETE("/categories/:id", s.AdminDeleteCategory)
	admin.POST("/categories/reorder", s.AdminReorderCategories)

	// -------- Orders --------
	admin.GET("/orders", s.AdminListOrders)
	admin.GET("/orders/:id", s.AdminGetOrder)
	admin.PATCH("/orders/:id/status", s.AdminUpdateOrderStatus)
}
