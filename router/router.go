package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/yeremiapane/diner-app/config"
	"github.com/yeremiapane/diner-app/controllers"
	"github.com/yeremiapane/diner-app/feed"
	"github.com/yeremiapane/diner-app/metrics"
	"github.com/yeremiapane/diner-app/middlewares"
	"github.com/yeremiapane/diner-app/services"
	"github.com/yeremiapane/diner-app/utils"
)

// Deps is everything the web app needs, built once in main.
type Deps struct {
	Config   config.Config
	DB       *gorm.DB
	Log      logrus.FieldLogger
	Tokens   *utils.TokenIssuer
	Auditor  *services.Auditor
	Catalog  *services.CatalogService
	Checkout *services.CheckoutService
	Orders   *services.OrderService
	Reviews  *services.ReviewService
	Exporter services.Exporter
	Hub      *feed.Hub
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware(d.Log))
	r.Use(middlewares.SecurityHeaders(d.Config.Env == "production"))
	r.Use(middlewares.CORSMiddlewares(d.Config.HTTP.AllowedOrigin))
	r.Use(middlewares.NewRateLimiter(rate.Limit(50), 100).RateLimit())
	r.Use(middlewares.Sessions(d.Config.Session.Secret, d.Config.Env == "production"))
	r.Use(middlewares.IdentityMiddleware(d.Tokens))

	userCtrl := controllers.NewUserController(d.DB, d.Tokens, d.Auditor, d.Log)
	menuCtrl := controllers.NewMenuController(d.Catalog, d.Log)
	cartCtrl := controllers.NewCartController(d.DB, d.Log)
	orderCtrl := controllers.NewOrderController(d.Checkout, d.Orders, d.Log)
	reviewCtrl := controllers.NewReviewController(d.Reviews, d.Log)
	adminCtrl := controllers.NewAdminController(d.Orders, d.Auditor, d.Exporter, d.Log)
	feedCtrl := controllers.NewFeedController(d.Hub, d.Config.HTTP.AllowedOrigin)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authLimiter := middlewares.NewStrictRateLimiter()
	r.POST("/register", authLimiter.RateLimit(), userCtrl.Register)
	r.POST("/login", authLimiter.RateLimit(), userCtrl.Login)
	r.POST("/logout", userCtrl.Logout)

	r.GET("/menu", menuCtrl.GetMenu)

	cart := r.Group("/cart")
	{
		cart.GET("", cartCtrl.View)
		cart.POST("/add/:item_id", cartCtrl.Add)
		cart.POST("/remove/:item_id", cartCtrl.Remove)
	}

	r.GET("/reviews", reviewCtrl.List)

	api := r.Group("/api")
	{
		api.GET("/menu", menuCtrl.APIMenu)
		api.GET("/reviews", reviewCtrl.APIList)
		api.GET("/stats", menuCtrl.APIStats)
	}

	authed := r.Group("/", middlewares.RequireUser())
	{
		authed.POST("/checkout", orderCtrl.PlaceOrder)
		authed.GET("/orders", orderCtrl.MyOrders)
		authed.POST("/reviews", reviewCtrl.Create)
	}

	admin := r.Group("/admin", middlewares.RequireAdmin())
	{
		admin.GET("/orders", adminCtrl.ListOrders)
		admin.PATCH("/orders/:order_id/status", adminCtrl.UpdateOrderStatus)
		admin.GET("/audit", adminCtrl.AuditLog)
		admin.GET("/reviews/export", adminCtrl.ExportReviews)
		admin.GET("/feed", feedCtrl.Stream)
	}

	return r
}
