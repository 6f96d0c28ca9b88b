package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/MikeMC777/storefront/docs"
	"github.com/MikeMC777/storefront/internal/httpx"
	"github.com/MikeMC777/storefront/internal/order"
	"github.com/MikeMC777/storefront/internal/product"
	"github.com/MikeMC777/storefront/internal/session"
	"github.com/MikeMC777/storefront/internal/user"
)

type routerDeps struct {
	Products     product.Repository // cached
	FreshProduct productReader
	Images       *product.ImageStore
	Users        *user.Service
	Sessions     *session.Manager
	Checkout     checkoutCreator
	Verifier     orderVerifier
	Orders       order.Repository
	Limiter      *httpx.RateLimiter
	CORSOrigins  []string
	CookieSecure bool
	MaxUpload    int64
	Log          zerolog.Logger
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(d.Log))
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.Static(imageBase, d.Images.Dir())

	api := r.Group("/api")
	api.GET("/products", listProductsHandler(d.Products))
	api.GET("/products/:id", getProductHandler(d.Products))

	limited := api.Group("", d.Limiter.Middleware())
	limited.POST("/register", registerHandler(d.Users))
	limited.POST("/login", loginHandler(d.Users, d.Sessions, d.CookieSecure))
	api.POST("/logout", logoutHandler(d.Sessions, d.CookieSecure))

	authed := api.Group("", httpx.Authenticate(d.Sessions, true))
	authed.GET("/user/profile", profileHandler(d.Users))
	authed.PUT("/user/profile", updateProfileHandler(d.Users))
	authed.POST("/user/change-password", changePasswordHandler(d.Users))
	authed.POST("/create-checkout-session", createCheckoutHandler(d.Checkout))
	authed.POST("/order/verify", verifyOrderHandler(d.Verifier))
	authed.GET("/my-orders", myOrdersHandler(d.Orders))

	admin := api.Group("/admin", httpx.Authenticate(d.Sessions, true), httpx.RequireAdmin(d.Users))
	admin.POST("/product/new", createProductHandler(d.Products, d.Images, d.MaxUpload, d.Log))
	admin.POST("/products/:id", updateProductHandler(d.Products, d.FreshProduct, d.Images, d.MaxUpload, d.Log))
	admin.DELETE("/products/:id", deleteProductHandler(d.Products, d.FreshProduct, d.Images, d.Log))
	admin.GET("/orders", adminOrdersHandler(d.Orders))

	return r
}
