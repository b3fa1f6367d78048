package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = NotFoundJSON()

	// Prometheus scrapes outside the JSON middleware and API key
	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics.Handler()))
	}

	v1 := e.Group("/v1")
	v1.Use(SetNoCacheHeaders)

	// Optional API key authentication
	if cfg.APIKey != "" {
		v1.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	// Websocket before the JSON content type is forced on responses
	v1.GET("/stream", h.Stream)

	api := v1.Group("", SetJSONContentType)
	api.GET("/health", h.Health)
	api.GET("/state/pool", h.PoolState)
	api.GET("/state/wallet", h.WalletState)
	api.POST("/state/refresh", h.Refresh)
	api.GET("/token", h.TokenInfo)
	api.GET("/risk", h.Risk)

	api.GET("/quotes/swap", h.QuoteSwap)
	api.GET("/quotes/redeem", h.QuoteRedeem)
	api.GET("/quotes/liquidity", h.QuoteLiquidity)
	api.GET("/operations/recent", h.RecentOperations)

	// Pending form amounts, cleared when the matching operation settles
	inputs := api.Group("/inputs")
	inputs.GET("/liquidity", h.LiquidityInput)
	inputs.PUT("/liquidity", h.PutLiquidityInput)
	inputs.GET("/swap", h.SwapInput)
	inputs.PUT("/swap", h.PutSwapInput)

	// Chain writes with rate limiting
	writes := api.Group("")
	writes.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.WriteRate),
		Burst:     cfg.WriteBurst,
		ExpiresIn: 2 * time.Minute,
	})))
	writes.POST("/liquidity/add", h.AddLiquidity)
	writes.POST("/liquidity/remove", h.RemoveLiquidity)
	writes.POST("/swaps", h.Swap)

	// Pause switch CRUD endpoints
	flagGroup := api.Group("/flags")
	flagGroup.GET("", h.FlagsList)
	flagGroup.POST("", h.FlagsUpsert)
	flagGroup.GET("/:key", h.FlagsGet)
	flagGroup.PUT("/:key", h.FlagsUpdate)
	flagGroup.DELETE("/:key", h.FlagsDelete)

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
