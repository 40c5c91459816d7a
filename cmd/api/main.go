package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/menu_api/internal/cache"
	"github.com/GTDGit/menu_api/internal/config"
	"github.com/GTDGit/menu_api/internal/database"
	"github.com/GTDGit/menu_api/internal/handler"
	"github.com/GTDGit/menu_api/internal/middleware"
	"github.com/GTDGit/menu_api/internal/models"
	"github.com/GTDGit/menu_api/internal/realtime"
	"github.com/GTDGit/menu_api/internal/repository"
	"github.com/GTDGit/menu_api/internal/service"
	"github.com/GTDGit/menu_api/internal/utils"
	"github.com/GTDGit/menu_api/internal/worker"
)

// main is the application entrypoint for the menu API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	utils.ConfigureJWT(cfg.JWTSecret, cfg.JWTTTL)

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("timezone", cfg.Location.String()).Msg("starting menu api")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := database.Migrate(db.DB, "migrations"); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	menuCache := cache.NewMenuCache(redisClient, cfg.Redis.MenuTTL)
	cartKeys := cache.NewCartKeyCache(redisClient, cfg.Redis.CartTTL)

	// 4. Context for background work
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Broadcast hub
	hub := realtime.NewHub(cfg.Realtime.PingInterval)
	if err := hub.Start(ctx); err != nil {
		log.Error().Err(err).Msg("broadcast hub failed to start")
		os.Exit(1)
	}
	notifier := realtime.NewHubNotifier(hub)

	// 6. Image catalog
	var source service.ImageSource
	switch cfg.Images.Backend {
	case "s3":
		s3Source, err := service.NewS3ImageSource(ctx, cfg.Images)
		if err != nil {
			log.Error().Err(err).Msg("S3 image source initialization failed")
			os.Exit(1)
		}
		source = s3Source
	default:
		source = service.NewLocalDirSource(cfg.Images.Dir, cfg.Images.BaseURL)
	}
	images := service.NewImageCatalog(source)

	// 7. Initialize repositories and services
	stores := repository.NewStores(db)
	txRunner := repository.NewSQLTxRunner(db)

	signalSvc := service.NewSignalService(stores, cfg.Location)
	pricingSvc := service.NewPricingService(stores.Products, signalSvc, nil)
	rankingSvc := service.NewRankingService(stores.Products, signalSvc, images, menuCache, nil)
	recomputeSvc := service.NewRecomputeService(signalSvc, pricingSvc, rankingSvc, notifier)
	orderSvc := service.NewOrderService(stores, txRunner, recomputeSvc, images, notifier, cfg.Location, nil)
	cartSvc := service.NewCartService(stores, txRunner, cartKeys, images)
	authSvc := service.NewAuthService(stores.Customers, stores.Sessions, cartSvc)
	restockSvc := service.NewRestockService(service.NewInventoryLedger(stores.Inventory), recomputeSvc, notifier)

	// 8. Initialize handlers
	handlers := &Handlers{
		Health:    handler.NewHealthHandler(handler.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, db) }), redisClient, hub),
		Order:     handler.NewOrderHandler(orderSvc),
		Menu:      handler.NewMenuHandler(rankingSvc, recomputeSvc),
		Cart:      handler.NewCartHandler(cartSvc),
		Auth:      handler.NewAuthHandler(authSvc),
		Inventory: handler.NewInventoryHandler(restockSvc),
		Image:     handler.NewImageHandler(images),
		Stream:    handler.NewStreamHandler(hub, cfg.Realtime.BufferSize, nil),
	}

	// 9. Initialize middleware
	jwtMw := middleware.NewJWTMiddleware()
	loginLimiter := middleware.NewLoginRateLimiter(5, time.Minute)
	go loginLimiter.Cleanup(ctx, 5*time.Minute)

	// 10. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.LoggingMiddleware())
	if cfg.Images.Backend == "local" {
		router.Static("/assets/images/products", cfg.Images.Dir)
	}
	setupRoutes(router, handlers, jwtMw, loginLimiter, cfg.Env == "production")

	// 11. Startup recompute, then workers
	if cfg.Worker.RunOnStartup {
		worker.RunOnce(ctx,
			worker.NamedJob{Name: "pricing", Job: func(ctx context.Context) error {
				_, err := recomputeSvc.RecomputePrices(ctx)
				return err
			}},
			worker.NamedJob{Name: "popularity", Job: func(ctx context.Context) error {
				_, err := recomputeSvc.RefreshPopularity(ctx)
				return err
			}},
			worker.NamedJob{Name: "ranking", Job: func(ctx context.Context) error {
				_, err := recomputeSvc.RecomputeRanking(ctx)
				return err
			}},
		)
	}

	go worker.NewRecomputeWorker("full", func(ctx context.Context) error {
		_, err := recomputeSvc.FullRecompute(ctx)
		return err
	}, cfg.Worker.FullRecomputeInterval).Start(ctx)
	go worker.NewRecomputeWorker("pricing", func(ctx context.Context) error {
		_, err := recomputeSvc.RecomputePrices(ctx)
		return err
	}, cfg.Worker.PriceRecomputeInterval).Start(ctx)
	go worker.NewRecomputeWorker("popularity", func(ctx context.Context) error {
		_, err := recomputeSvc.RefreshPopularity(ctx)
		return err
	}, cfg.Worker.PopularityRecomputeInterval).Start(ctx)
	go worker.NewRecomputeWorker("ranking", func(ctx context.Context) error {
		_, err := recomputeSvc.RecomputeRanking(ctx)
		return err
	}, cfg.Worker.RankingRecomputeInterval).Start(ctx)

	// 12. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Cancel context to stop workers, then drop push subscribers
	cancel()
	hub.Shutdown()

	// 15. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health    *handler.HealthHandler
	Order     *handler.OrderHandler
	Menu      *handler.MenuHandler
	Cart      *handler.CartHandler
	Auth      *handler.AuthHandler
	Inventory *handler.InventoryHandler
	Image     *handler.ImageHandler
	Stream    *handler.StreamHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware, loginLimiter *middleware.LoginRateLimiter, secureCookies bool) {
	api := router.Group("/api")
	api.GET("/health", handlers.Health.GetHealth)

	// Push channels
	api.GET("/ws", handlers.Stream.WebSocket)
	api.GET("/events", handlers.Stream.Events)

	// Public menu reads
	api.GET("/menu", handlers.Menu.GetMenu)
	api.GET("/products/rankings", handlers.Menu.GetRankings)
	api.GET("/products/popular", handlers.Menu.GetPopular)

	// Auth and cart carry the anonymous cart cookie
	cartMw := middleware.CartSession(secureCookies)
	auth := api.Group("/auth")
	auth.Use(cartMw, loginLimiter.Handle())
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
	}

	cart := api.Group("/cart")
	cart.Use(jwtMiddleware.Optional(), cartMw)
	{
		cart.GET("", handlers.Cart.GetCart)
		cart.POST("", handlers.Cart.AddItem)
		cart.DELETE("", handlers.Cart.ClearCart)
		cart.PUT("/:productId", handlers.Cart.UpdateItem)
		cart.DELETE("/:productId", handlers.Cart.RemoveItem)
	}

	// Orders (signed-in customers)
	orders := api.Group("/orders")
	orders.Use(jwtMiddleware.Handle())
	{
		orders.POST("", handlers.Order.CreateOrder)
		orders.GET("/:id", handlers.Order.GetOrder)
		orders.PUT("/:id", handlers.Order.UpdateOrder)
		orders.DELETE("/:id", handlers.Order.DeleteOrder)
	}

	// Manual triggers and maintenance (admin)
	admin := api.Group("")
	admin.Use(jwtMiddleware.Handle(), jwtMiddleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/menu/adjust", handlers.Menu.AdjustMenu)
		admin.POST("/menu/update-all", handlers.Menu.UpdateAll)
		admin.POST("/dynamic-pricing/update", handlers.Menu.UpdatePrices)
		admin.POST("/popular-products/update", handlers.Menu.UpdatePopularity)
		admin.POST("/inventory/:productId/restock", handlers.Inventory.Restock)
		admin.POST("/images/rebuild", handlers.Image.Rebuild)
	}
}

// setupLogger configures zerolog global logger based on environment.
func setupLogger(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
