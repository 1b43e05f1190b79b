package main

import (
	_ "backend/api/swagger" // swagger docs
	"backend/internal/database"
	"backend/internal/handler"
	"backend/internal/middleware"
	"backend/internal/provider"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/internal/websocket"
	"backend/internal/worker"
	"context"
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Tax-Free Administration API
// @version         1.0
// @description     Tax-free shopping back office: eligibility checks, form lifecycle, customs validation and refund settlement.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSslMode := os.Getenv("DB_SSLMODE")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	if dbUser == "" {
		dbUser = "postgres"
	}
	if dbPassword == "" {
		dbPassword = "postgres"
	}
	if dbName == "" {
		dbName = "postgres"
	}
	if dbSslMode == "" {
		dbSslMode = "disable"
	}

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	qrSecret := os.Getenv("QR_SECRET")
	if qrSecret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			log.Fatal("FATAL: QR_SECRET environment variable is required in production mode")
		}
		qrSecret = "default_qr_signing_key" // Development fallback only
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	notifier := provider.NewHubNotifier(wsHub)
	providers := provider.NewMockRegistry()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	currencyRepo := repository.NewCurrencyRepository(db)
	ruleSetRepo := repository.NewRuleSetRepository(db)
	formRepo := repository.NewFormRepository(db)
	refundRepo := repository.NewRefundRepository(db)

	userService := service.NewUserService(userRepo)
	auditService := service.NewAuditService(db)
	currencyService := service.NewCurrencyService(currencyRepo, auditRepo, txManager)
	ruleSetService := service.NewRuleSetService(db, ruleSetRepo, auditRepo, txManager)
	merchantService := service.NewMerchantService(db)
	salesService := service.NewSalesService(db)
	taxFreeService := service.NewTaxFreeService(db, formRepo, ruleSetRepo, notifier, []byte(qrSecret))
	refundService := service.NewRefundService(refundRepo, formRepo, currencyRepo, ruleSetRepo, auditRepo, txManager, providers, notifier)
	statisticsService := service.NewStatisticsService(db)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService)
	auditHandler := handler.NewAuditHandler(auditService)
	currencyHandler := handler.NewCurrencyHandler(currencyService)
	ruleSetHandler := handler.NewRuleSetHandler(ruleSetService)
	merchantHandler := handler.NewMerchantHandler(merchantService)
	salesHandler := handler.NewSalesHandler(salesService)
	taxFreeHandler := handler.NewTaxFreeHandler(taxFreeService)
	refundHandler := handler.NewRefundHandler(refundService)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService)

	// Background retry and expiry sweeps
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	sweeper := worker.NewRetrySweeper(refundRepo, auditRepo, refundService, taxFreeService, 0)
	go sweeper.Run(sweepCtx)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	userHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))
	currencyHandler.RegisterRoutes(router.Group(""))
	ruleSetHandler.RegisterRoutes(router.Group(""))
	merchantHandler.RegisterRoutes(router.Group(""))
	salesHandler.RegisterRoutes(router.Group(""))
	taxFreeHandler.RegisterRoutes(router.Group(""))
	refundHandler.RegisterRoutes(router.Group(""))
	statisticsHandler.RegisterRoutes(router.Group(""))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
