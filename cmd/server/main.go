package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"paylane-backend-go/internal/api"
	"paylane-backend-go/internal/auth"
	"paylane-backend-go/internal/config"
	"paylane-backend-go/internal/core"
	"paylane-backend-go/internal/db"
	"paylane-backend-go/internal/middleware"
	"paylane-backend-go/internal/payments"
	"paylane-backend-go/internal/storage"
	"paylane-backend-go/pkg/cache"
	"paylane-backend-go/pkg/mailer"
	"paylane-backend-go/pkg/messagequeue"
)

func main() {
	// --- 1. Initialize Logger (Zap) ---
	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Zap logger initialized successfully.")

	// --- 2. Load Application Configuration ---
	// A local .env is optional; real environments set variables directly.
	if err := godotenv.Load(); err != nil {
		zapLogger.Debug("No .env file loaded", zap.Error(err))
	}
	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load application configuration", zap.Error(err))
	}
	zapLogger.Info("Application configuration loaded successfully.")

	// --- 3. Initialize Firestore ---
	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()
	if err := db.InitFirestore(initCtx, appConfig); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firestore", zap.Error(err))
	}
	firestoreClient := db.GetFirestoreClient()
	if firestoreClient == nil {
		zapLogger.Fatal("CRITICAL_ERROR: Firestore client is nil after initialization. Application cannot start.")
	}
	zapLogger.Info("Firestore initialized successfully.")

	// --- 4. Initialize Repositories ---
	userRepo := db.NewFirestoreUserRepository(firestoreClient)
	profileRepo := db.NewFirestoreProfileRepository(firestoreClient)
	tokenRepo := db.NewFirestoreResetTokenRepository(firestoreClient)
	accountRepo := db.NewFirestorePaymentAccountRepository(firestoreClient)
	zapLogger.Info("Repositories initialized successfully.")

	// --- 5. Initialize Collaborators ---
	issuer := auth.NewJWTIssuer([]byte(appConfig.JWTSecret), appConfig.TokenValidity)
	smtpMailer := mailer.New(appConfig.SMTPHost, appConfig.SMTPPort, appConfig.SMTPUser, appConfig.SMTPPass, appConfig.SMTPSender)
	processor := payments.NewStripeProcessor(appConfig.StripeSecretKey, appConfig.StripeWebhookSecret)

	var eventCache core.Cache
	if appConfig.RedisAddr != "" {
		redisCache, cerr := cache.NewRedisCache(cache.NewRedisCacheConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
		})
		if cerr != nil {
			zapLogger.Warn("Redis unavailable; webhook dedup disabled", zap.Error(cerr))
		} else {
			eventCache = redisCache
			zapLogger.Info("Redis cache connected", zap.String("addr", appConfig.RedisAddr))
		}
	}

	var events core.EventPublisher
	var mq messagequeue.MessageQueue
	if appConfig.RabbitMQURL != "" {
		mq, err = messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: appConfig.RabbitMQURL})
		if err != nil {
			zapLogger.Warn("RabbitMQ unavailable; event publication disabled", zap.Error(err))
		} else {
			events = mq
			defer mq.Close()
			zapLogger.Info("RabbitMQ connected")
		}
	}

	var pictures core.PictureStorage
	if appConfig.S3Bucket != "" {
		pictures = storage.NewS3PictureStorage(storage.Options{
			Region:       appConfig.S3Region,
			Bucket:       appConfig.S3Bucket,
			AccessKey:    appConfig.S3AccessKey,
			SecretKey:    appConfig.S3SecretKey,
			BaseEndpoint: appConfig.S3BaseEndpoint,
		})
		zapLogger.Info("S3 picture storage configured", zap.String("bucket", appConfig.S3Bucket))
	}

	// --- 6. Initialize Services ---
	identityService := core.NewIdentityService(userRepo, profileRepo, issuer, pictures, events, zapLogger)
	recoveryService := core.NewRecoveryService(userRepo, tokenRepo, issuer, smtpMailer, appConfig.BaseURL, appConfig.ResetLinkValidity, zapLogger)
	paymentService := core.NewPaymentService(accountRepo, userRepo, profileRepo, processor, eventCache, events, zapLogger)
	zapLogger.Info("Core services initialized successfully.")

	// --- 7. Setup Gin HTTP Engine ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()

	// --- 8. Apply Global Middleware (Order is important) ---
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(appConfig))

	// --- 9. Setup API Routes ---
	api.SetupRoutes(router, zapLogger, issuer, userRepo, identityService, recoveryService, paymentService)

	// --- 10. Configure and Start HTTP Server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 11. Graceful Shutdown Handling ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Fatal("Server forced to shutdown due to error during graceful shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exiting gracefully.")
}
