package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paylane-backend-go/internal/core"
	"paylane-backend-go/internal/db"
	"paylane-backend-go/internal/middleware"
)

// SetupRoutes configures all the application routes with their handlers and middleware.
// It's expected that global middleware (Logging, Recovery, CORS) are applied to the `router`
// instance *before* this function is called, typically in `main.go`.
func SetupRoutes(
	router *gin.Engine,
	logger *zap.Logger,
	issuer core.TokenIssuer,
	userRepo db.UserRepository,
	identityService core.IdentityService,
	recoveryService core.RecoveryService,
	paymentService core.PaymentService,
) {
	authMW := middleware.NewAuthMiddleware(issuer, userRepo)

	authHandler := NewAuthHandler(identityService)
	recoveryHandler := NewRecoveryHandler(recoveryService)
	userHandler := NewUserHandler(identityService)
	paymentHandler := NewPaymentHandler(paymentService)

	apiV1 := router.Group("/api/v1")
	{
		// --- Authentication Endpoints (public) ---
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/signup", authHandler.Signup)
			authGroup.POST("/login", authHandler.Login)

			// Password recovery; ownership is proven by the mailed link.
			authGroup.POST("/forgot-password", recoveryHandler.EmailResetPassword)
			authGroup.POST("/forgot-password/reset", recoveryHandler.ResetPassword)
		}

		// --- User Endpoints ---
		usersGroup := apiV1.Group("/users", authMW.VerifyToken())
		{
			usersGroup.GET("/me", userHandler.GetCurrentUser)
			usersGroup.GET("", userHandler.GetAllUsers)
			usersGroup.PATCH("", userHandler.EditUserProfile)
			usersGroup.PATCH("/state", userHandler.SetState)
			usersGroup.POST("/picture/presign", userHandler.PresignPictureUpload)
			usersGroup.GET("/:userId", userHandler.GetUser)
		}

		// --- Payment Endpoints ---
		paymentsGroup := apiV1.Group("/payments")
		{
			authed := paymentsGroup.Group("", authMW.VerifyToken())
			{
				authed.POST("/customer-source", paymentHandler.CreateCustomerSource)
				authed.POST("/connected-account", paymentHandler.CreateConnectedAccount)
				authed.POST("/connected-account/link", paymentHandler.CreateAccountLink)
				authed.GET("/accounts", paymentHandler.ListAccounts)
				authed.POST("/charge", paymentHandler.Charge)
				authed.POST("/refund", paymentHandler.Refund)
				authed.POST("/transfer", paymentHandler.Transfer)
				authed.POST("/topup", paymentHandler.Topup)
			}

			// Public webhook endpoint for Stripe (NO authMW.VerifyToken() here).
			// Stripe authenticates webhooks via signature, handled by the service.
			paymentsGroup.POST("/webhooks/stripe", paymentHandler.HandleStripeWebhook)
		}
	}

	// --- General Health Check Endpoint ---
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Paylane backend is healthy."})
	})

	logger.Info("API routes configured successfully under /api/v1 and /health.")
}
