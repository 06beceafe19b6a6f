package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradege/marketedgepros-sub001/challenge"
	"github.com/tradege/marketedgepros-sub001/commission"
	"github.com/tradege/marketedgepros-sub001/config"
	"github.com/tradege/marketedgepros-sub001/database"
	"github.com/tradege/marketedgepros-sub001/handlers"
	"github.com/tradege/marketedgepros-sub001/logging"
	"github.com/tradege/marketedgepros-sub001/middleware"
	"github.com/tradege/marketedgepros-sub001/models"
	"github.com/tradege/marketedgepros-sub001/mt5"
	"github.com/tradege/marketedgepros-sub001/payments"
	"github.com/tradege/marketedgepros-sub001/utils"
	"github.com/tradege/marketedgepros-sub001/workers"
)

func main() {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	if err := logging.InitLogger(cfg.Env == "release"); err != nil {
		panic(err)
	}
	defer logging.Logger.Sync()

	if err := database.InitDB(cfg); err != nil {
		logging.Logger.Fatal("❌ Database init failed", zap.Error(err))
	}
	defer database.Pool.Close()

	if err := database.InitRedis(cfg.RedisURL); err != nil {
		logging.Logger.Fatal("❌ Redis init failed", zap.Error(err))
	}
	defer database.RedisClient.Close()

	vault, err := utils.NewCipher(cfg.EncryptionKey, cfg.EncryptionKeyVersion)
	if err != nil {
		logging.Logger.Fatal("❌ Encryption key invalid", zap.Error(err))
	}

	store, err := utils.NewObjectStore(cfg)
	if err != nil {
		logging.Logger.Fatal("❌ Object store init failed", zap.Error(err))
	}

	gateway := mt5.NewClient(cfg)
	challenge.Init(gateway, vault)

	defaultRate, err := decimal.NewFromString(cfg.DefaultCommissionRate)
	if err != nil {
		logging.Logger.Fatal("❌ Invalid DEFAULT_COMMISSION_RATE", zap.Error(err))
	}
	commission.Init(defaultRate, cfg.CommissionHoldDays)

	// completion credits the sale downstream: activate the challenge, then
	// record the referral commission, all in the payment's transaction
	payments.OnCompleted(challenge.ActivateForPayment)
	payments.OnCompleted(commission.OnPaymentCompleted)
	payments.OnRefunded(challenge.InvalidateForRefund)
	payments.OnRefunded(commission.OnPaymentRefunded)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go workers.NewEmailWorker(cfg).Run(ctx)
	go (&workers.ChallengeSyncWorker{Workers: 4}).Run(ctx)
	go workers.NewScheduler(cfg).Run(ctx)

	router := setupRouter(cfg, store)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		logging.Logger.Info("🚀 Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("❌ Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Error("shutdown error", zap.Error(err))
	}
	logging.Logger.Info("✅ Server stopped")
}

func setupRouter(cfg *config.Config, store *utils.ObjectStore) *gin.Engine {
	if cfg.Env == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logging.Logger.Fatal("❌ Trusted proxy config invalid", zap.Error(err))
	}

	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg))

	router.GET("/health", handlers.Health())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	root := router.Group("/api/v1")

	// webhooks authenticate by signature, not by session, so they sit
	// outside the CSRF chain
	root.POST("/webhooks/payment", handlers.PaymentWebhook(cfg))
	root.POST("/webhooks/mt5", handlers.MT5Webhook(cfg))

	api := root.Group("")
	api.Use(middleware.CSRF())

	// public
	api.POST("/auth/register", middleware.RateLimit(10, time.Minute), handlers.Register(cfg))
	api.POST("/auth/verification-code", middleware.RateLimit(5, time.Minute),
		handlers.RequestVerificationCode(cfg))
	api.POST("/auth/login", middleware.RateLimit(20, time.Minute),
		middleware.LoginGuard(cfg), handlers.Login(cfg))
	api.POST("/auth/refresh", middleware.RateLimit(30, time.Minute), handlers.Refresh(cfg))
	api.GET("/programs", handlers.ListPrograms())
	api.GET("/programs/:id", handlers.GetProgram())

	// authenticated
	authed := api.Group("")
	authed.Use(middleware.AuthRequired(cfg))
	{
		authed.POST("/auth/logout", handlers.Logout(cfg))
		authed.GET("/auth/me", handlers.Me())
		authed.POST("/auth/change-password", handlers.ChangePassword())
		authed.GET("/auth/login-history", handlers.LoginHistory())
		authed.POST("/auth/2fa/setup", handlers.TwoFASetup())
		authed.POST("/auth/2fa/enable", handlers.TwoFAEnable())
		authed.POST("/auth/2fa/disable", handlers.TwoFADisable())

		authed.POST("/purchases/quote", handlers.QuotePurchase())
		authed.POST("/purchases", handlers.PurchaseChallenge(cfg))
		authed.GET("/payments", handlers.ListPayments())

		authed.GET("/challenges", handlers.ListChallenges())
		authed.GET("/challenges/:id", handlers.GetChallenge())
		authed.GET("/challenges/:id/credentials", handlers.GetCredentials())
		authed.GET("/challenges/:id/trades", handlers.ListTrades())

		authed.GET("/wallet", handlers.GetWallet())
		authed.GET("/wallet/transactions", handlers.ListWalletTransactions())

		authed.GET("/withdrawals", handlers.ListWithdrawals())
		authed.POST("/withdrawals", handlers.RequestWithdrawal())
		authed.GET("/withdrawals/available", handlers.AvailableBalance())
		authed.POST("/payouts", handlers.RequestPayout())

		authed.GET("/commissions", handlers.ListMyCommissions())
		authed.GET("/referrals", handlers.ListReferrals())

		authed.GET("/scaling", handlers.GetMyScaling())
		authed.GET("/scaling/tiers", handlers.ListScalingTiers())

		authed.POST("/kyc/upload", handlers.RequestKYCUpload(store))

		authed.GET("/users", handlers.ListUsers())
		authed.GET("/users/:id", handlers.GetUser())
	}

	// admin and super_admin
	admin := authed.Group("")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/admin/dashboard", handlers.DashboardStats())

		admin.POST("/users", handlers.CreateUser())
		admin.DELETE("/users/:id", handlers.DeactivateUser())
		admin.PATCH("/users/:id/commission-rate", handlers.UpdateCommissionRate())

		admin.POST("/programs", handlers.CreateProgram())
		admin.PUT("/programs/:id", handlers.UpdateProgram())
		admin.DELETE("/programs/:id", handlers.DeactivateProgram())
		admin.POST("/programs/:id/addons", handlers.CreateAddon())

		admin.POST("/wallet/adjust", handlers.AdjustWallet())

		admin.POST("/payments/cash", handlers.RecordCashPayment(cfg))
		admin.POST("/payments/:id/refund", handlers.RefundPayment())

		admin.POST("/withdrawals/:id/advance", handlers.AdvanceWithdrawal(cfg))
		admin.POST("/payouts/:id/review", handlers.ReviewPayout())

		admin.POST("/scaling/:id/scale-up", handlers.ScaleUpAccount())

		admin.GET("/kyc/documents", handlers.ListKYCDocuments(store))
		admin.POST("/kyc/documents/:id/review", handlers.ReviewKYCDocument())
	}

	// super_admin only: money creation and its review never delegate down
	// the hierarchy
	super := authed.Group("")
	super.Use(middleware.RoleRequired(models.RoleSuperAdmin))
	{
		super.POST("/payments/free", handlers.GrantFreeChallenge(cfg))
		super.POST("/payments/:id/approve", handlers.ApproveCashPayment(cfg))
		super.POST("/payments/:id/reject", handlers.RejectCashPayment())
		super.POST("/wallet/transfer", handlers.TransferFunds())
	}

	return router
}
