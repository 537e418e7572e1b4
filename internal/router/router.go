// internal/router/router.go
package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/licenseforge/royalty-backend/internal/config"
	"github.com/licenseforge/royalty-backend/internal/handlers"
	"github.com/licenseforge/royalty-backend/internal/middleware"
	"github.com/licenseforge/royalty-backend/internal/models"
	"github.com/licenseforge/royalty-backend/internal/services"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, error) {
	// Initialize services
	registry := services.NewAccessRegistry(db, models.NormalizeAddress(cfg.Ledger.MainAdmin))
	catalogService := services.NewCatalogService(db, registry)
	licenseeService := services.NewLicenseeService(db, registry)
	eventService := services.NewEventService(db)
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	authService := services.NewAuthService(db, registry, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)

	ledgerTransfer := services.NewLedgerTransfer(db)
	var transfer services.ValueTransfer = ledgerTransfer
	if cfg.Payment.Provider == "stripe" {
		transfer = services.NewStripeTransfer(cfg.Payment.StripeSecretKey, cfg.Payment.Currency)
	}

	clock := services.SystemClock{}
	verifier := services.Secp256k1Verifier{}

	applicationService := services.NewApplicationService(
		db, registry, licenseeService, catalogService, transfer, eventService,
		verifier, clock,
		models.NormalizeAddress(cfg.Ledger.FeeReceiver),
		cfg.Ledger.MaxExtraDataBytes,
	)
	royaltyService := services.NewRoyaltyService(
		db, registry, applicationService, transfer, eventService, clock,
		models.NormalizeAddress(cfg.Ledger.RoyaltyReceiver),
	)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	adminHandler := handlers.NewAdminHandler(registry, eventService)
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	licenseeHandler := handlers.NewLicenseeHandler(licenseeService)
	applicationHandler := handlers.NewApplicationHandler(applicationService)
	royaltyHandler := handlers.NewRoyaltyHandler(royaltyService, storageService)
	ledgerHandler := handlers.NewLedgerHandler(ledgerTransfer, registry)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.GET("/me", middleware.AuthRequired(), authHandler.Me)
		}

		// License catalog routes
		licenses := v1.Group("/licenses")
		{
			licenses.GET("", catalogHandler.ListLicenseTypes)
			licenses.GET("/:hash", catalogHandler.GetLicenseType)

			protected := licenses.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", catalogHandler.AddLicenseType)
				protected.PUT("/:hash", catalogHandler.UpdateLicenseType)
				protected.DELETE("/:hash", catalogHandler.RemoveLicenseType)
			}
		}

		// Licensee directory routes
		licensees := v1.Group("/licensees")
		licensees.Use(middleware.AuthRequired())
		{
			licensees.POST("", licenseeHandler.RegisterLicensee)
			licensees.GET("", licenseeHandler.ListLicensees)
			licensees.GET("/:address", licenseeHandler.GetLicensee)
			licensees.PUT("/:address", licenseeHandler.UpdateLicenseeData)
			licensees.PUT("/:address/usable", licenseeHandler.SetLicenseeUsable)
			licensees.DELETE("/:address", licenseeHandler.RemoveLicensee)
		}

		// License application routes
		applications := v1.Group("/applications")
		applications.Use(middleware.AuthRequired())
		{
			applications.POST("", applicationHandler.SubmitApplication)
			applications.POST("/:licensee/:hash/pay", middleware.PaymentRateLimit(), applicationHandler.PayLicenseFee)

			applications.GET("/:licensee", applicationHandler.ListAgreements)
			applications.GET("/:licensee/:hash", applicationHandler.GetAgreement)
			applications.DELETE("/:licensee/:hash", applicationHandler.RemoveApplication)
			applications.PUT("/:licensee/:hash/approve", applicationHandler.ApproveApplication)
			applications.PUT("/:licensee/:hash/usable", applicationHandler.UpdateLicenseUsable)
			applications.PUT("/:licensee/:hash/modifications", applicationHandler.AddModifications)
			applications.PUT("/:licensee/:hash/reporting-frequency", applicationHandler.UpdateReportingFrequency)
			applications.PUT("/:licensee/:hash/reporting-grace-period", applicationHandler.UpdateReportingGracePeriod)
			applications.PUT("/:licensee/:hash/royalty-grace-period", applicationHandler.UpdateRoyaltyGracePeriod)
			applications.POST("/:licensee/:hash/untimely-reports", applicationHandler.IncrementUntimelyReports)
			applications.POST("/:licensee/:hash/untimely-royalty-payments", applicationHandler.IncrementUntimelyRoyaltyPayments)
		}

		// Royalty report routes
		royalties := v1.Group("/royalties")
		royalties.Use(middleware.AuthRequired())
		{
			royalties.POST("/documents", middleware.UploadRateLimit(), royaltyHandler.UploadReportDocument)

			royalties.POST("/:licensee/:hash/reports", royaltyHandler.SubmitReport)
			royalties.GET("/:licensee/:hash/reports", royaltyHandler.ListReports)
			royalties.GET("/:licensee/:hash/reports/current", royaltyHandler.CurrentReport)
			royalties.GET("/:licensee/:hash/reports/:index", royaltyHandler.GetReport)
			royalties.PUT("/:licensee/:hash/reports/:index", royaltyHandler.ChangeReport)
			royalties.PUT("/:licensee/:hash/reports/:index/approve", royaltyHandler.ApproveReport)
			royalties.POST("/:licensee/:hash/reports/:index/pay", middleware.PaymentRateLimit(), royaltyHandler.PayRoyalty)
		}

		// Internal balance ledger routes
		if cfg.Payment.Provider != "stripe" {
			ledger := v1.Group("/ledger")
			ledger.Use(middleware.AuthRequired())
			{
				ledger.POST("/deposits", ledgerHandler.Deposit)
				ledger.GET("/balance", ledgerHandler.Balance)
				ledger.GET("/transactions", ledgerHandler.History)
			}
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/admins", adminHandler.ListAdmins)
			admin.POST("/admins", adminHandler.AddAdmin)
			admin.DELETE("/admins/:address", adminHandler.RemoveAdmin)
			admin.GET("/events", adminHandler.ListEvents)
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	return r, nil
}
