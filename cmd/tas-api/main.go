package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/tas-project/tas-api/api/swagger"
	"github.com/tas-project/tas-api/internal/handler"
	"github.com/tas-project/tas-api/internal/matcher"
	"github.com/tas-project/tas-api/internal/middleware"
	"github.com/tas-project/tas-api/internal/models"
	"github.com/tas-project/tas-api/internal/ocr"
	"github.com/tas-project/tas-api/internal/repository"
	"github.com/tas-project/tas-api/internal/service"
	"github.com/tas-project/tas-api/pkg/cache"
	"github.com/tas-project/tas-api/pkg/config"
	"github.com/tas-project/tas-api/pkg/database"
	"github.com/tas-project/tas-api/pkg/logger"
	corsmiddleware "github.com/tas-project/tas-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tas-project/tas-api/pkg/middleware/requestid"
	"github.com/tas-project/tas-api/pkg/storage"
)

// @title TAS Equivalence API
// @version 0.1.0
// @description Admission evaluation pipeline for academic equivalence applications
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// Redis is optional: the acceptance rule cache degrades to recomputing
	// from the database when it is absent.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, rule caching disabled", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}

	ocrClient := ocr.NewClient(cfg.OCR, logr)
	matcherClient := matcher.NewClient(cfg.Matcher, logr)

	userRepo := repository.NewUserRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	extractedRepo := repository.NewExtractedSubjectRepository(db)
	targetRepo := repository.NewTargetSubjectRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	suggestionRepo := repository.NewSuggestionRepository(db)
	ruleRepo := repository.NewAcceptanceRuleRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metrics := service.NewMetricsService()

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "tas-api",
		Audience:           []string{"tas-frontend"},
		SingleSession:      false,
	})

	acceptanceService := service.NewAcceptanceService(
		ruleRepo, targetRepo, mappingRepo, applicationRepo,
		cacheRepo, cfg.Acceptance.CacheTTL, cfg.Acceptance.DefaultThreshold,
		metrics, logr,
	)
	suggestionService := service.NewSuggestionService(suggestionRepo, matcherClient, cfg.Matcher.Language, metrics, logr)
	mappingService := service.NewMappingService(
		mappingRepo, targetRepo, extractedRepo, documentRepo,
		suggestionService, acceptanceService, metrics, logr,
	)
	submissionService := service.NewSubmissionService(
		applicationRepo, documentRepo, extractedRepo, targetRepo,
		store, ocrClient, matcherClient, mappingService, suggestionService, acceptanceService,
		service.UploadPolicy{
			MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
			AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
		},
		metrics, validate, logr,
	)
	applicationService := service.NewApplicationService(
		applicationRepo, documentRepo, mappingRepo, userRepo,
		acceptanceService, mappingService, logr,
	)
	targetService := service.NewTargetService(targetRepo, acceptanceService, validate, logr)
	exportService := service.NewExportService(applicationService, nil, nil, logr)

	authHandler := handler.NewAuthHandler(authService)
	applicationHandler := handler.NewApplicationHandler(submissionService, applicationService, exportService)
	mappingHandler := handler.NewMappingHandler(mappingService)
	suggestionHandler := handler.NewSuggestionHandler(suggestionService)
	acceptanceHandler := handler.NewAcceptanceHandler(acceptanceService)
	targetHandler := handler.NewTargetHandler(targetService)
	matcherHandler := handler.NewMatcherCatalogHandler(matcherClient)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	student := api.Group("/applications", middleware.JWT(authService), middleware.RequireRoles(models.RoleStudent))
	{
		student.POST("",
			middleware.Audit(userRepo, models.AuditActionApplicationSubmit, "application"),
			applicationHandler.Submit)
		student.GET("/me", applicationHandler.MyStatus)
		student.GET("/me/mappings", applicationHandler.MyMappings)
	}

	admin := api.Group("/admin", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin, models.RoleStaff))
	{
		admin.GET("/applications", applicationHandler.List)
		admin.GET("/applications/:id/mappings", applicationHandler.Mappings)
		admin.GET("/applications/:id/export", applicationHandler.Export)
		admin.POST("/applications/:id/decision",
			middleware.Audit(userRepo, models.AuditActionApplicationDecide, "application"),
			applicationHandler.Decide)
		admin.DELETE("/applications/:id", applicationHandler.Delete)

		admin.PATCH("/mappings/:id",
			middleware.Audit(userRepo, models.AuditActionMappingOverride, "subject_mapping"),
			mappingHandler.Override)

		admin.GET("/suggestions", suggestionHandler.List)
		admin.POST("/suggestions/:id/decision",
			middleware.Audit(userRepo, models.AuditActionSuggestionDecide, "mapping_suggestion"),
			suggestionHandler.Decide)
		admin.DELETE("/suggestions", suggestionHandler.Purge)

		admin.GET("/acceptance-rule", acceptanceHandler.Rule)
		admin.PUT("/acceptance-rule",
			middleware.Audit(userRepo, models.AuditActionThresholdChange, "acceptance_rule"),
			acceptanceHandler.UpdateThreshold)

		admin.GET("/targets", targetHandler.List)
		admin.POST("/targets",
			middleware.Audit(userRepo, models.AuditActionTargetChange, "target_subject"),
			targetHandler.Create)
		admin.PUT("/targets/:id",
			middleware.Audit(userRepo, models.AuditActionTargetChange, "target_subject"),
			targetHandler.Update)
		admin.DELETE("/targets/:id",
			middleware.Audit(userRepo, models.AuditActionTargetChange, "target_subject"),
			targetHandler.Delete)

		admin.GET("/matcher/targets", matcherHandler.ListTargets)
		admin.POST("/matcher/targets", matcherHandler.CreateTarget)
		admin.PATCH("/matcher/targets/:id", matcherHandler.UpdateTarget)
		admin.DELETE("/matcher/targets/:id", matcherHandler.DeleteTarget)
		admin.GET("/matcher/aliases", matcherHandler.ListAliases)
		admin.DELETE("/matcher/aliases/:id", matcherHandler.DeleteAlias)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
