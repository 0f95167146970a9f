package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lshigami/intervue/config"
	"github.com/lshigami/intervue/database"
	_ "github.com/lshigami/intervue/docs"
	"github.com/lshigami/intervue/internal/controller"
	adminctrl "github.com/lshigami/intervue/internal/controller/admin"
	userctrl "github.com/lshigami/intervue/internal/controller/user"
	"github.com/lshigami/intervue/internal/lock"
	"github.com/lshigami/intervue/internal/logger"
	"github.com/lshigami/intervue/internal/metrics"
	"github.com/lshigami/intervue/internal/model"
	"github.com/lshigami/intervue/internal/queue"
	"github.com/lshigami/intervue/internal/repository"
	"github.com/lshigami/intervue/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Intervue Interview API
// @version 1.0
// @description Templated technical assessments with background grading, plus adaptive AI panel interviews.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			database.NewRedisClient,
			NewMetricsRegistry,
			NewMetrics,
			NewGinEngine,
		),

		fx.Provide(
			repository.NewTemplateRepository,
			repository.NewQuestionRepository,
			repository.NewSessionRepository,
			repository.NewAnswerRepository,
			repository.NewReportRepository,
			repository.NewIntegrityRepository,
			repository.NewPanelSessionRepository,
		),

		// Infrastructure shared by both interview modes.
		fx.Provide(
			NewJobQueue,
			func(q *queue.RedisQueue) queue.Queue { return q },
			func(client *redis.Client, cfg *config.Config) lock.SessionLocker {
				return lock.NewRedisLocker(client, cfg.Panel.LockTTL)
			},
		),

		fx.Provide(
			service.NewGeminiLLMService,
			service.NewSandboxService,
			service.NewGraderRegistry,
			func(repo repository.QuestionRepository, cfg *config.Config) (service.QuestionService, error) {
				return service.NewQuestionService(repo, cfg.CacheSize)
			},
			func(repo repository.TemplateRepository, qs service.QuestionService, cfg *config.Config) service.TemplateService {
				return service.NewTemplateService(repo, qs, cfg.PassPercent)
			},
			service.NewSessionService,
			service.NewEvaluationService,
			service.NewReportService,
			service.NewIntegrityService,
			service.NewSMTPMailer,
			service.NewNotifierService,
			func(llm service.GeminiLLMService, m *metrics.Metrics, cfg *config.Config) service.PanelAIService {
				return service.NewPanelAIService(llm, m, cfg.Panel.PassPercent)
			},
			service.NewPanelService,
		),

		fx.Provide(
			controller.NewHealthController,
			adminctrl.NewTemplateController,
			userctrl.NewSessionController,
			userctrl.NewPanelController,
		),

		fx.Invoke(AutoMigrateDB),
		fx.Invoke(RegisterWorkers),
		fx.Invoke(RegisterRoutesAndStartServer),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func NewMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

func NewJobQueue(client *redis.Client, cfg *config.Config, m *metrics.Metrics) *queue.RedisQueue {
	return queue.NewRedisQueue(client, queue.Config{
		Concurrency:  cfg.Queue.Concurrency,
		PollInterval: cfg.Queue.PollInterval,
	}, m)
}

func NewGinEngine(cfg *config.Config) *gin.Engine {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	logger.SetLevel(cfg.LogLevel)

	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("user_agent", param.Request.UserAgent()).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", controller.CandidateHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterWorkers binds the job handlers and ties the background workers to the app lifecycle.
func RegisterWorkers(
	lc fx.Lifecycle,
	jobs *queue.RedisQueue,
	evaluations service.EvaluationService,
	reports service.ReportService,
	notifier service.NotifierService,
) {
	jobs.Register(queue.EvaluationQueue, evaluations.HandleJob, evaluations.OnExhausted)
	jobs.Register(queue.ReportQueue, reports.HandleJob, reports.OnExhausted)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			notifier.Start()
			return jobs.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			if err := jobs.Stop(ctx); err != nil {
				log.Error().Err(err).Msg("Job workers did not stop cleanly")
			}
			return notifier.Stop(ctx)
		},
	})
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	reg *prometheus.Registry,
	health *controller.HealthController,
	templateAdminCtrl *adminctrl.TemplateController,
	sessionCtrl *userctrl.SessionController,
	panelCtrl *userctrl.PanelController,
) {
	router.GET("/healthz", health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	adminAPIGroup := router.Group("/api/v1/admin")
	{
		templates := adminAPIGroup.Group("/templates")
		templates.POST("", templateAdminCtrl.CreateTemplate)
		templates.GET("/:template_id", templateAdminCtrl.GetTemplate)
		templates.POST("/:template_id/questions", templateAdminCtrl.AddQuestion)
	}

	userAPIGroup := router.Group("/api/v1")
	{
		userAPIGroup.GET("/templates", sessionCtrl.ListTemplates)
		userAPIGroup.GET("/templates/:template_id", sessionCtrl.GetTemplate)

		sessions := userAPIGroup.Group("/sessions")
		sessions.POST("", sessionCtrl.StartSession)
		sessions.GET("", sessionCtrl.ListSessions)
		sessions.GET("/:session_id", sessionCtrl.GetSession)
		sessions.GET("/:session_id/next", sessionCtrl.NextQuestion)
		sessions.POST("/:session_id/answers", sessionCtrl.SubmitAnswer)
		sessions.POST("/:session_id/complete", sessionCtrl.CompleteSession)
		sessions.POST("/:session_id/integrity", sessionCtrl.RecordIntegrityEvent)
		sessions.GET("/:session_id/integrity", sessionCtrl.ListIntegrityEvents)
		sessions.GET("/:session_id/report", sessionCtrl.GetReport)

		panel := userAPIGroup.Group("/panel/sessions")
		panel.POST("", panelCtrl.CreateSession)
		panel.GET("", panelCtrl.ListSessions)
		panel.GET("/:id/question", panelCtrl.CurrentQuestion)
		panel.POST("/:id/answers", panelCtrl.SubmitAnswer)
		panel.POST("/:id/skip", panelCtrl.Skip)
		panel.POST("/:id/abandon", panelCtrl.Abandon)
		panel.GET("/:id/report", panelCtrl.GetReport)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Intervue API server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Template{},
		&model.Question{},
		&model.Session{},
		&model.Answer{},
		&model.Report{},
		&model.IntegrityEvent{},
		&model.PanelSession{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
