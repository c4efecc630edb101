package di

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/talktera/talktera-scheduling-service/internal/clients"
	"github.com/talktera/talktera-scheduling-service/internal/config"
	"github.com/talktera/talktera-scheduling-service/internal/handler"
	"github.com/talktera/talktera-scheduling-service/internal/repository"
	"github.com/talktera/talktera-scheduling-service/internal/service"
	"github.com/talktera/talktera-scheduling-service/internal/utils"
	"github.com/talktera/talktera-scheduling-service/logs"
)

// HTTPSetup wires the store, collaborator clients, service, handler and cron
// jobs, and returns the ready-to-run server plus a shutdown hook.
func HTTPSetup(cfg *config.Config) (*http.Server, func()) {
	logger := logs.NewLogger()
	db := config.InitDatabase(cfg)

	schedulingRepo := repository.NewSchedulingRepository(db)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	availabilityCache := repository.NewAvailabilityCache(redisClient, cfg.CacheTTL, logger)

	producer := NewNotificationProducer(cfg.KafkaBroker, cfg.KafkaTopic)
	calendarClient := clients.NewCalendarAPI(cfg.CalendarBaseURL, cfg.CalendarAPIKey)
	paymentClient := clients.NewPaymentAPI(cfg.PaymentBaseURL, cfg.PaymentAPIKey)

	schedulingService := service.NewSchedulingService(
		schedulingRepo,
		calendarClient,
		paymentClient,
		producer,
		availabilityCache,
		logger,
		service.Options{
			LookaheadDays:         cfg.LookaheadDays,
			HorizonDays:           cfg.HorizonDays,
			AnchorOffsetDays:      cfg.AnchorOffsetDays,
			ApplicationFeePercent: cfg.ApplicationFeePercent,
			Location:              cfg.Location(),
		},
	)

	schedulingHandler := handler.NewSchedulingHandler(schedulingService, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	schedulingHandler.Register(router)

	go utils.StartCronScheduler(schedulingService, cfg, logger)

	logger.Infof("HTTP server listening on %s", cfg.Port)
	server := &http.Server{
		Addr:    cfg.Port,
		Handler: router,
	}
	cleanup := func() {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close kafka producer")
		}
		if err := redisClient.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close redis client")
		}
	}
	return server, cleanup
}
