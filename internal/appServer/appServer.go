package appServer

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/openmic-lineup/config"
	"github.com/ds124wfegd/openmic-lineup/internal/clock"
	repository "github.com/ds124wfegd/openmic-lineup/internal/database/postgres"
	"github.com/ds124wfegd/openmic-lineup/internal/metrics"
	"github.com/ds124wfegd/openmic-lineup/internal/realtime"
	"github.com/ds124wfegd/openmic-lineup/internal/service"
	"github.com/ds124wfegd/openmic-lineup/internal/transport"
	"github.com/ds124wfegd/openmic-lineup/internal/worker"

	"github.com/ds124wfegd/openmic-lineup/pkg/auth"
	"github.com/ds124wfegd/openmic-lineup/pkg/kafka"
	"github.com/ds124wfegd/openmic-lineup/pkg/postgres"
	"github.com/ds124wfegd/openmic-lineup/pkg/queue"
	"github.com/ds124wfegd/openmic-lineup/pkg/redis"
	"github.com/ds124wfegd/openmic-lineup/pkg/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)
	if !cfg.IsProduction() {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	tx := repository.NewTransactor(db)
	eventRepo := repository.NewEventRepository(db)
	venueRepo := repository.NewVenueRepository(db)
	userRepo := repository.NewUserRepository(db)
	slotRepo := repository.NewLineupSlotRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db)

	m := metrics.New()
	clk := clock.NewSystem()

	hub := realtime.NewHub(realtime.Config{
		SendBuffer:   cfg.Realtime.SendBuffer,
		WriteTimeout: cfg.Realtime.WriteTimeout,
	}, m)

	// Initialize Telegram bot
	var telegramBot queue.TelegramBot
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		telegramBot = telegram.NewBot(cfg.Telegram.BotToken)
		logrus.Info("Telegram bot initialized")
	} else {
		logrus.Warn("Telegram bot token not provided, external delivery disabled")
	}

	// Initialize external delivery queue
	deliveryQueue := newDeliveryQueue(cfg)
	var external service.ExternalNotifier
	if deliveryQueue != nil {
		defer deliveryQueue.Close()
		external = service.NewQueueAdapter(deliveryQueue, cfg.Queue.MaxRetries)

		taskHandler := queue.NewTaskHandler(service.NewUserRecipients(userRepo), telegramBot)
		if err := deliveryQueue.Subscribe(ctx, taskHandler.HandleTask); err != nil {
			logrus.Errorf("Queue subscriber error: %v", err)
		} else {
			logrus.WithField("driver", cfg.Queue.Driver).Info("Queue subscriber started")
		}
	}

	// Initialize activity stream
	var activity service.ActivityPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		activity = service.NewKafkaActivityPublisher(producer)
	}

	// Initialize services
	formatter := service.NewTimeFormatter(cfg.Lineup.TimeFormat, cfg.Lineup.DefaultTimezone)
	notificationService := service.NewNotificationService(notificationRepo, preferenceRepo, eventRepo, hub, external, m, clk)
	lineupService := service.NewLineupService(tx, slotRepo, eventRepo, venueRepo, userRepo, notificationService, hub, activity, m,
		service.LineupServiceConfig{
			MaxSlotNumber: cfg.Lineup.MaxSlotNumber,
			Formatter:     formatter,
		})
	eventService := service.NewEventService(tx, eventRepo, venueRepo, slotRepo, notificationService, hub, activity, formatter, clk)

	// Initialize cleanup worker
	cleanupWorker := worker.NewNotificationCleanupWorker(notificationService,
		cfg.Notifications.CleanupInterval, cfg.Notifications.Retention)
	go cleanupWorker.Start(ctx)

	tokens := auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer)
	resolver := service.NewIdentityResolver(tokens)

	if err := transport.RegisterValidators(cfg.Lineup.MaxSlotNumber); err != nil {
		logrus.Fatalf("Failed to register validators: %v", err)
	}

	// Initialize handlers
	handlers := transport.Handlers{
		Lineup:       transport.NewLineupHandler(lineupService),
		Event:        transport.NewEventHandler(eventService),
		Notification: transport.NewNotificationHandler(notificationService),
		WS: transport.NewWSHandler(ctx, hub, resolver, tokens, transport.WSConfig{
			ReadLimit:      cfg.Realtime.ReadLimit,
			TokenTTL:       cfg.JWT.WSTokenTTL,
			AllowedOrigins: cfg.Realtime.AllowedOrigins,
		}),
	}

	if cfg.Server.Mode == "release" || cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := transport.InitRoutes(transport.RouterConfig{
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
		WSPath:         cfg.Realtime.Path,
		SecureCookie:   cfg.IsProduction(),
	}, handlers, resolver, m)

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, router); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer shutdownCancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	cancel()
	hub.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}

// newDeliveryQueue builds the configured queue, or nil when delivery is
// disabled or the backend is unreachable.
func newDeliveryQueue(cfg *config.Config) queue.Queue {
	retryManager := queue.NewRetryManager(cfg.Queue.BaseDelay)

	switch cfg.Queue.Driver {
	case "redis":
		client, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			logrus.Errorf("Failed to initialize Redis queue: %v. Continuing without queue...", err)
			return nil
		}
		logrus.Info("Redis queue initialized")
		return queue.NewRedisQueue(client, cfg.Queue.Name, retryManager)

	case "rabbitmq":
		q, err := queue.NewRabbitQueue(queue.RabbitQueueConfig{
			URL:       cfg.RabbitMQ.URL,
			QueueName: cfg.RabbitMQ.QueueName,
		}, retryManager)
		if err != nil {
			logrus.Errorf("Failed to initialize RabbitMQ queue: %v. Continuing without queue...", err)
			return nil
		}
		logrus.Info("RabbitMQ queue initialized")
		return q

	case "":
		logrus.Info("Queue driver not configured, external delivery disabled")
		return nil

	default:
		logrus.Warnf("Unknown queue driver %q, external delivery disabled", cfg.Queue.Driver)
		return nil
	}
}
