package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/teamz-workspace/apiserver/config"
	"github.com/teamz-workspace/apiserver/internal/db"
	"github.com/teamz-workspace/apiserver/internal/handlers"
	"github.com/teamz-workspace/apiserver/internal/mq"
	"github.com/teamz-workspace/apiserver/internal/notify"
	"github.com/teamz-workspace/apiserver/internal/services"
	"github.com/teamz-workspace/apiserver/internal/storage"
	"github.com/teamz-workspace/apiserver/internal/store"
)

// subscribeRetryDelay spaces reconnect attempts of the broker consumers.
const subscribeRetryDelay = 5 * time.Second

// Server wraps the HTTP server, its dependencies and the broker consumers.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.Broker
	logger     zerolog.Logger

	cancelConsumers context.CancelFunc
}

// New constructs a fully wired Server.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "teamz-apiserver").Logger()

	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	objectStore, err := newObjectStorage(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	broker, err := newBroker(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init broker: %w", err)
	}

	principalRepo := store.NewPrincipalRepository(dbConn)
	profileRepo := store.NewProfileRepository(dbConn)
	sessionRepo := store.NewSessionRepository(dbConn)
	notificationRepo := store.NewNotificationRepository(dbConn)
	fileRepo := store.NewFileRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)

	profileService := services.NewProfileService(profileRepo, logger)
	sessionService := services.NewSessionService(
		principalRepo,
		sessionRepo,
		profileService,
		broker,
		cfg.JWT,
		cfg.Guard,
		logger,
	)
	oauthService := services.NewOAuthService(cfg.OAuth, logger)
	notificationService := services.NewNotificationService(notificationRepo, broker, logger)
	fileService := services.NewFileService(fileRepo, objectStore, logger)
	postService := services.NewPostService(postRepo)
	chatService := services.NewChatService(cfg.OpenAI)

	hub := notify.NewHub(logger)
	guard := handlers.NewGuard(sessionService, logger)

	authHandler := handlers.NewAuthHandler(sessionService, oauthService, hub, logger)
	profileHandler := handlers.NewProfileHandler(profileService, sessionService, notificationService, logger)
	notificationHandler := handlers.NewNotificationHandler(notificationService, hub, logger)
	fileHandler := handlers.NewFileHandler(fileService, logger)
	postHandler := handlers.NewPostHandler(postService, logger)
	chatHandler := handlers.NewChatHandler(chatService, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, guard)
	})
	router.Route("/profiles", func(r chi.Router) {
		handlers.ProfileRouter(r, profileHandler, guard)
	})
	router.Route("/notifications", func(r chi.Router) {
		handlers.NotificationRouter(r, notificationHandler, guard)
	})
	router.Route("/files", func(r chi.Router) {
		handlers.FileRouter(r, fileHandler, guard)
	})
	router.Route("/posts", func(r chi.Router) {
		handlers.PostRouter(r, postHandler, guard)
	})
	router.Route("/chat", func(r chi.Router) {
		handlers.ChatRouter(r, chatHandler, guard)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srv := &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
		logger:     logger,
	}
	srv.startConsumers(hub)

	return srv, nil
}

// startConsumers pipes broker channels into the live-subscriber hub. Each
// consumer reconnects with a fixed delay until shutdown.
func (s *Server) startConsumers(hub *notify.Hub) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelConsumers = cancel

	for _, channel := range []string{mq.NotificationsChannel, mq.AuthEventsChannel} {
		go func(channel string) {
			for {
				err := s.broker.Subscribe(ctx, channel, hub.HandlerFor(channel))
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn().Err(err).Str("channel", channel).Msg("broker consumer stopped, retrying")
				select {
				case <-ctx.Done():
					return
				case <-time.After(subscribeRetryDelay):
				}
			}
		}(channel)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelConsumers != nil {
		s.cancelConsumers()
	}
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

func newObjectStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "minio":
		backend, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(backend), nil
	case "gcs":
		backend, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(backend), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func newBroker(ctx context.Context, cfg config.MQConfig) (*mq.Broker, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "rabbitmq":
		backend, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.NewBroker(backend), nil
	case "pubsub":
		backend, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.NewBroker(backend), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}
