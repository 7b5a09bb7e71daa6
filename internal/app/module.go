package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"pasarlive/internal/adapter/api"
	"pasarlive/internal/adapter/api/handler"
	"pasarlive/internal/adapter/api/middleware"
	"pasarlive/internal/adapter/api/router"
	"pasarlive/internal/adapter/repository"
	domainrepo "pasarlive/internal/domain/repository"
	"pasarlive/internal/domain/service"
	"pasarlive/internal/infrastructure/firebase"
	"pasarlive/internal/infrastructure/ratelimit"
	"pasarlive/internal/infrastructure/realtime"
	ws "pasarlive/internal/infrastructure/websocket"
	"pasarlive/internal/usecase"
	"pasarlive/pkg/config"
	"pasarlive/pkg/logger"
	"pasarlive/pkg/response"
)

const limiterCleanupInterval = 30 * time.Minute

// Module composes the API server: config, stores, realtime core, use cases
// and the HTTP/WebSocket surface.
func Module() fx.Option {
	return fx.Module("api",
		fx.Provide(
			config.Load,
			provideLogger,
			provideFirebaseApp,
			provideFirestore,
			provideAuthClient,
			provideTokenVerifier,
			provideStores,
			repository.NewFirestoreUserRepository,
			repository.NewFirestoreProductRepository,
			realtime.NewPresenceRegistry,
			realtime.NewNotificationBuffer,
			provideDeliveryRouter,
			provideRateLimiter,
			usecase.NewMessageUseCase,
			usecase.NewNotificationUseCase,
			provideSyncUseCase,
			provideManager,
			middleware.NewAuthMiddleware,
			handler.NewSyncHandler,
			handler.NewMessageHandler,
			handler.NewNotificationHandler,
			handler.NewWebSocketHandler,
			handler.NewHealthHandler,
			provideEcho,
		),
		fx.Invoke(registerLifecycle),
	)
}

// Logger routes fx's own events through zap.
func Logger() fx.Option {
	return fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log.Named("fx")}
	})
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Environment, cfg.LogLevel)
}

func provideFirebaseApp(cfg *config.Config, log *zap.Logger) (*fbapp.App, error) {
	var opts []option.ClientOption
	switch {
	case cfg.FirebaseServiceAccountJSON != "":
		log.Info("using firebase service account from environment")
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON)))
	case cfg.FirebaseServiceAccountPath != "":
		log.Info("using firebase service account file", zap.String("path", cfg.FirebaseServiceAccountPath))
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseServiceAccountPath))
	default:
		log.Info("using application default credentials")
	}

	return fbapp.NewApp(context.Background(), &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
}

func provideFirestore(lc fx.Lifecycle, app *fbapp.App) (*firestore.Client, error) {
	client, err := app.Firestore(context.Background())
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(client.Close))
	return client, nil
}

func provideAuthClient(app *fbapp.App) (*auth.Client, error) {
	return app.Auth(context.Background())
}

func provideTokenVerifier(client *auth.Client) service.TokenVerifier {
	return firebase.NewFirebaseAuthClient(client)
}

type stores struct {
	fx.Out

	Messages      domainrepo.MessageRepository
	Notifications domainrepo.NotificationRepository
	Queue         domainrepo.SyncQueueRepository
}

// provideStores picks the backend for messages, notifications and the sync
// queue. Users and products always come from Firestore.
func provideStores(lc fx.Lifecycle, cfg *config.Config, fs *firestore.Client, log *zap.Logger) (stores, error) {
	if cfg.StoreDriver == config.StoreDriverFirestore {
		log.Info("store initialized", zap.String("driver", cfg.StoreDriver))
		return stores{
			Messages:      repository.NewFirestoreMessageRepository(fs),
			Notifications: repository.NewFirestoreNotificationRepository(fs),
			Queue:         repository.NewFirestoreSyncQueueRepository(fs),
		}, nil
	}

	db, err := repository.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return stores{}, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return stores{}, err
	}
	if result.Changed {
		log.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		log.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	log.Info("store initialized", zap.String("driver", cfg.StoreDriver), zap.String("path", cfg.SQLitePath))
	lc.Append(fx.StopHook(db.Close))

	return stores{
		Messages:      repository.NewSQLiteMessageRepository(db),
		Notifications: repository.NewSQLiteNotificationRepository(db),
		Queue:         repository.NewSQLiteSyncQueueRepository(db),
	}, nil
}

func provideDeliveryRouter(
	cfg *config.Config,
	app *fbapp.App,
	presence *realtime.PresenceRegistry,
	buffer *realtime.NotificationBuffer,
	users domainrepo.UserRepository,
	log *zap.Logger,
) (*realtime.DeliveryRouter, error) {
	deliveryRouter := realtime.NewDeliveryRouter(presence, buffer, log)
	if !cfg.PushEnabled {
		return deliveryRouter, nil
	}

	messagingClient, err := app.Messaging(context.Background())
	if err != nil {
		return nil, err
	}
	deliveryRouter.SetPushSink(firebase.NewMessagingPushSink(messagingClient, users, log))
	log.Info("push notifications enabled")
	return deliveryRouter, nil
}

func provideRateLimiter() *ratelimit.RateLimiter {
	return ratelimit.NewRateLimiter(nil)
}

func provideSyncUseCase(
	cfg *config.Config,
	queue domainrepo.SyncQueueRepository,
	messages *usecase.MessageUseCase,
	notifications *usecase.NotificationUseCase,
	deliveryRouter *realtime.DeliveryRouter,
	log *zap.Logger,
) *usecase.SyncUseCase {
	return usecase.NewSyncUseCase(queue, messages, notifications, deliveryRouter, cfg.SyncMaxAttempts, log)
}

func provideManager(
	cfg *config.Config,
	presence *realtime.PresenceRegistry,
	deliveryRouter *realtime.DeliveryRouter,
	messages *usecase.MessageUseCase,
	limiter *ratelimit.RateLimiter,
	log *zap.Logger,
) *ws.Manager {
	return ws.NewManager(presence, deliveryRouter, messages, limiter, cfg.WSSendBuffer, log)
}

func provideEcho(
	authMiddleware *middleware.AuthMiddleware,
	limiter *ratelimit.RateLimiter,
	syncHandler *handler.SyncHandler,
	messageHandler *handler.MessageHandler,
	notificationHandler *handler.NotificationHandler,
	wsHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
	log *zap.Logger,
) *echo.Echo {
	e := NewEcho(log)

	router.Setup(e, router.Handlers{
		Sync:         syncHandler,
		Message:      messageHandler,
		Notification: notificationHandler,
		WebSocket:    wsHandler,
		Health:       healthHandler,
	}, authMiddleware, limiter)

	return e
}

// NewEcho returns an echo instance with the shared middleware, validator and
// error rendering.
func NewEcho(log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		_ = response.Error(c, err)
	}

	httpLog := log.Named("http")
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				httpLog.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			httpLog.Debug("request", fields...)
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	return e
}

func registerLifecycle(
	lc fx.Lifecycle,
	e *echo.Echo,
	cfg *config.Config,
	syncUseCase *usecase.SyncUseCase,
	limiter *ratelimit.RateLimiter,
	log *zap.Logger,
) {
	background, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			syncUseCase.StartHousekeeping(background, cfg.SyncHousekeepingInterval, cfg.SyncCompletedRetention)
			limiter.StartCleanupRoutine(background, limiterCleanupInterval)

			go func() {
				log.Info("starting server", zap.String("port", cfg.ServerPort), zap.String("store", cfg.StoreDriver))
				if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			err := e.Shutdown(ctx)
			log.Info("server stopped")
			_ = log.Sync()
			return err
		},
	})
}
