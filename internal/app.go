package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/oz-collabo-04/Back/auth"
	"github.com/oz-collabo-04/Back/gateway"
	"github.com/oz-collabo-04/Back/infrastructure/broker"
	"github.com/oz-collabo-04/Back/infrastructure/storage"
	"github.com/oz-collabo-04/Back/observability"
	"github.com/oz-collabo-04/Back/router"
	"github.com/oz-collabo-04/Back/runtime"
	"github.com/oz-collabo-04/Back/signals"
	"github.com/redis/go-redis/v9"
)

// App is the assembled relay: storage, fanout runtime and HTTP surface.
type App struct {
	log           *slog.Logger
	cfg           Config
	db            *badger.DB
	orchestrator  *runtime.Orchestrator
	gateway       *gateway.Gateway
	handler       http.Handler
	redis         *redis.Client
	done          chan struct{}
	Signer        *auth.Signer
	Rooms         *storage.RoomRepository
	Messages      *storage.MessageRepository
	Notifications *storage.NotificationRepository
}

func NewApp(log *slog.Logger, cfg Config, db *badger.DB) *App {
	monitor := observability.NewMonitor(log)
	orchestrator := runtime.NewOrchestrator(log, monitor, runtime.Config{
		BridgeBufferSize: cfg.BridgeBufferSize,
		StoreWorkers:     cfg.StoreWorkers,
		StoreBufferSize:  cfg.StoreBufferSize,
		StoreTimeout:     cfg.StoreTimeout,
		RestartInterval:  cfg.RestartInterval,
		MetricInterval:   cfg.MetricInterval,
	})

	app := &App{log: log, cfg: cfg, db: db, orchestrator: orchestrator, done: make(chan struct{})}
	if cfg.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		shared := broker.NewRedisRegistry(log, app.redis, orchestrator.LocalRegistry(), cfg.RedisChannelPrefix)
		orchestrator.UseRegistry(shared, shared.Subscriber())
	}

	app.Signer = auth.NewSigner(cfg.JWTSecret)
	app.Rooms = storage.NewRoomRepository(db, log)
	app.Messages = storage.NewMessageRepository(db, log, cfg.LimitMessages)
	app.Notifications = storage.NewNotificationRepository(db, log)

	hooks := signals.NewHooks(log, orchestrator.Bridge(), app.Notifications, app.Rooms)
	app.Messages.OnCreated(hooks.MessageCreated)
	app.Notifications.OnCreated(hooks.NotificationCreated)

	chat := router.NewChatRouter(log, router.ChatDeps{
		Registry:         orchestrator.Registry(),
		Messages:         app.Messages,
		Executor:         orchestrator.Executor(),
		MaxContentLength: cfg.MaxContentLength,
	})
	admitter := gateway.NewAdmitter(log, auth.NewResolver(log, app.Signer), app.Rooms, cfg.RequireAuthNotifications)
	app.gateway = gateway.NewGateway(log, gateway.Config{
		SessionBufferSize: cfg.SessionBufferSize,
		WriteTimeout:      cfg.WriteTimeout,
		PongTimeout:       cfg.PongTimeout,
		PingInterval:      cfg.PingInterval,
		MaxFrameBytes:     cfg.MaxFrameBytes,
	}, admitter, orchestrator.Registry(), monitor, chat, router.NewNotificationRouter(log))

	var ingress *gateway.Ingress
	if cfg.InternalToken != "" {
		ingress = gateway.NewIngress(log, cfg.InternalToken, orchestrator.Bridge(),
			app.Notifications, app.Notifications, app.Rooms, app.Messages)
	}
	r := gateway.NewRouter(app.gateway, ingress, monitor)
	if ingress != nil {
		r.With(ingress.Guard).Get("/debug/inspect", app.inspect)
	}
	app.handler = r
	return app
}

func (a *App) Handler() http.Handler { return a.handler }

func (a *App) Monitor() *observability.Monitor { return a.orchestrator.Monitor() }

// Start runs the workers in the background; sessions opened afterwards are
// bound to ctx.
func (a *App) Start(ctx context.Context) {
	a.gateway.WithContext(ctx)
	go func() {
		defer close(a.done)
		a.orchestrator.Start(ctx)
	}()
}

// Done is closed once every worker started by Start has returned.
func (a *App) Done() <-chan struct{} { return a.done }

// Serve runs the HTTP server until ctx is canceled, then shuts it down.
func (a *App) Serve(ctx context.Context) error {
	a.Start(ctx)

	server := &http.Server{
		Addr:              a.cfg.Address(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		a.log.Info("Starting relay", "address", server.Addr, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("Shutting down gracefully...")
	case err := <-errChan:
		a.Stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("HTTP shutdown incomplete", "error", err)
	}
	a.Stop()
	return nil
}

func (a *App) Stop() {
	a.orchestrator.Stop()
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func (a *App) inspect(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	rows, err := storage.Inspect(a.db, r.URL.Query().Get("prefix"), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}
