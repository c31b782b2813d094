package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomrelay/internal/auth"
	"roomrelay/internal/config"
	"roomrelay/internal/database/db_client"
	"roomrelay/internal/http/http_server"
	"roomrelay/internal/presence"
	"roomrelay/internal/redis/redis_client"
	"roomrelay/internal/relay"
	"roomrelay/internal/services/rooms"
	"roomrelay/internal/services/users"
	"roomrelay/internal/ws"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

// @title						roomrelay
// @version					1.0
// @description				Presence and signaling relay for video rooms.
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	Log.Debug("Configuration loaded successfully", zap.String("instance_id", cfg.InstanceID))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Postgres db client + schema
	pgDb, err := db_client.Open(ctx, db_client.Options{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		Database: cfg.PostgresDb,
		SSLMode:  cfg.PostgresSSLMode,
	})
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	if err := db_client.Migrate(ctx, pgDb); err != nil {
		Log.Fatal("pg-migrate", zap.Error(err))
	}

	// 4. Services
	jwtAuth := auth.New(cfg.JWTSecret, cfg.JWTTokenTTL)
	roomService := rooms.NewRoomService(pgDb)
	userService := users.NewUserService(pgDb, jwtAuth, 0)

	// 5. Optional Redis room bus for multi-instance deployments
	opts := relay.Options{
		Recorder:      roomService,
		RecordTimeout: cfg.DurableWriteTimeout,
	}
	var bus *ws.RoomBus
	if cfg.RedisFanoutEnabled {
		redisClient, err := redis_client.NewRedisClient(ctx, cfg.RedisHost, int(cfg.RedisPort), cfg.RedisDB)
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		bus = ws.NewRoomBus(redisClient, cfg.InstanceID)
		opts.Fanout = bus
		Log.Debug("Redis room bus enabled")
	}

	// 6. Relay core
	index := presence.NewIndex()
	ctrl := relay.NewController(index, jwtAuth, opts)
	if bus != nil {
		bus.Attach(ctrl.Broadcaster())
	}

	// 7. Initialize the WS server
	wsSrv := ws.NewWsServer(ctrl, cfg.ClientURL, cfg.SendQueueSize)

	// 8. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, cfg.ClientURL, http_server.Deps{
		WsServer:    wsSrv,
		RoomService: roomService,
		UserService: userService,
		Presence:    index,
		Auth:        jwtAuth,
		Ready:       pgDb.PingContext,
		Sessions:    ctrl.Sessions,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start() }()
	Log.Info("relay listening", zap.Uint16("port", cfg.HttpServerPort))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			Log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}

	// 9. Graceful shutdown: stop accepting, close sessions, drain durable writes.
	_ = httpServer.Dispose()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ctrl.Shutdown(shutdownCtx); err != nil {
		Log.Warn("relay_shutdown", zap.Error(err))
	}
	if bus != nil {
		bus.Close()
	}
}
