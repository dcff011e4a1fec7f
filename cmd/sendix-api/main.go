package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rajivgeraev/sendix-api/internal/brokerage"
	"github.com/rajivgeraev/sendix-api/internal/config"
	"github.com/rajivgeraev/sendix-api/internal/db"
	"github.com/rajivgeraev/sendix-api/internal/server"
	"github.com/rajivgeraev/sendix-api/internal/services/cloudinary"
	"github.com/rajivgeraev/sendix-api/internal/utils"
	"github.com/rajivgeraev/sendix-api/internal/websocket"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()

	// Инициализируем базу данных
	if err := db.InitDB(cfg); err != nil {
		log.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
	}
	defer db.CloseDB()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err := db.Migrate(migrateCtx, db.Pool)
	cancelMigrate()
	if err != nil {
		log.Fatalf("❌ Ошибка при миграции базы данных: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uploads, err := cloudinary.NewCloudinaryService(cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	// Менеджер комнат проверяет доступ через движок, движок публикует события в менеджер
	var engine *brokerage.Engine
	manager := websocket.NewManager(websocket.AuthorizerFunc(func(ctx context.Context, userID, proposalID string) (bool, error) {
		return engine.UserCanAccessProposal(ctx, userID, proposalID)
	}))

	opts := brokerage.Options{
		CommissionRate: cfg.CommissionRate,
		Broadcaster:    manager,
	}
	if uploads.Enabled() {
		opts.Attachments = uploads
	}
	engine = brokerage.NewEngine(db.NewStore(db.Pool), opts)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.RedisAddr != "" {
		rdb := websocket.NewRedisClient(cfg.RedisAddr)
		defer rdb.Close()
		relay := websocket.NewRedisRelay(rdb, manager, websocket.DefaultRelayChannel)
		g.Go(func() error { return relay.Run(gctx) })
	}

	app := server.New(server.Deps{
		Config:  cfg,
		Engine:  engine,
		Uploads: uploads,
		Health:  db.Ping,
		Logging: true,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.Handler(manager, utils.NewJWTService(cfg.JWTSecret), websocket.NewUpgrader(cfg.CORSOrigins)))
	wsServer := &http.Server{Addr: cfg.WSAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g.Go(func() error {
		// Запускаем сервер
		log.Printf("✅ Sendix API запущен на порту %s", cfg.Port)
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		log.Printf("✅ WebSocket доступен на %s/ws", cfg.WSAddr)
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Остановка сервера...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		manager.Shutdown()
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Ошибка остановки WebSocket: %v", err)
		}
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("❌ Сервер остановлен с ошибкой: %v", err)
	}
}
