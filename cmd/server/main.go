package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"tradebot/internal/api"
	"tradebot/internal/config"
	"tradebot/internal/exchange"
	"tradebot/internal/repository"
	"tradebot/internal/service"
	"tradebot/internal/websocket"
	"tradebot/pkg/utils"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := utils.InitGlobalLogger(cfg.Logging.LogConfig())
	defer log.Sync()

	exchange.SetRequestRate(cfg.Trading.ExchangeRPS, cfg.Trading.ExchangeBurst)

	// Профили пользователей
	users, err := config.LoadUserStore(cfg.Users.ConfigPath, cfg.Security.EncryptionKey)
	if err != nil {
		log.Fatal("failed to load users", utils.String("path", cfg.Users.ConfigPath), utils.Err(err))
	}
	log.Info("users loaded", utils.Int("count", users.Len()))

	// WebSocket hub
	hub := websocket.NewHub(cfg.Server.AllowedOrigins...)
	go hub.Run()

	tradeService := service.NewTradeService(users, cfg.Trading)
	tradeService.SetBroadcaster(hub)

	deps := &api.Dependencies{
		TradeService:   tradeService,
		Hub:            hub,
		RateLimitRPS:   cfg.Webhook.RateLimitRPS,
		RateLimitBurst: cfg.Webhook.RateLimitBurst,
		TrustProxy:     cfg.Webhook.TrustProxy,
	}

	// Журнал сделок (необязателен)
	var db *sql.DB
	if cfg.Database.Enabled {
		db, err = initDatabase(cfg)
		if err != nil {
			log.Fatal("failed to connect to database",
				utils.String("dsn", cfg.Database.DSNWithoutPassword()), utils.Err(err))
		}
		defer db.Close()

		journal := repository.NewTradeRepository(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = journal.Migrate(ctx)
		cancel()
		if err != nil {
			log.Fatal("failed to migrate trade journal", utils.Err(err))
		}

		tradeService.SetJournal(journal)
		deps.DB = db
		log.Info("trade journal enabled", utils.String("dsn", cfg.Database.DSNWithoutPassword()))
	}

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.SetupRoutes(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		log.Info("starting server",
			utils.String("addr", server.Addr),
			utils.Bool("https", cfg.Server.UseHTTPS),
			utils.String("default_exchange", cfg.Trading.DefaultExchange),
		)
		var err error
		if cfg.Server.UseHTTPS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", utils.Err(err))
		}
	}()

	// SIGHUP перечитывает профили пользователей, SIGINT/SIGTERM останавливают сервер
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range signals {
		if sig != syscall.SIGHUP {
			break
		}
		if err := users.Reload(); err != nil {
			log.Error("reload users failed", utils.Err(err))
			continue
		}
		log.Info("users reloaded", utils.Int("count", users.Len()))
	}

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", utils.Err(err))
	}

	hub.Stop()
	exchange.CloseGlobalClient()

	log.Info("server exited")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
