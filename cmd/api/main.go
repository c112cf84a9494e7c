// cmd/api/main.go

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"trendwire/internal/adapter/connector"
	"trendwire/internal/adapter/marketdata"
	"trendwire/internal/adapter/storage"
	"trendwire/internal/config"
	"trendwire/internal/logger"
	"trendwire/internal/server"
	"trendwire/internal/service/frequency"
	"trendwire/internal/service/market"
	"trendwire/internal/service/monitor"
	"trendwire/internal/service/spike"
)

func main() {
	// Load .env if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Initialize dependencies
	db, err := initDatabase(ctx, cfg.Database)
	if err != nil {
		zlog.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	natsConn, err := initNATS(cfg.NATS, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Close()

	// Initialize storage adapter
	stateStore := storage.NewStateStore(db)

	// Initialize the frequency index
	index, err := frequency.New(
		frequency.Policy{
			MinLength: cfg.Index.MinTermLength,
			NGram:     cfg.Index.NGram,
			Stopwords: frequency.DefaultStopwords(),
		},
		frequency.Config{
			BucketWidth: cfg.Index.BucketWidth,
			Retention:   cfg.Index.Retention,
		},
		zlog,
	)
	if err != nil {
		zlog.Fatal("Failed to initialize frequency index", zap.Error(err))
	}

	// Initialize the spike detector
	detector := spike.New(spike.Config{
		BucketWidth: cfg.Index.BucketWidth,
		Window:      cfg.Spike.Window,
		MinHistory:  cfg.Spike.MinHistory,
	})

	// Initialize the market correlator
	marketClient := marketdata.NewClient(marketdata.Config{
		BaseURL:     cfg.Market.BaseURL,
		APIKey:      cfg.Market.APIKey,
		Timeout:     cfg.Market.FetchTimeout,
		MinInterval: cfg.Market.MinInterval,
	})

	correlator := market.New(marketClient, market.Config{
		CandidateLimit: cfg.Market.CandidateLimit,
		MaxConcurrent:  cfg.Market.MaxConcurrent,
		BucketWidth:    cfg.Index.BucketWidth,
		Window:         cfg.Index.Retention,
		LagRange:       cfg.Market.LagRange,
		MinOverlap:     cfg.Market.MinOverlap,
	}, zlog)

	// Register content sources for the default user
	registry := connector.NewRegistry()
	registerSources(registry, cfg.Sources)

	// Initialize the trend monitor
	trendMonitor := monitor.New(
		registry,
		index,
		detector,
		correlator,
		stateStore,
		natsConn,
		monitor.Config{
			DefaultRefreshInterval: cfg.Monitor.DefaultRefreshInterval,
			MinRefreshInterval:     cfg.Monitor.MinRefreshInterval,
			TopTerms:               cfg.Monitor.TopTerms,
			EventsTopic:            cfg.Monitor.EventsTopic,
		},
		zlog,
	)

	if err := trendMonitor.SetUser(monitor.UserConfig{
		UserID:          cfg.Sources.DefaultUserID,
		RefreshInterval: cfg.Monitor.DefaultRefreshInterval,
		Enabled:         true,
	}); err != nil {
		zlog.Fatal("Failed to configure default user", zap.Error(err))
	}

	// Start the trend monitor
	if err := trendMonitor.Start(ctx); err != nil {
		zlog.Fatal("Failed to start trend monitor", zap.Error(err))
	}

	// Initialize HTTP server
	httpServer := server.NewServer(
		cfg.Server,
		natsConn,
		trendMonitor,
		stateStore,
		cfg.Monitor.EventsTopic,
		zlog,
	)

	// Start HTTP server
	go func() {
		zlog.Info("Starting HTTP server",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	zlog.Info("Shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Graceful shutdown
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := trendMonitor.Stop(shutdownCtx); err != nil {
		zlog.Error("Trend monitor shutdown error", zap.Error(err))
	}

	zlog.Info("Shutdown complete")
}

// Initialize database connection
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	// Test connection
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig, zlog *zap.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			zlog.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			zlog.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			zlog.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}

// Register content source connectors
func registerSources(registry *connector.Registry, cfg config.SourcesConfig) {
	for _, feed := range cfg.RSSFeeds {
		registry.Add(cfg.DefaultUserID, connector.NewRSSConnector("rss:"+feed, feed, cfg.FetchLimit))
	}

	for _, sub := range cfg.RedditSubreddits {
		registry.Add(cfg.DefaultUserID, connector.NewRedditConnector(sub, cfg.FetchLimit, cfg.RedditTimeRange))
	}

	if cfg.TwitterBearerToken != "" && cfg.TwitterQuery != "" {
		registry.Add(cfg.DefaultUserID, connector.NewTwitterConnector(cfg.TwitterBearerToken, cfg.TwitterQuery, cfg.FetchLimit))
	}
}
