package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"coinledger/internal/config"
	"coinledger/internal/handler"
	"coinledger/internal/infrastructure/cache"
	"coinledger/internal/infrastructure/database"
	"coinledger/internal/infrastructure/logger"
	"coinledger/internal/infrastructure/metrics"
	"coinledger/internal/infrastructure/mq"
	"coinledger/internal/job"
	"coinledger/internal/model"
	"coinledger/internal/otp"
	"coinledger/internal/service"
	"coinledger/pkg/idgen"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	workerID := flag.Int64("worker-id", 1, "snowflake worker id")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New("coinledger", cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	idgen.Init(*workerID)

	db, err := database.Open(&cfg.Database, cfg.Log.SQL, log)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}

	redisClient, err := cache.InitRedis(&cfg.Redis, log)
	if err != nil {
		log.Fatal("redis init failed", zap.Error(err))
	}
	defer redisClient.Close()

	publisher, err := mq.NewKafkaPublisher(&cfg.Kafka)
	if err != nil {
		log.Fatal("kafka init failed", zap.Error(err))
	}
	defer publisher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 后台任务
	outboxSender := job.NewOutboxSender(db, publisher, cfg.Business.MaxRetryCount, log)
	go outboxSender.Start(ctx)

	reconcileJob := job.NewReconcileJob(db, cfg.Business.ReconcileInterval(), log)
	go reconcileJob.Start(ctx)

	deps := service.Deps{
		DB:     db,
		Redis:  redisClient,
		Config: cfg,
		Logger: log,
		Waker:  outboxSender,
	}

	if err := bootstrapAdmin(ctx, deps); err != nil {
		log.Fatal("bootstrap admin failed", zap.Error(err))
	}

	router := handler.SetupRouter(deps, otp.NewRedisStore(redisClient, "otp:"))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	metricsServer := metrics.NewServer(cfg.Server.MetricsPort, func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	}, log)
	metricsServer.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	// 先关 HTTP，再停后台任务
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown", zap.Error(err))
	}

	outboxSender.Stop()
	reconcileJob.Stop()
	cancel()

	log.Info("server exited")
}

// bootstrapAdmin 按环境变量创建首个管理员，已存在时跳过
func bootstrapAdmin(ctx context.Context, d service.Deps) error {
	idStr := os.Getenv("COINLEDGER_BOOTSTRAP_ADMIN_ID")
	password := os.Getenv("COINLEDGER_BOOTSTRAP_ADMIN_PASSWORD")
	if idStr == "" || password == "" {
		return nil
	}
	adminID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return fmt.Errorf("parse bootstrap admin id: %w", err)
	}

	_, err = service.NewAccountService(d).Register(ctx, &service.RegisterRequest{
		UserID:   adminID,
		Password: password,
		Role:     model.RoleAdmin,
	})
	if errors.Is(err, service.ErrAccountExists) {
		return nil
	}
	if err == nil {
		d.Logger.Info("bootstrap admin created", zap.Int64("admin_id", adminID))
	}
	return err
}
