package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"coinledger/internal/config"
	"coinledger/internal/infrastructure/cache"
	"coinledger/internal/infrastructure/logger"
	"coinledger/internal/notify"
	"coinledger/internal/otp"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New("coinledger-notifier", cfg.Server.Env, cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	reader := notify.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic.WalletEvents)
	defer reader.Close()

	redisClient, err := cache.InitRedis(&cfg.Redis, log)
	if err != nil {
		log.Fatal("init redis failed", zap.Error(err))
	}
	defer redisClient.Close()

	dispatcher := notify.NewDispatcher(log, notify.NewLogSink(log)).
		WithCodes(otp.NewRedisStore(redisClient, "otp:"))
	consumer := notify.NewConsumer(reader, dispatcher, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("notifier started",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic.WalletEvents),
		zap.String("group_id", cfg.Kafka.GroupID),
	)

	if err := consumer.Run(ctx); err != nil {
		log.Error("consumer stopped", zap.Error(err))
	}
	log.Info("notifier exited")
}
