// 文件: cmd/depthwriter/main.go
// 深度历史落库：Kafka book.depth -> MySQL depth_levels

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"laminar.com/pkg/config"
	"laminar.com/pkg/history"
	"laminar.com/pkg/kafka"
	"laminar.com/pkg/logger"
)

func main() {
	envFile := flag.String("env", "", "env file (default .env)")
	retention := flag.Duration("retention", 7*24*time.Hour, "prune history older than this (0 = keep)")
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "depthwriter:", err)
		os.Exit(1)
	}

	log := logger.Must(logger.Options{Level: cfg.LogLevel})
	defer log.Sync()

	if err := run(cfg, *retention, log); err != nil {
		log.Fatal("depthwriter exited", zap.Error(err))
	}
}

func run(cfg *config.Config, retention time.Duration, log *zap.Logger) error {
	if cfg.MySQL.DSN == "" || len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("MYSQL_DSN and KAFKA_BROKERS are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := history.OpenMySQL(cfg.MySQL.DSN)
	if err != nil {
		return err
	}
	repo := history.NewMySQLRepository(db)

	writer := history.NewWriter(repo, history.DefaultWriterConfig(), log)

	consumerCfg := kafka.DefaultConsumerConfig(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{cfg.Kafka.Topic})
	consumerCfg.ManualAck = true // 落库后才提交 offset
	consumer, err := kafka.NewConsumer(consumerCfg, writer.Handle, log)
	if err != nil {
		return err
	}

	writer.Start(consumer)
	log.Info("depthwriter started", zap.String("topic", cfg.Kafka.Topic), zap.String("group", cfg.Kafka.GroupID))

	if retention > 0 {
		go prune(ctx, repo, retention, log)
	}

	<-ctx.Done()
	log.Info("shutting down")

	err = writer.Stop()
	s := writer.Stats()
	log.Info("writer stopped",
		zap.Int64("received", s.Received),
		zap.Int64("written", s.Written),
		zap.Int64("errors", s.Errors),
		zap.Int64("blocked", s.Blocked),
		zap.Int("pending", writer.Pending()))
	return err
}

// prune 每小时清理一次过期数据
func prune(ctx context.Context, repo history.Repository, retention time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				log.Warn("prune failed", zap.Error(err))
				continue
			}
			log.Info("pruned depth history", zap.Int64("rows", n))
		}
	}
}
