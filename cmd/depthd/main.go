// 文件: cmd/depthd/main.go
// 深度轮询服务
//
// 节点 --(REST)--> [Redis 缓存] --> Reader --> Poller --+--> Kafka (depthwriter 落库)
//                                                       +--> NATS  (booktop -watch)

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

	"laminar.com/pkg/book"
	"laminar.com/pkg/cache"
	"laminar.com/pkg/config"
	"laminar.com/pkg/depth"
	"laminar.com/pkg/kafka"
	"laminar.com/pkg/ledger"
	"laminar.com/pkg/logger"
	"laminar.com/pkg/nats"
)

func main() {
	envFile := flag.String("env", "", "env file (default .env)")
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "depthd:", err)
		os.Exit(1)
	}

	log := logger.Must(logger.Options{Level: cfg.LogLevel})
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("depthd exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ========== 读取链路 ==========
	ledgerCfg := ledger.DefaultConfig(cfg.Node.URL)
	ledgerCfg.Timeout = cfg.Node.Timeout
	ledgerCfg.MaxRetries = cfg.Node.MaxRetries
	var fetcher book.Fetcher = ledger.NewClient(ledgerCfg, log)

	if cfg.Redis.Addr != "" {
		rdb := cache.NewRedisClient(cfg.Redis.Addr)
		defer rdb.Close()
		cached := cache.NewRedisFetcher(rdb, fetcher, cfg.Redis.TTL, log)
		if err := cached.Ping(ctx); err != nil {
			log.Warn("redis unreachable, cache will fall back to node", zap.Error(err))
		}
		fetcher = cached
	}

	market := cfg.Market()
	reader := book.NewReader(fetcher, market, log)

	// ========== 下游 ==========
	var sinks []depth.Sink

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(kafka.DefaultProducerConfig(cfg.Kafka.Brokers), log)
		if err != nil {
			return err
		}
		defer func() {
			if err := producer.Close(); err != nil {
				log.Warn("close kafka producer", zap.Error(err))
			}
			s := producer.Stats()
			log.Info("kafka producer closed", zap.Int64("sent", s.SentCount), zap.Int64("errors", s.ErrorCount))
		}()
		sinks = append(sinks, depth.NewKafkaSink(producer, cfg.Kafka.Topic))
	}

	if cfg.NATS.URL != "" {
		publisher, err := nats.NewPublisher(cfg.NATS.URL, log)
		if err != nil {
			return err
		}
		defer publisher.Close()
		sinks = append(sinks, depth.NewNatsSink(publisher, cfg.NATS.Subject))
	}

	if len(sinks) == 0 {
		log.Warn("no sink configured (KAFKA_BROKERS / NATS_URL), snapshots are only logged")
	}

	// ========== 轮询 ==========
	ids, err := depth.NewIDGenerator(cfg.NodeID)
	if err != nil {
		return err
	}

	pollCfg := depth.DefaultPollerConfig()
	pollCfg.Levels = cfg.Book.Levels
	pollCfg.Interval = cfg.PollInterval
	poller := depth.NewPoller(reader, ids, pollCfg, log, sinks...)

	log.Info("depthd started",
		zap.String("market", market.Key()),
		zap.Int("levels", pollCfg.Levels),
		zap.Duration("interval", pollCfg.Interval),
		zap.Int("sinks", len(sinks)))

	poller.Start(ctx)
	go logStats(ctx, poller, log)

	<-ctx.Done()
	log.Info("shutting down")
	poller.Stop()

	s := poller.Stats()
	log.Info("poller stopped",
		zap.Int64("polls", s.Polls),
		zap.Int64("published", s.Published),
		zap.Int64("skipped", s.Skipped),
		zap.Int64("errors", s.Errors))
	return nil
}

func logStats(ctx context.Context, poller *depth.Poller, log *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := poller.Stats()
			fields := []zap.Field{
				zap.Int64("polls", s.Polls),
				zap.Int64("published", s.Published),
				zap.Int64("errors", s.Errors),
				zap.Int64("sink_fails", s.SinkFails),
			}
			if snap := poller.Latest(); snap != nil {
				fields = append(fields, zap.Uint64("best_bid", snap.BestBid), zap.Uint64("best_ask", snap.BestAsk))
			}
			log.Info("depth stats", fields...)
		}
	}
}
