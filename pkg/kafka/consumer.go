// 文件: pkg/kafka/consumer.go
// Kafka 消费者组
//
// 处理器返回错误时记日志并继续。
// 默认处理完立即标记 offset；ManualAck 模式下由处理方持久化之后调用 Record.Ack，
// 未确认的消息在重启或 rebalance 后重新投递（至少一次，下游按唯一键去重）

package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topics        []string
	OffsetInitial int64 // sarama.OffsetNewest / sarama.OffsetOldest
	AutoCommit    bool
	ManualAck     bool // 只有 Record.Ack 之后才标记 offset
}

// DefaultConsumerConfig 默认配置
func DefaultConsumerConfig(brokers []string, groupID string, topics []string) ConsumerConfig {
	return ConsumerConfig{
		Brokers:       brokers,
		GroupID:       groupID,
		Topics:        topics,
		OffsetInitial: sarama.OffsetOldest,
		AutoCommit:    true,
	}
}

// Record 一条消费到的消息
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte

	ack func()
}

// WithAck 返回绑定了确认回调的副本，非消费者组来源的消息可以用它接入
func (r Record) WithAck(fn func()) Record {
	r.ack = fn
	return r
}

// Ack 确认消息已处理，ManualAck 模式下标记 offset；未绑定回调时为空操作。
// 同一分区内必须按消费顺序确认，标记较大的 offset 会连带提交之前的消息
func (r Record) Ack() {
	if r.ack != nil {
		r.ack()
	}
}

// MessageHandler 消息处理函数
type MessageHandler func(rec Record) error

// Consumer 消费者组封装
type Consumer struct {
	client  sarama.ConsumerGroup
	config  ConsumerConfig
	handler MessageHandler
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer 创建消费者
func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = cfg.OffsetInitial
	sc.Consumer.Offsets.AutoCommit.Enable = cfg.AutoCommit

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		client:  client,
		config:  cfg,
		handler: handler,
		logger:  logger.Named("kafka.consumer").With(zap.String("group", cfg.GroupID)),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start 后台消费，rebalance 后自动重新加入
func (c *Consumer) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		h := &groupHandler{handler: c.handler, manualAck: c.config.ManualAck, logger: c.logger}
		for {
			if err := c.client.Consume(c.ctx, c.config.Topics, h); err != nil {
				c.logger.Error("consume failed", zap.Error(err))
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()
}

// Stop 停止消费
func (c *Consumer) Stop() error {
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

// =============================================================================
// sarama.ConsumerGroupHandler
// =============================================================================

type groupHandler struct {
	handler   MessageHandler
	manualAck bool
	logger    *zap.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		rec := Record{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       msg.Key,
			Value:     msg.Value,
		}
		if h.manualAck {
			rec.ack = func() { session.MarkMessage(msg, "") }
		}
		if err := h.handler(rec); err != nil {
			h.logger.Warn("handle message failed",
				zap.String("topic", msg.Topic),
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
		if !h.manualAck {
			session.MarkMessage(msg, "")
		}
	}
	return nil
}
