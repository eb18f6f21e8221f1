// 文件: pkg/kafka/producer.go
// Kafka 异步生产者
//
// - 异步发送，发送失败只记日志和计数
// - 按 key 分区，同一本订单簿的快照有序
// - Close 等待错误通道排空

package kafka

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

var ErrProducerClosed = errors.New("kafka: producer is closed")

// Message 待发送的消息
type Message interface {
	Topic() string
	Key() string            // 分区 key，相同 key 保证顺序
	Value() ([]byte, error) // 序列化后的消息体
}

// =============================================================================
// 配置
// =============================================================================

// ProducerConfig 生产者配置
type ProducerConfig struct {
	Brokers        []string
	RequiredAcks   int    // 0=不等待, 1=leader确认, -1=全部确认
	Compression    string // none, gzip, snappy, lz4, zstd
	FlushFrequency time.Duration
	FlushMessages  int
	MaxRetries     int
}

// DefaultProducerConfig 默认配置
func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:        brokers,
		RequiredAcks:   1,
		Compression:    "snappy",
		FlushFrequency: 100 * time.Millisecond,
		FlushMessages:  100,
		MaxRetries:     3,
	}
}

// saramaConfig 转换为 sarama 配置
func (c ProducerConfig) saramaConfig() *sarama.Config {
	sc := sarama.NewConfig()

	switch c.RequiredAcks {
	case 0:
		sc.Producer.RequiredAcks = sarama.NoResponse
	case -1:
		sc.Producer.RequiredAcks = sarama.WaitForAll
	default:
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	}

	switch c.Compression {
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		sc.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		sc.Producer.Compression = sarama.CompressionZSTD
	default:
		sc.Producer.Compression = sarama.CompressionNone
	}

	sc.Producer.Flush.Frequency = c.FlushFrequency
	sc.Producer.Flush.Messages = c.FlushMessages
	sc.Producer.Retry.Max = c.MaxRetries
	sc.Producer.Return.Successes = false
	sc.Producer.Return.Errors = true
	return sc
}

// =============================================================================
// Producer
// =============================================================================

// Producer Kafka 异步生产者
type Producer struct {
	producer sarama.AsyncProducer
	logger   *zap.Logger

	sentCount  atomic.Int64
	errorCount atomic.Int64

	mu     sync.RWMutex // 保护 closed 与 Input() 之间的竞争
	closed bool
	wg     sync.WaitGroup
}

// NewProducer 连接 broker 并创建生产者
func NewProducer(cfg ProducerConfig, logger *zap.Logger) (*Producer, error) {
	producer, err := sarama.NewAsyncProducer(cfg.Brokers, cfg.saramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return WrapProducer(producer, logger), nil
}

// WrapProducer 包装已有的 sarama.AsyncProducer
func WrapProducer(producer sarama.AsyncProducer, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Producer{
		producer: producer,
		logger:   logger.Named("kafka.producer"),
	}

	p.wg.Add(1)
	go p.handleErrors()

	return p
}

// Send 发送消息 (异步)
func (p *Producer) Send(msg Message) error {
	data, err := msg.Value()
	if err != nil {
		return fmt.Errorf("serialize message: %w", err)
	}
	return p.SendRaw(msg.Topic(), msg.Key(), data)
}

// SendRaw 发送原始消息
func (p *Producer) SendRaw(topic, key string, value []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}

	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	p.sentCount.Add(1)
	return nil
}

func (p *Producer) handleErrors() {
	defer p.wg.Done()

	for err := range p.producer.Errors() {
		p.errorCount.Add(1)
		p.logger.Error("send failed",
			zap.String("topic", err.Msg.Topic),
			zap.Error(err.Err))
	}
}

// ProducerStats 统计
type ProducerStats struct {
	SentCount  int64
	ErrorCount int64
}

// Stats 获取统计
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		SentCount:  p.sentCount.Load(),
		ErrorCount: p.errorCount.Load(),
	}
}

// Close 关闭生产者，可重复调用
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.producer.Close()
	p.wg.Wait()
	return err
}
