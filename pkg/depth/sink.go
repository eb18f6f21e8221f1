// 文件: pkg/depth/sink.go
// 快照下游：Kafka（持久化、回放）和 NATS（实时看盘）

package depth

import (
	"context"
	"encoding/json"
	"fmt"

	"laminar.com/pkg/kafka"
)

// Sink 快照下游
type Sink interface {
	Name() string
	Publish(ctx context.Context, s *Snapshot) error
}

// =============================================================================
// Kafka
// =============================================================================

// MessageSender kafka.Producer 的发送能力
type MessageSender interface {
	Send(msg kafka.Message) error
}

// snapshotMessage 实现 kafka.Message，key 为订单簿，同一本簿分区内有序
type snapshotMessage struct {
	topic string
	snap  *Snapshot
}

func (m snapshotMessage) Topic() string          { return m.topic }
func (m snapshotMessage) Key() string            { return m.snap.Book }
func (m snapshotMessage) Value() ([]byte, error) { return json.Marshal(m.snap) }

// KafkaSink 写入 Kafka topic
type KafkaSink struct {
	sender MessageSender
	topic  string
}

// NewKafkaSink 创建 Kafka 下游
func NewKafkaSink(sender MessageSender, topic string) *KafkaSink {
	return &KafkaSink{sender: sender, topic: topic}
}

func (k *KafkaSink) Name() string { return "kafka:" + k.topic }

// Publish 异步发送，投递失败由生产者记录
func (k *KafkaSink) Publish(_ context.Context, s *Snapshot) error {
	if err := k.sender.Send(snapshotMessage{topic: k.topic, snap: s}); err != nil {
		return fmt.Errorf("kafka sink: %w", err)
	}
	return nil
}

// =============================================================================
// NATS
// =============================================================================

// SubjectPublisher nats.Publisher 的发布能力
type SubjectPublisher interface {
	Publish(subject string, v any) error
}

// NatsSink 发布到 NATS subject
type NatsSink struct {
	publisher SubjectPublisher
	subject   string
}

// NewNatsSink 创建 NATS 下游
func NewNatsSink(publisher SubjectPublisher, subject string) *NatsSink {
	return &NatsSink{publisher: publisher, subject: subject}
}

func (n *NatsSink) Name() string { return "nats:" + n.subject }

func (n *NatsSink) Publish(_ context.Context, s *Snapshot) error {
	if err := n.publisher.Publish(n.subject, s); err != nil {
		return fmt.Errorf("nats sink: %w", err)
	}
	return nil
}
