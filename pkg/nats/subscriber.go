// 文件: pkg/nats/subscriber.go
// NATS 订阅者

package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// MessageHandler 消息处理函数
type MessageHandler func(subject string, data []byte) error

// Subscriber NATS 订阅者
type Subscriber struct {
	conn    *nats.Conn
	subs    []*nats.Subscription
	handler MessageHandler
	logger  *zap.Logger
}

// NewSubscriber 创建订阅者
func NewSubscriber(url string, handler MessageHandler, logger *zap.Logger) (*Subscriber, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("nats.subscriber")

	conn, err := connect(url, "depth-subscriber", logger)
	if err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn, handler: handler, logger: logger}, nil
}

func (s *Subscriber) dispatch(msg *nats.Msg) {
	if err := s.handler(msg.Subject, msg.Data); err != nil {
		s.logger.Warn("handle message failed", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

// Subscribe 订阅主题
func (s *Subscriber) Subscribe(subjects ...string) error {
	for _, subject := range subjects {
		sub, err := s.conn.Subscribe(subject, s.dispatch)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

// SubscribeQueue 队列订阅，同组内负载均衡
func (s *Subscriber) SubscribeQueue(subject, queue string) error {
	sub, err := s.conn.QueueSubscribe(subject, queue, s.dispatch)
	if err != nil {
		return fmt.Errorf("queue subscribe %s: %w", subject, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close 取消订阅并关闭连接
func (s *Subscriber) Close() error {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("unsubscribe failed", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	s.conn.Close()
	return nil
}

// Decode 反序列化 JSON 消息
func Decode[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
