package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATSSink 通过 NATS 投递事件
type NATSSink struct {
	conn *nats.Conn
}

// NewNATSSink 连接 NATS
func NewNATSSink(url string) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.Name("budget-gin"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSSink{conn: conn}, nil
}

// Publish 发布消息
// NATS Publish 不接受 context,发布前先检查是否已取消
func (s *NATSSink) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	return s.conn.Publish(subject, data)
}

// Close 排空并关闭连接
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}

// LogSink 未配置 NATS 时仅记录日志
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink 创建日志投递目标
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Publish 以 debug 级别记录事件
func (s *LogSink) Publish(_ context.Context, subject string, data []byte) error {
	s.logger.WithFields(logrus.Fields{
		"subject": subject,
		"size":    len(data),
	}).Debug("event published")
	return nil
}

// Ping 检查 NATS 连接状态
func (s *NATSSink) Ping(_ context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("nats connection not initialized")
	}
	if !s.conn.IsConnected() {
		return fmt.Errorf("nats connection is %v", s.conn.Status())
	}
	return nil
}
