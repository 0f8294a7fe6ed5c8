package integration_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mautops/budget-gin/internal/database"
	"github.com/mautops/budget-gin/internal/integration"
	"github.com/mautops/budget-gin/internal/model"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeSink 记录投递的消息,前 failures 次返回错误
type fakeSink struct {
	mu       sync.Mutex
	failures int
	calls    int
	subjects []string
	payloads [][]byte
}

func (s *fakeSink) Publish(_ context.Context, subject string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("nats unavailable")
	}
	s.subjects = append(s.subjects, subject)
	s.payloads = append(s.payloads, data)
	return nil
}

func (s *fakeSink) delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subjects)
}

// setupTestDBForEventHandler 创建事件处理器测试数据库
func setupTestDBForEventHandler(t *testing.T) *gorm.DB {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// eventStatus 读取事件,查询失败时返回零值
func eventStatus(t *testing.T, db *gorm.DB, resourceID string) model.EventModel {
	t.Helper()
	var evt model.EventModel
	db.Where("resource_id = ?", resourceID).First(&evt)
	return evt
}

// TestEventHandler_Publish 测试事件落库并投递
func TestEventHandler_Publish(t *testing.T) {
	db := setupTestDBForEventHandler(t)
	sink := &fakeSink{}
	handler := integration.NewEventHandler(db, sink, quietLogger(), integration.EventHandlerOptions{Backoff: time.Millisecond})
	handler.Start()
	defer handler.Stop()

	err := handler.Publish(context.Background(), model.ResourceProposal, "12", "proposal.status_changed", map[string]string{"from": "submitted", "to": "approved"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return sink.delivered() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return eventStatus(t, db, "12").Status == model.EventStatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "budget.proposal.status_changed", sink.subjects[0])

	var env integration.Envelope
	require.NoError(t, json.Unmarshal(sink.payloads[0], &env))
	assert.Equal(t, "proposal.status_changed", env.Type)
	assert.Equal(t, "12", env.ResourceID)
	assert.JSONEq(t, `{"from":"submitted","to":"approved"}`, string(env.Data))
}

// TestEventHandler_Retry 测试投递失败后重试
func TestEventHandler_Retry(t *testing.T) {
	db := setupTestDBForEventHandler(t)
	sink := &fakeSink{failures: 2}
	handler := integration.NewEventHandler(db, sink, quietLogger(), integration.EventHandlerOptions{MaxRetries: 3, Backoff: time.Millisecond})
	handler.Start()
	defer handler.Stop()

	require.NoError(t, handler.Publish(context.Background(), model.ResourceProposal, "7", "proposal.created", map[string]int{"id": 7}))

	assert.Eventually(t, func() bool {
		evt := eventStatus(t, db, "7")
		return evt.Status == model.EventStatusSuccess && evt.RetryCount == 2
	}, 2*time.Second, 10*time.Millisecond)
}

// TestEventHandler_Failed 测试重试耗尽后标记失败
func TestEventHandler_Failed(t *testing.T) {
	db := setupTestDBForEventHandler(t)
	sink := &fakeSink{failures: 100}
	handler := integration.NewEventHandler(db, sink, quietLogger(), integration.EventHandlerOptions{MaxRetries: 2, Backoff: time.Millisecond})
	handler.Start()
	defer handler.Stop()

	require.NoError(t, handler.Publish(context.Background(), model.ResourceProposal, "8", "proposal.deleted", nil))

	assert.Eventually(t, func() bool {
		evt := eventStatus(t, db, "8")
		return evt.Status == model.EventStatusFailed && evt.LastError != ""
	}, 2*time.Second, 10*time.Millisecond)
}

// TestEventHandler_RedeliverPending 测试启动时重新投递残留事件
func TestEventHandler_RedeliverPending(t *testing.T) {
	db := setupTestDBForEventHandler(t)
	sink := &fakeSink{}

	// 未启动 worker 时事件保持 pending
	idle := integration.NewEventHandler(db, sink, quietLogger(), integration.EventHandlerOptions{QueueSize: 1})
	require.NoError(t, idle.Publish(context.Background(), model.ResourceProposal, "9", "proposal.created", nil))
	assert.Equal(t, model.EventStatusPending, eventStatus(t, db, "9").Status)

	handler := integration.NewEventHandler(db, sink, quietLogger(), integration.EventHandlerOptions{Backoff: time.Millisecond})
	handler.Start()
	defer handler.Stop()

	assert.Eventually(t, func() bool {
		return eventStatus(t, db, "9").Status == model.EventStatusSuccess
	}, 2*time.Second, 10*time.Millisecond)
}

// TestEventHandler_Subject 测试主题前缀
func TestEventHandler_Subject(t *testing.T) {
	db := setupTestDBForEventHandler(t)
	handler := integration.NewEventHandler(db, nil, quietLogger(), integration.EventHandlerOptions{SubjectPrefix: "erp"})
	assert.Equal(t, "erp.budget.deleted", handler.Subject("budget.deleted"))
}
