package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/budget-gin/internal/metrics"
	"github.com/mautops/budget-gin/internal/model"
	"github.com/mautops/budget-gin/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Sink 事件投递目标
type Sink interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Envelope 投递出去的事件内容
type Envelope struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId"`
	OccurredAt   time.Time       `json:"occurredAt"`
	Data         json.RawMessage `json:"data"`
}

// EventHandlerOptions 事件处理器参数
type EventHandlerOptions struct {
	SubjectPrefix string
	Workers       int
	QueueSize     int
	MaxRetries    int
	Backoff       time.Duration
}

// EventHandler 基于发件箱的事件处理器
// 事件先落库为 pending,再由 worker 异步投递,失败按指数退避重试
type EventHandler struct {
	eventRepo repository.EventRepository
	sink      Sink
	logger    *logrus.Logger
	opts      EventHandlerOptions
	queue     chan *model.EventModel
	stop      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewEventHandler 创建事件处理器
func NewEventHandler(db *gorm.DB, sink Sink, logger *logrus.Logger, opts EventHandlerOptions) *EventHandler {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.SubjectPrefix == "" {
		opts.SubjectPrefix = "budget"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if sink == nil {
		sink = NewLogSink(logger)
	}

	return &EventHandler{
		eventRepo: repository.NewEventRepository(db),
		sink:      sink,
		logger:    logger,
		opts:      opts,
		queue:     make(chan *model.EventModel, opts.QueueSize),
		stop:      make(chan struct{}),
	}
}

// Start 启动 worker,并重新投递库中残留的 pending 事件
func (h *EventHandler) Start() {
	h.startOnce.Do(func() {
		for i := 0; i < h.opts.Workers; i++ {
			h.wg.Add(1)
			go h.worker()
		}

		pending, err := h.eventRepo.FindPending(h.opts.QueueSize)
		if err != nil {
			h.logger.WithError(err).Warn("failed to load pending events")
			return
		}
		for _, evt := range pending {
			h.enqueue(evt)
		}
	})
}

// Subject 事件主题,例如 budget.proposal.status_changed
func (h *EventHandler) Subject(eventType string) string {
	return h.opts.SubjectPrefix + "." + strings.TrimPrefix(eventType, ".")
}

// Publish 持久化事件并异步投递
func (h *EventHandler) Publish(ctx context.Context, resourceType, resourceID, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	now := time.Now()
	id := uuid.New().String()
	envelope, err := json.Marshal(Envelope{
		ID:           id,
		Type:         eventType,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OccurredAt:   now,
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	evt := &model.EventModel{
		ID:           id,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Type:         eventType,
		Subject:      h.Subject(eventType),
		Data:         string(envelope),
		Status:       model.EventStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.eventRepo.Save(evt); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	h.enqueue(evt)
	return nil
}

// enqueue 入队,队列满时保留 pending 状态等待下次启动重新投递
func (h *EventHandler) enqueue(evt *model.EventModel) {
	select {
	case h.queue <- evt:
	default:
		h.logger.WithFields(logrus.Fields{
			"event_id": evt.ID,
			"type":     evt.Type,
		}).Warn("event queue full, event left pending")
	}
}

// worker 事件处理 worker
func (h *EventHandler) worker() {
	defer h.wg.Done()
	for {
		select {
		case evt := <-h.queue:
			h.deliver(evt)
		case <-h.stop:
			return
		}
	}
}

// deliver 投递单个事件
func (h *EventHandler) deliver(evt *model.EventModel) {
	backoff := h.opts.Backoff
	var lastErr error

	for i := 0; i < h.opts.MaxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		lastErr = h.sink.Publish(ctx, evt.Subject, []byte(evt.Data))
		cancel()

		if lastErr == nil {
			metrics.RecordEventPublished(true)
			if err := h.eventRepo.UpdateStatus(evt.ID, model.EventStatusSuccess, i, ""); err != nil {
				h.logger.WithError(err).WithField("event_id", evt.ID).Error("failed to update event status")
			}
			return
		}

		h.logger.WithError(lastErr).WithFields(logrus.Fields{
			"event_id": evt.ID,
			"subject":  evt.Subject,
			"attempt":  i + 1,
		}).Warn("failed to publish event")

		if i < h.opts.MaxRetries-1 {
			select {
			case <-time.After(backoff):
				backoff *= 2 // 指数退避
			case <-h.stop:
				// 停止时保持 pending,下次启动重新投递
				_ = h.eventRepo.UpdateStatus(evt.ID, model.EventStatusPending, i+1, lastErr.Error())
				return
			}
		}
	}

	metrics.RecordEventPublished(false)
	if err := h.eventRepo.UpdateStatus(evt.ID, model.EventStatusFailed, h.opts.MaxRetries, lastErr.Error()); err != nil {
		h.logger.WithError(err).WithField("event_id", evt.ID).Error("failed to update event status")
	}
}

// Stop 停止事件处理器并等待 worker 退出
func (h *EventHandler) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
		h.wg.Wait()
	})
}
