/*
 * @module service/event/event_service
 * @description 数据变更事件中心，提供按表订阅回调、SSE推送以及Kafka/MQTT外部输出
 * @architecture 事件驱动架构 - 业务服务层
 * @documentReference dev_docs/change_events.md
 * @stateFlow 变更来源(业务服务/数据库通知) -> 发布 -> 订阅回调 -> SSE客户端 -> 外部输出
 * @rules 订阅表受读写锁保护，回调在锁外执行；SSE和外部输出不阻塞发布方，队列满时丢弃并记录日志；
 *        事件消费方收到通知后重新查询，不做增量合并
 * @dependencies pvsdm-service/service/models, pvsdm-service/service/monitoring
 * @refs service/event/pg_listener.go, service/event/sinks.go, api/controllers/event_controller.go
 */

package event

import (
	"context"
	"log"
	"log/slog"
	"sync"
	"time"

	"pvsdm-service/service/models"
	"pvsdm-service/service/monitoring"

	"github.com/google/uuid"
)

// sinkQueueSize 外部输出队列长度
const sinkQueueSize = 256

// Handler 变更回调
type Handler func(ctx context.Context, event models.ChangeEvent)

// Handlers 按变更类型区分的回调，未设置的类型不通知
type Handlers struct {
	OnInsert Handler
	OnUpdate Handler
	OnDelete Handler
}

func (h Handlers) pick(eventType string) Handler {
	switch eventType {
	case models.ChangeInsert:
		return h.OnInsert
	case models.ChangeUpdate:
		return h.OnUpdate
	case models.ChangeDelete:
		return h.OnDelete
	default:
		return nil
	}
}

// OnAny 所有变更类型使用同一回调
func OnAny(fn Handler) Handlers {
	return Handlers{OnInsert: fn, OnUpdate: fn, OnDelete: fn}
}

// Sink 事件外部输出
type Sink interface {
	Name() string
	Send(ctx context.Context, event models.ChangeEvent) error
	Close() error
}

type sinkWorker struct {
	sink  Sink
	queue chan models.ChangeEvent
	done  chan struct{}
}

// EventService 事件服务
type EventService struct {
	subscriptions map[string]map[string]Handlers // table -> subscriptionID -> handlers
	connections   map[string]map[string]*SSEClient // userName -> connectionID -> client
	sinks         []*sinkWorker
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	stopOnce      sync.Once
}

// SSEClient SSE客户端连接
type SSEClient struct {
	ID       string
	UserName string
	Channel  chan *models.SSEEvent
	Done     chan bool
	ClientIP string
}

// NewEventService 创建事件服务实例
func NewEventService() *EventService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &EventService{
		subscriptions: make(map[string]map[string]Handlers),
		connections:   make(map[string]map[string]*SSEClient),
		ctx:           ctx,
		cancel:        cancel,
	}

	go s.startConnectionCleaner()
	return s
}

// === 订阅管理 ===

// Subscribe 订阅指定表的变更，返回取消订阅函数
func (s *EventService) Subscribe(table string, handlers Handlers) func() {
	id := uuid.New().String()

	s.mu.Lock()
	if s.subscriptions[table] == nil {
		s.subscriptions[table] = make(map[string]Handlers)
	}
	s.subscriptions[table][id] = handlers
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if subs, ok := s.subscriptions[table]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(s.subscriptions, table)
				}
			}
		})
	}
}

// SubscriberCount 指定表的订阅数
func (s *EventService) SubscriberCount(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscriptions[table])
}

// AddSink 添加外部输出，事件经队列异步发送
func (s *EventService) AddSink(sink Sink) {
	w := &sinkWorker{
		sink:  sink,
		queue: make(chan models.ChangeEvent, sinkQueueSize),
		done:  make(chan struct{}),
	}

	s.mu.Lock()
	s.sinks = append(s.sinks, w)
	s.mu.Unlock()

	go s.runSink(w)
	slog.Info("事件输出已启用", "sink", sink.Name())
}

func (s *EventService) runSink(w *sinkWorker) {
	defer close(w.done)
	for {
		select {
		case event := <-w.queue:
			ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
			if err := w.sink.Send(ctx, event); err != nil {
				slog.Error("事件输出失败", "sink", w.sink.Name(), "table", event.Table, "record_id", event.RecordID, "error", err)
			}
			cancel()
		case <-s.ctx.Done():
			return
		}
	}
}

// === 事件发布 ===

// Publish 发布变更事件
func (s *EventService) Publish(ctx context.Context, event models.ChangeEvent) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	monitoring.RecordChangeEvent(event.Table, event.Type)

	// 复制回调列表，在锁外执行
	s.mu.RLock()
	handlers := make([]Handler, 0, len(s.subscriptions[event.Table]))
	for _, h := range s.subscriptions[event.Table] {
		if fn := h.pick(event.Type); fn != nil {
			handlers = append(handlers, fn)
		}
	}
	sinks := append([]*sinkWorker(nil), s.sinks...)
	s.mu.RUnlock()

	for _, fn := range handlers {
		s.invoke(ctx, fn, event)
	}

	for _, w := range sinks {
		select {
		case w.queue <- event:
		default:
			slog.Warn("事件输出队列已满，丢弃事件", "sink", w.sink.Name(), "table", event.Table, "record_id", event.RecordID)
		}
	}

	s.BroadcastEvent(&models.SSEEvent{
		ID:        event.ID,
		EventType: "data_change",
		Data: map[string]interface{}{
			"table":     event.Table,
			"type":      event.Type,
			"record_id": event.RecordID,
			"record":    event.Record,
		},
		CreatedAt: event.OccurredAt,
	})
}

// invoke 单个回调异常不影响其他订阅方
func (s *EventService) invoke(ctx context.Context, fn Handler, event models.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("变更回调异常", "table", event.Table, "type", event.Type, "panic", r)
		}
	}()
	fn(ctx, event)
}

// === SSE连接管理 ===

// AddSSEConnection 添加SSE连接
func (s *EventService) AddSSEConnection(userName, connectionID, clientIP string) *SSEClient {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connections[userName] == nil {
		s.connections[userName] = make(map[string]*SSEClient)
	}

	client := &SSEClient{
		ID:       connectionID,
		UserName: userName,
		Channel:  make(chan *models.SSEEvent, 100), // 缓冲100个事件
		Done:     make(chan bool),
		ClientIP: clientIP,
	}
	s.connections[userName][connectionID] = client
	monitoring.SSEConnected()

	log.Printf("SSE连接已建立: 用户=%s, 连接ID=%s, IP=%s", userName, connectionID, clientIP)
	return client
}

// RemoveSSEConnection 移除SSE连接
func (s *EventService) RemoveSSEConnection(userName, connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if userConnections, exists := s.connections[userName]; exists {
		if client, exists := userConnections[connectionID]; exists {
			close(client.Done)
			delete(userConnections, connectionID)
			monitoring.SSEDisconnected()

			if len(userConnections) == 0 {
				delete(s.connections, userName)
			}
			log.Printf("SSE连接已断开: 用户=%s, 连接ID=%s", userName, connectionID)
		}
	}
}

// ConnectionCount 当前SSE连接数
func (s *EventService) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, userConnections := range s.connections {
		n += len(userConnections)
	}
	return n
}

// SendEventToUser 向指定用户的全部连接发送事件
func (s *EventService) SendEventToUser(userName string, event *models.SSEEvent) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userConnections, exists := s.connections[userName]
	if !exists {
		return false
	}
	for _, client := range userConnections {
		eventCopy := *event
		eventCopy.UserName = userName
		s.deliver(client, &eventCopy)
	}
	return true
}

// BroadcastEvent 广播事件给所有用户
func (s *EventService) BroadcastEvent(event *models.SSEEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for userName, userConnections := range s.connections {
		for _, client := range userConnections {
			eventCopy := *event
			eventCopy.UserName = userName
			s.deliver(client, &eventCopy)
		}
	}
}

func (s *EventService) deliver(client *SSEClient, event *models.SSEEvent) {
	select {
	case client.Channel <- event:
	default:
		log.Printf("用户 %s 的连接 %s 事件队列已满，跳过发送", client.UserName, client.ID)
	}
}

// startConnectionCleaner 定期清理已断开的连接
func (s *EventService) startConnectionCleaner() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupInactiveConnections()
		case <-s.ctx.Done():
			return
		}
	}
}

// cleanupInactiveConnections 清理不活跃的连接
func (s *EventService) cleanupInactiveConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userName, userConnections := range s.connections {
		for connectionID, client := range userConnections {
			select {
			case <-client.Done:
				delete(userConnections, connectionID)
				log.Printf("清理已断开的连接: 用户=%s, 连接ID=%s", userName, connectionID)
			default:
			}
		}

		if len(userConnections) == 0 {
			delete(s.connections, userName)
		}
	}
}

// Stop 停止事件服务，关闭全部连接与外部输出
func (s *EventService) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		for _, userConnections := range s.connections {
			for _, client := range userConnections {
				close(client.Done)
				monitoring.SSEDisconnected()
			}
		}
		s.connections = make(map[string]map[string]*SSEClient)
		sinks := s.sinks
		s.sinks = nil
		s.mu.Unlock()

		for _, w := range sinks {
			<-w.done
			if err := w.sink.Close(); err != nil {
				slog.Warn("关闭事件输出失败", "sink", w.sink.Name(), "error", err)
			}
		}
		log.Println("事件服务已停止")
	})
}
