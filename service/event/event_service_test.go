package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"pvsdm-service/service/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []models.ChangeEvent
	closed bool
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(_ context.Context, event models.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestEventService_SubscribeByTableAndType(t *testing.T) {
	s := NewEventService()
	defer s.Stop()
	ctx := context.Background()

	var inserts, deletes, products int
	unsubscribe := s.Subscribe(models.TableTestRecords, Handlers{
		OnInsert: func(context.Context, models.ChangeEvent) { inserts++ },
		OnDelete: func(context.Context, models.ChangeEvent) { deletes++ },
	})
	s.Subscribe(models.TableProducts, OnAny(func(context.Context, models.ChangeEvent) { products++ }))

	s.Publish(ctx, models.NewChangeEvent(models.TableTestRecords, models.ChangeInsert, "r1", nil))
	s.Publish(ctx, models.NewChangeEvent(models.TableTestRecords, models.ChangeUpdate, "r1", nil))
	s.Publish(ctx, models.NewChangeEvent(models.TableTestRecords, models.ChangeDelete, "r1", nil))
	s.Publish(ctx, models.NewChangeEvent(models.TableProducts, models.ChangeUpdate, "p1", nil))

	assert.Equal(t, 1, inserts)
	assert.Equal(t, 1, deletes, "未设置的类型不通知")
	assert.Equal(t, 1, products)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, s.SubscriberCount(models.TableTestRecords))

	s.Publish(ctx, models.NewChangeEvent(models.TableTestRecords, models.ChangeInsert, "r2", nil))
	assert.Equal(t, 1, inserts, "取消订阅后不再通知")
}

func TestEventService_HandlerMayResubscribe(t *testing.T) {
	s := NewEventService()
	defer s.Stop()

	// 回调在锁外执行，回调内订阅不会死锁
	var nested int
	s.Subscribe(models.TableTestRecords, OnAny(func(context.Context, models.ChangeEvent) {
		s.Subscribe(models.TableProducts, OnAny(func(context.Context, models.ChangeEvent) { nested++ }))
	}))
	s.Publish(context.Background(), models.NewChangeEvent(models.TableTestRecords, models.ChangeInsert, "r1", nil))
	s.Publish(context.Background(), models.NewChangeEvent(models.TableProducts, models.ChangeInsert, "p1", nil))
	assert.Equal(t, 1, nested)
}

func TestEventService_PanicIsolated(t *testing.T) {
	s := NewEventService()
	defer s.Stop()

	var called bool
	s.Subscribe(models.TableTestRecords, OnAny(func(context.Context, models.ChangeEvent) { panic("boom") }))
	s.Subscribe(models.TableTestRecords, OnAny(func(context.Context, models.ChangeEvent) { called = true }))

	assert.NotPanics(t, func() {
		s.Publish(context.Background(), models.NewChangeEvent(models.TableTestRecords, models.ChangeInsert, "r1", nil))
	})
	assert.True(t, called)
}

func TestEventService_SSEFanout(t *testing.T) {
	s := NewEventService()
	defer s.Stop()

	a := s.AddSSEConnection("alice", "c1", "127.0.0.1")
	b := s.AddSSEConnection("bob", "c2", "127.0.0.1")
	assert.Equal(t, 2, s.ConnectionCount())

	s.Publish(context.Background(), models.NewChangeEvent(models.TableTestRecords, models.ChangeInsert, "r1", map[string]interface{}{"id": "r1"}))

	for _, client := range []*SSEClient{a, b} {
		select {
		case ev := <-client.Channel:
			assert.Equal(t, "data_change", ev.EventType)
			assert.Equal(t, client.UserName, ev.UserName)
			assert.Equal(t, "r1", ev.Data["record_id"])
		case <-time.After(time.Second):
			t.Fatalf("连接 %s 未收到事件", client.ID)
		}
	}

	assert.True(t, s.SendEventToUser("alice", &models.SSEEvent{EventType: "system_notification"}))
	assert.False(t, s.SendEventToUser("nobody", &models.SSEEvent{}))

	s.RemoveSSEConnection("alice", "c1")
	assert.Equal(t, 1, s.ConnectionCount())
	_, open := <-a.Done
	assert.False(t, open)
}

func TestEventService_SSEQueueFullDoesNotBlock(t *testing.T) {
	s := NewEventService()
	defer s.Stop()
	s.AddSSEConnection("alice", "c1", "127.0.0.1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 150; i++ {
			s.Publish(context.Background(), models.NewChangeEvent(models.TableTestRecords, models.ChangeInsert, "r", nil))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("发布被阻塞")
	}
}

func TestEventService_Sinks(t *testing.T) {
	s := NewEventService()
	sink := &recordingSink{}
	s.AddSink(sink)

	s.Publish(context.Background(), models.NewChangeEvent(models.TableTestRecords, models.ChangeInsert, "r1", nil))
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 10*time.Millisecond)

	s.Stop()
	assert.True(t, sink.closed)
}

func TestParseNotification(t *testing.T) {
	event, err := ParseNotification(`{"table":"test_records","type":"UPDATE","record_id":"r1","new_data":{"result":"FAIL"},"old_data":{"result":"PASS"}}`)
	require.NoError(t, err)
	assert.Equal(t, models.TableTestRecords, event.Table)
	assert.Equal(t, models.ChangeUpdate, event.Type)
	assert.Equal(t, "r1", event.RecordID)
	assert.Equal(t, "FAIL", event.Record["result"])
	assert.Equal(t, "PASS", event.Old["result"])
	assert.Equal(t, "database", event.Source)

	_, err = ParseNotification("not json")
	assert.Error(t, err)
	_, err = ParseNotification(`{"record_id":"r1"}`)
	assert.Error(t, err)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSink(t *testing.T) {
	writer := &fakeWriter{}
	sink := &KafkaSink{writer: writer, topic: "pvsdm.changes"}
	assert.Equal(t, "kafka:pvsdm.changes", sink.Name())

	event := models.NewChangeEvent(models.TableTestRecords, models.ChangeInsert, "r1", map[string]interface{}{"id": "r1"})
	require.NoError(t, sink.Send(context.Background(), event))
	require.Len(t, writer.msgs, 1)
	assert.Equal(t, "test_records:r1", string(writer.msgs[0].Key))

	var decoded models.ChangeEvent
	require.NoError(t, json.Unmarshal(writer.msgs[0].Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)

	writer.err = errors.New("broker unavailable")
	assert.Error(t, sink.Send(context.Background(), event))
}

func TestMQTTTopic(t *testing.T) {
	assert.Equal(t, "pvsdm/changes/test_records", MQTTTopic("pvsdm/changes", models.TableTestRecords))
}
