/*
 * @module service/event/pg_listener
 * @description PostgreSQL LISTEN/NOTIFY 变更来源，将数据库触发器通知转为变更事件发布
 * @architecture 事件驱动架构 - 数据库变更监听
 * @documentReference dev_docs/change_events.md
 * @stateFlow 表触发器 -> pg_notify(pvsdm_changes) -> pq.Listener -> 解析 -> EventService.Publish
 * @rules 通知载荷为 {table, type, record_id, new_data, old_data}；解析失败的通知丢弃并记录日志；
 *        触发器安装是幂等的
 * @dependencies github.com/lib/pq, gorm.io/gorm
 * @refs service/event/event_service.go, service/init.go
 */

package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"pvsdm-service/service/models"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// NotifyChannel 变更通知通道
const NotifyChannel = "pvsdm_changes"

// notifyFunction 触发器函数名
const notifyFunction = "notify_pvsdm_changes"

// Publisher 事件发布
type Publisher interface {
	Publish(ctx context.Context, event models.ChangeEvent)
}

// PGListener 数据库变更监听器
type PGListener struct {
	connStr   string
	publisher Publisher
	listener  *pq.Listener
}

// NewPGListener 创建数据库变更监听器
func NewPGListener(connStr string, publisher Publisher) *PGListener {
	return &PGListener{connStr: connStr, publisher: publisher}
}

// Run 开始监听，直到 ctx 取消
func (l *PGListener) Run(ctx context.Context) error {
	l.listener = pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("PostgreSQL监听器事件: %v, 错误: %v", ev, err)
		}
	})
	defer l.listener.Close()

	if err := l.listener.Listen(NotifyChannel); err != nil {
		return fmt.Errorf("监听数据库通知失败: %w", err)
	}
	log.Println("数据库监听器已启动")

	for {
		select {
		case notification := <-l.listener.Notify:
			// 连接重建时会收到 nil 通知
			if notification != nil {
				l.handle(ctx, notification)
			}
		case <-ctx.Done():
			log.Println("数据库监听器已停止")
			return nil
		}
	}
}

func (l *PGListener) handle(ctx context.Context, notification *pq.Notification) {
	event, err := ParseNotification(notification.Extra)
	if err != nil {
		log.Printf("解析数据库通知失败: %v", err)
		return
	}
	l.publisher.Publish(ctx, event)
}

type notificationPayload struct {
	Table    string                 `json:"table"`
	Type     string                 `json:"type"`
	RecordID string                 `json:"record_id"`
	NewData  map[string]interface{} `json:"new_data"`
	OldData  map[string]interface{} `json:"old_data"`
}

// ParseNotification 解析触发器通知载荷
func ParseNotification(payload string) (models.ChangeEvent, error) {
	var p notificationPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return models.ChangeEvent{}, fmt.Errorf("通知载荷不是有效的JSON: %w", err)
	}
	if p.Table == "" || p.Type == "" {
		return models.ChangeEvent{}, fmt.Errorf("通知载荷缺少表名或变更类型")
	}

	event := models.NewChangeEvent(p.Table, p.Type, p.RecordID, p.NewData)
	event.Old = p.OldData
	event.Source = "database"
	return event, nil
}

// InstallTriggers 为指定表安装变更通知触发器
func InstallTriggers(db *gorm.DB, tables ...string) error {
	createFunctionSQL := fmt.Sprintf(`
CREATE OR REPLACE FUNCTION %s()
RETURNS TRIGGER AS $$
DECLARE
    payload JSON;
BEGIN
    IF TG_OP = 'DELETE' THEN
        payload := json_build_object(
            'table', TG_TABLE_NAME,
            'type', TG_OP,
            'record_id', OLD.id,
            'old_data', row_to_json(OLD)
        );
    ELSIF TG_OP = 'INSERT' THEN
        payload := json_build_object(
            'table', TG_TABLE_NAME,
            'type', TG_OP,
            'record_id', NEW.id,
            'new_data', row_to_json(NEW)
        );
    ELSE
        payload := json_build_object(
            'table', TG_TABLE_NAME,
            'type', TG_OP,
            'record_id', NEW.id,
            'old_data', row_to_json(OLD),
            'new_data', row_to_json(NEW)
        );
    END IF;

    PERFORM pg_notify('%s', payload::text);

    IF TG_OP = 'DELETE' THEN
        RETURN OLD;
    END IF;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;`, notifyFunction, NotifyChannel)

	if err := db.Exec(createFunctionSQL).Error; err != nil {
		return fmt.Errorf("创建通知函数失败: %w", err)
	}

	for _, table := range tables {
		triggerSQL := fmt.Sprintf(`
CREATE OR REPLACE TRIGGER %s_notify
AFTER INSERT OR UPDATE OR DELETE ON %s
FOR EACH ROW
EXECUTE FUNCTION %s();`, table, table, notifyFunction)

		if err := db.Exec(triggerSQL).Error; err != nil {
			return fmt.Errorf("创建表 %s 的触发器失败: %w", table, err)
		}
		log.Printf("表 %s 的变更通知触发器已安装", table)
	}
	return nil
}
