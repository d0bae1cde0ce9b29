package models

import (
	"time"

	"github.com/google/uuid"
)

// 变更事件类型
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// ChangeEvent 数据变更事件
// Record 为变更后的数据（DELETE 时为空），Old 为变更前数据（可选）
type ChangeEvent struct {
	ID         string                 `json:"id"`
	Table      string                 `json:"table"`
	Type       string                 `json:"type"`
	RecordID   string                 `json:"record_id"`
	Record     map[string]interface{} `json:"record,omitempty"`
	Old        map[string]interface{} `json:"old,omitempty"`
	Source     string                 `json:"source"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewChangeEvent 创建变更事件
func NewChangeEvent(table, eventType, recordID string, record map[string]interface{}) ChangeEvent {
	return ChangeEvent{
		ID:         uuid.New().String(),
		Table:      table,
		Type:       eventType,
		RecordID:   recordID,
		Record:     record,
		Source:     "service",
		OccurredAt: time.Now(),
	}
}

// SSEEvent SSE推送事件
type SSEEvent struct {
	ID        string                 `json:"id"`
	EventType string                 `json:"event_type"` // data_change, system_notification
	UserName  string                 `json:"user_name"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"created_at"`
}
