/*
 * @module api/controllers/event_controller
 * @description 事件控制器，提供测试记录变更的SSE订阅和系统通知推送接口
 * @architecture RESTful API架构 - 控制器层
 * @documentReference dev_docs/change_events.md
 * @stateFlow SSE连接 -> EventService注册 -> 变更事件推送 -> 连接断开时注销
 * @rules 客户端收到 data_change 事件后重新查询；事件队列满时服务端跳过，不阻塞发布方
 * @dependencies pvsdm-service/service/event, github.com/go-chi/chi/v5, github.com/go-chi/render
 * @refs service/event/event_service.go
 */

package controllers

import (
	"fmt"
	"net/http"
	"time"

	"pvsdm-service/service/event"
	"pvsdm-service/service/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// heartbeatInterval SSE心跳间隔
const heartbeatInterval = 30 * time.Second

// EventController 事件控制器
type EventController struct {
	eventService *event.EventService
}

// NewEventController 创建事件控制器实例
func NewEventController(eventService *event.EventService) *EventController {
	return &EventController{eventService: eventService}
}

// HandleSSE 处理SSE连接
// @Summary 建立SSE连接
// @Description 前端页面通过此接口建立SSE连接，接收测试记录、产品、测试项目的变更事件
// @Tags 事件管理
// @Param user_name path string true "用户名"
// @Success 200 {string} string "SSE事件流"
// @Router /sse/{user_name} [get]
func (c *EventController) HandleSSE(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "user_name")
	if userName == "" {
		http.Error(w, "用户名不能为空", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "当前连接不支持事件流", http.StatusInternalServerError)
		return
	}

	// 设置SSE响应头
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	connectionID := uuid.New().String()
	clientIP := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		clientIP = forwarded
	}

	client := c.eventService.AddSSEConnection(userName, connectionID, clientIP)
	defer c.eventService.RemoveSSEConnection(userName, connectionID)

	// 发送连接成功事件
	fmt.Fprintf(w, "data: {\"type\":\"connected\",\"connection_id\":\"%s\",\"timestamp\":\"%s\"}\n\n",
		connectionID, time.Now().Format(time.RFC3339))
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case ev := <-client.Channel:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.EventType, toJSON(ev))
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()

		case <-client.Done:
			return

		case <-r.Context().Done():
			return
		}
	}
}

// SendEvent 发送通知给指定用户
// @Summary 发送通知
// @Description 向指定用户的全部SSE连接发送通知
// @Tags 事件管理
// @Accept json
// @Produce json
// @Param request body SendEventRequest true "发送事件请求"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse "用户没有活动连接"
// @Router /events/send [post]
func (c *EventController) SendEvent(w http.ResponseWriter, r *http.Request) {
	var req SendEventRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}
	if req.UserName == "" {
		render.JSON(w, r, BadRequestResponse("用户名不能为空", nil))
		return
	}

	ev := newNotification(req.Data)
	if !c.eventService.SendEventToUser(req.UserName, ev) {
		render.JSON(w, r, NotFoundResponse("用户没有活动连接"))
		return
	}

	render.JSON(w, r, SuccessResponse("事件发送成功", map[string]interface{}{
		"event_id": ev.ID,
	}))
}

// BroadcastEvent 广播通知
// @Summary 广播通知
// @Description 向所有连接的用户广播通知
// @Tags 事件管理
// @Accept json
// @Produce json
// @Param request body BroadcastEventRequest true "广播事件请求"
// @Success 200 {object} APIResponse
// @Router /events/broadcast [post]
func (c *EventController) BroadcastEvent(w http.ResponseWriter, r *http.Request) {
	var req BroadcastEventRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, BadRequestResponse("请求参数解析失败", err))
		return
	}

	ev := newNotification(req.Data)
	c.eventService.BroadcastEvent(ev)

	render.JSON(w, r, SuccessResponse("事件广播成功", map[string]interface{}{
		"event_id":    ev.ID,
		"connections": c.eventService.ConnectionCount(),
	}))
}

func newNotification(data map[string]interface{}) *models.SSEEvent {
	return &models.SSEEvent{
		ID:        uuid.New().String(),
		EventType: "system_notification",
		Data:      data,
		CreatedAt: time.Now(),
	}
}

// === 请求和响应结构体 ===

// SendEventRequest 发送事件请求
type SendEventRequest struct {
	UserName string                 `json:"user_name" example:"admin"`
	Data     map[string]interface{} `json:"data"`
}

// BroadcastEventRequest 广播事件请求
type BroadcastEventRequest struct {
	Data map[string]interface{} `json:"data"`
}
