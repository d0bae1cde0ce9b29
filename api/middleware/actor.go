/*
 * @module api/middleware/actor
 * @description 操作者上下文中间件，读取上游鉴权网关注入的用户头并写入请求上下文
 * @architecture 中间件模式 - HTTP请求拦截和上下文注入
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 读取 X-User-ID/X-User-Role -> 写入 models.Actor -> 下一个处理器
 * @rules 本服务不做身份认证，只消费网关给出的角色；未知角色按只读处理；写操作要求 admin 或 operator
 * @dependencies net/http, github.com/go-chi/render
 * @refs service/models/actor.go, api/routes.go
 */

package middleware

import (
	"net/http"
	"strings"

	"pvsdm-service/service/format"
	"pvsdm-service/service/models"

	"github.com/go-chi/render"
)

const (
	// HeaderUserID 用户ID请求头
	HeaderUserID = "X-User-ID"
	// HeaderUserRole 用户角色请求头
	HeaderUserRole = "X-User-Role"
)

// Actor 将网关注入的用户信息写入上下文
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		actor := models.Actor{ID: id, Role: normalizeRole(r.Header.Get(HeaderUserRole))}
		next.ServeHTTP(w, r.WithContext(models.WithActor(r.Context(), actor)))
	})
}

func normalizeRole(role string) string {
	switch role = strings.ToLower(strings.TrimSpace(role)); role {
	case models.RoleAdmin, models.RoleOperator:
		return role
	default:
		return models.RoleViewer
	}
}

// RequireWriter 要求具有写权限的操作者
func RequireWriter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := models.ActorFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]interface{}{
				"status": http.StatusUnauthorized,
				"msg":    "未找到用户信息",
			})
			return
		}

		if !actor.CanWrite() {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]interface{}{
				"status": http.StatusForbidden,
				"msg":    "当前角色无写入权限: " + format.FormatRole(actor.Role),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
