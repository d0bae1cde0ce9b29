package models

import "context"

// 用户角色
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Actor 当前操作者，由上游网关注入
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// CanWrite 是否具有写权限
func (a Actor) CanWrite() bool {
	return a.Role == RoleAdmin || a.Role == RoleOperator
}

type actorKey struct{}

// WithActor 将操作者写入上下文
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext 从上下文读取操作者
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
