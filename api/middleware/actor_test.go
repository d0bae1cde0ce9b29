package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"pvsdm-service/service/models"

	"github.com/stretchr/testify/assert"
)

func TestActor(t *testing.T) {
	var got models.Actor
	var found bool
	handler := Actor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = models.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/records", nil)
	req.Header.Set(HeaderUserID, "user-1")
	req.Header.Set(HeaderUserRole, " Operator ")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, found)
	assert.Equal(t, models.Actor{ID: "user-1", Role: models.RoleOperator}, got)

	req = httptest.NewRequest(http.MethodGet, "/records", nil)
	req.Header.Set(HeaderUserID, "user-2")
	req.Header.Set(HeaderUserRole, "superuser")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, models.RoleViewer, got.Role, "未知角色按只读处理")

	found = false
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/records", nil))
	assert.False(t, found)
}

func TestRequireWriter(t *testing.T) {
	handler := Actor(RequireWriter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	cases := []struct {
		name string
		id   string
		role string
		want int
	}{
		{"匿名", "", "", http.StatusUnauthorized},
		{"只读", "u", models.RoleViewer, http.StatusForbidden},
		{"操作员", "u", models.RoleOperator, http.StatusNoContent},
		{"管理员", "u", models.RoleAdmin, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/records", nil)
			if tc.id != "" {
				req.Header.Set(HeaderUserID, tc.id)
				req.Header.Set(HeaderUserRole, tc.role)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
