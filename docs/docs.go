// Package docs 接口文档，由 swag init 根据控制器注释生成
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {"tags": ["系统"], "summary": "健康检查", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {"tags": ["系统"], "summary": "就绪检查", "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "503": {"description": "数据库不可用"}}}
        },
        "/records": {
            "get": {
                "tags": ["测试记录"],
                "summary": "查询测试记录",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "开始日期 YYYY-MM-DD", "name": "date_from", "in": "query"},
                    {"type": "string", "description": "结束日期 YYYY-MM-DD", "name": "date_to", "in": "query"},
                    {"type": "string", "description": "产品ID", "name": "product_id", "in": "query"},
                    {"type": "string", "description": "测试项目ID", "name": "test_item_id", "in": "query"},
                    {"type": "string", "description": "测试结果", "name": "result", "in": "query"},
                    {"type": "string", "description": "设备序列号（模糊匹配）", "name": "device_sn", "in": "query"},
                    {"type": "string", "description": "批次号", "name": "batch_id", "in": "query"},
                    {"type": "integer", "description": "页码", "name": "page", "in": "query"},
                    {"type": "integer", "description": "每页数量", "name": "size", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {"tags": ["测试记录"], "summary": "创建测试记录", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/records/statistics": {
            "get": {"tags": ["测试记录"], "summary": "按条件统计测试记录", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/records/{id}": {
            "get": {"tags": ["测试记录"], "summary": "获取测试记录", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["测试记录"], "summary": "修改测试记录", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["测试记录"], "summary": "删除测试记录", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/import": {
            "post": {"tags": ["数据导入"], "summary": "导入测试数据", "consumes": ["multipart/form-data"], "parameters": [{"type": "file", "name": "file", "in": "formData", "required": true}, {"type": "string", "name": "batch_id", "in": "formData"}], "responses": {"200": {"description": "OK"}}}
        },
        "/import/parse": {
            "post": {"tags": ["数据导入"], "summary": "解析导入文件", "consumes": ["multipart/form-data"], "parameters": [{"type": "file", "name": "file", "in": "formData", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/import/template": {
            "get": {"tags": ["数据导入"], "summary": "下载导入模板", "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"], "responses": {"200": {"description": "OK"}}}
        },
        "/statistics/today": {"get": {"tags": ["统计分析"], "summary": "今日统计", "responses": {"200": {"description": "OK"}}}},
        "/statistics/week": {"get": {"tags": ["统计分析"], "summary": "本周统计", "responses": {"200": {"description": "OK"}}}},
        "/statistics/month": {"get": {"tags": ["统计分析"], "summary": "本月统计", "responses": {"200": {"description": "OK"}}}},
        "/statistics/trend": {"get": {"tags": ["统计分析"], "summary": "逐日趋势", "parameters": [{"type": "integer", "name": "days", "in": "query"}], "responses": {"200": {"description": "OK"}}}},
        "/statistics/trend/chart": {"get": {"tags": ["统计分析"], "summary": "合格率趋势图", "parameters": [{"type": "integer", "name": "days", "in": "query"}], "responses": {"200": {"description": "OK"}}}},
        "/statistics/by-product": {"get": {"tags": ["统计分析"], "summary": "按产品统计", "responses": {"200": {"description": "OK"}}}},
        "/statistics/by-test-item": {"get": {"tags": ["统计分析"], "summary": "按测试项目统计", "responses": {"200": {"description": "OK"}}}},
        "/statistics/category-distribution": {"get": {"tags": ["统计分析"], "summary": "测试分类分布", "responses": {"200": {"description": "OK"}}}},
        "/statistics/dashboard": {"get": {"tags": ["统计分析"], "summary": "仪表盘汇总", "responses": {"200": {"description": "OK"}}}},
        "/products": {
            "get": {"tags": ["产品管理"], "summary": "获取产品列表", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["产品管理"], "summary": "创建产品", "responses": {"200": {"description": "OK"}}}
        },
        "/products/{id}": {
            "get": {"tags": ["产品管理"], "summary": "获取产品详情", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["产品管理"], "summary": "修改产品", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/test-items": {
            "get": {"tags": ["测试项目管理"], "summary": "获取测试项目列表", "parameters": [{"type": "string", "name": "category", "in": "query"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["测试项目管理"], "summary": "创建测试项目", "responses": {"200": {"description": "OK"}}}
        },
        "/test-items/categories": {"get": {"tags": ["测试项目管理"], "summary": "获取测试项目分类", "responses": {"200": {"description": "OK"}}}},
        "/test-items/{id}": {
            "get": {"tags": ["测试项目管理"], "summary": "获取测试项目详情", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}},
            "put": {"tags": ["测试项目管理"], "summary": "修改测试项目", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/sse/{user_name}": {"get": {"tags": ["事件管理"], "summary": "建立SSE连接", "parameters": [{"type": "string", "name": "user_name", "in": "path", "required": true}], "responses": {"200": {"description": "SSE事件流"}}}},
        "/events/send": {"post": {"tags": ["事件管理"], "summary": "发送通知", "responses": {"200": {"description": "OK"}}}},
        "/events/broadcast": {"post": {"tags": ["事件管理"], "summary": "广播通知", "responses": {"200": {"description": "OK"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/swagger/pvsdm-service",
	Schemes:          []string{},
	Title:            "光伏关断器质量测试数据服务 API",
	Description:      "光伏关断器测试数据的导入、查询与统计分析服务，提供Excel批量导入、测试记录管理和合格率统计功能",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
