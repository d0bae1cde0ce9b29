package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"pvsdm-service/service/importer"
	"pvsdm-service/service/ingestion"
	"pvsdm-service/service/models"
	"pvsdm-service/service/query"
	"pvsdm-service/service/records"

	"github.com/go-chi/render"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data,omitempty"`
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data"`
	Total  int64       `json:"total" example:"100"`
	Page   int         `json:"page" example:"1"`
	Size   int         `json:"size" example:"10"`
}

// SuccessResponse 成功响应
func SuccessResponse(msg string, data interface{}) APIResponse {
	return APIResponse{Status: 0, Msg: msg, Data: data}
}

// ErrorResponse 错误响应，err 不为空时附带错误详情
func ErrorResponse(status int, msg string, err error) APIResponse {
	resp := APIResponse{Status: status, Msg: msg}
	if err != nil {
		resp.Data = map[string]interface{}{"error": err.Error()}
	}
	return resp
}

// BadRequestResponse 请求参数错误
func BadRequestResponse(msg string, err error) APIResponse {
	return ErrorResponse(http.StatusBadRequest, msg, err)
}

// NotFoundResponse 资源不存在
func NotFoundResponse(msg string) APIResponse {
	return ErrorResponse(http.StatusNotFound, msg, nil)
}

// InternalErrorResponse 服务器内部错误
func InternalErrorResponse(msg string, err error) APIResponse {
	return ErrorResponse(http.StatusInternalServerError, msg, err)
}

// renderError 将业务错误转换为统一响应
func renderError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var (
		inputErr  *records.InputError
		paramErr  *query.InvalidQueryError
		parseErr  *ingestion.ParseFailure
		importErr *importer.ImportFailure
		queryErr  *query.QueryFailure
	)

	switch {
	case errors.As(err, &inputErr):
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    msg + ": " + inputErr.Error(),
			Data:   map[string]interface{}{"errors": inputErr.Errors},
		})
	case errors.As(err, &paramErr):
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    msg + ": " + paramErr.Error(),
			Data:   map[string]interface{}{"errors": []models.ValidationError{{Field: paramErr.Field, Message: paramErr.Error()}}},
		})
	case records.IsNotFound(err):
		render.JSON(w, r, NotFoundResponse(msg+": 记录不存在"))
	case errors.Is(err, importer.ErrInvalidFileType), errors.Is(err, importer.ErrFileTooLarge):
		render.JSON(w, r, BadRequestResponse(err.Error(), nil))
	case errors.Is(err, importer.ErrImportInProgress):
		render.JSON(w, r, ErrorResponse(http.StatusConflict, err.Error(), nil))
	case errors.As(err, &parseErr):
		render.JSON(w, r, BadRequestResponse("文件解析失败", parseErr))
	case errors.As(err, &importErr):
		render.JSON(w, r, InternalErrorResponse(msg, importErr))
	case errors.As(err, &queryErr):
		render.JSON(w, r, InternalErrorResponse(msg, queryErr))
	default:
		render.JSON(w, r, InternalErrorResponse(msg, err))
	}
}

// queryInt 读取整数查询参数，缺省或非法时返回默认值
func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func toJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
