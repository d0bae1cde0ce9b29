/*
 * @module api/controllers/import_controller
 * @description 测试数据导入控制器，提供Excel解析预览、批量导入和导入模板下载接口
 * @architecture RESTful API架构 - 控制器层
 * @documentReference dev_docs/import.md
 * @stateFlow multipart上传 -> 读取文件 -> ImportService(校验/解析/导入) -> 导入报告
 * @rules 上传字段名为 file，可选表单字段 batch_id；部分写入失败时返回已写入数量与失败原因
 * @dependencies pvsdm-service/service/importer, pvsdm-service/service/ingestion, github.com/go-chi/render
 * @refs service/importer/import_service.go, service/ingestion/template.go
 */

package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"pvsdm-service/service/format"
	"pvsdm-service/service/importer"
	"pvsdm-service/service/ingestion"
	"pvsdm-service/service/models"

	"github.com/go-chi/render"
)

// ImportController 导入控制器
type ImportController struct {
	importService *importer.ImportService
	maxUploadMB   int
}

// NewImportController 创建导入控制器实例
func NewImportController(importService *importer.ImportService, maxUploadMB int) *ImportController {
	return &ImportController{importService: importService, maxUploadMB: maxUploadMB}
}

// readUpload 读取上传文件，请求体限制为上传上限加1MB表单余量
func (c *ImportController) readUpload(w http.ResponseWriter, r *http.Request) (*models.ImportUpload, error) {
	limit := int64(c.maxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, importer.ErrFileTooLarge
		}
		return nil, fmt.Errorf("读取上传表单失败: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("未找到上传文件: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	if int64(len(content)) > limit {
		return nil, importer.ErrFileTooLarge
	}

	size := header.Size
	if size == 0 {
		size = int64(len(content))
	}
	return &models.ImportUpload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        size,
		Content:     content,
		BatchID:     r.FormValue("batch_id"),
	}, nil
}

// ParseFile 解析预览
// @Summary 解析导入文件
// @Description 仅解析和校验Excel文件，返回有效行与行级错误，不写入数据
// @Tags 数据导入
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Excel文件"
// @Success 200 {object} APIResponse{data=models.ParsePreview} "解析成功"
// @Failure 400 {object} APIResponse "文件类型、大小或格式错误"
// @Router /import/parse [post]
func (c *ImportController) ParseFile(w http.ResponseWriter, r *http.Request) {
	upload, err := c.readUpload(w, r)
	if err != nil {
		c.renderUploadError(w, r, err)
		return
	}

	preview, err := c.importService.Preview(r.Context(), upload)
	if err != nil {
		renderError(w, r, "解析导入文件失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse(fmt.Sprintf("解析完成，有效%d行，错误%d条", len(preview.Data), len(preview.Errors)), preview))
}

// ImportFile 导入测试数据
// @Summary 导入测试数据
// @Description 解析Excel文件并分批写入有效行，返回写入数量与全部行级错误
// @Tags 数据导入
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Excel文件"
// @Param batch_id formData string false "批次号"
// @Success 200 {object} APIResponse{data=models.ImportReport} "导入完成"
// @Failure 400 {object} APIResponse "文件类型、大小或格式错误"
// @Failure 409 {object} APIResponse "相同文件正在导入"
// @Failure 500 {object} APIResponse{data=models.ImportReport} "部分写入失败"
// @Router /import [post]
func (c *ImportController) ImportFile(w http.ResponseWriter, r *http.Request) {
	upload, err := c.readUpload(w, r)
	if err != nil {
		c.renderUploadError(w, r, err)
		return
	}

	report, err := c.importService.Ingest(r.Context(), upload)
	if err != nil {
		var failure *importer.ImportFailure
		if errors.As(err, &failure) && report != nil {
			render.JSON(w, r, APIResponse{
				Status: http.StatusInternalServerError,
				Msg:    fmt.Sprintf("导入中断，已写入%d条: %v", report.InsertedCount, failure.Cause),
				Data:   report,
			})
			return
		}
		renderError(w, r, "导入测试数据失败", err)
		return
	}
	render.JSON(w, r, SuccessResponse(fmt.Sprintf("成功导入%d条记录（%s）", report.InsertedCount, format.FormatFileSize(report.FileSize)), report))
}

func (c *ImportController) renderUploadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, importer.ErrFileTooLarge) {
		render.JSON(w, r, BadRequestResponse(fmt.Sprintf("%v: 最大%s", err, format.FormatFileSize(int64(c.maxUploadMB)<<20)), nil))
		return
	}
	render.JSON(w, r, BadRequestResponse("上传文件无效", err))
}

// DownloadTemplate 下载导入模板
// @Summary 下载导入模板
// @Tags 数据导入
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file "导入模板"
// @Router /import/template [get]
func (c *ImportController) DownloadTemplate(w http.ResponseWriter, r *http.Request) {
	content, err := ingestion.BuildTemplate()
	if err != nil {
		render.JSON(w, r, InternalErrorResponse("生成导入模板失败", err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(ingestion.TemplateFileName))
	w.Header().Set("Content-Length", fmt.Sprint(len(content)))
	_, _ = w.Write(content)
}
