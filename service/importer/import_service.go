/*
 * @module service/importer/import_service
 * @description 测试数据导入服务，编排文件校验、解析、引用解析、分块写入与变更通知
 * @architecture 业务服务层 - 导入流程编排
 * @documentReference dev_docs/import_rules.md
 * @stateFlow 上传文件 -> 类型/大小校验 -> 解析 -> 产品型号/测试项目解析 -> 分块写入 -> 发布批次变更事件
 * @rules 同一文件内容并发重复提交时只允许一个导入执行；引用无法解析的行按行级错误处理；
 *        写入失败时报告已写入数量，调用方需核对后再重试
 * @dependencies pvsdm-service/service/ingestion, pvsdm-service/service/storage
 * @refs service/importer/batch_importer.go, api/controllers/import_controller.go
 */

package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"pvsdm-service/service/format"
	"pvsdm-service/service/ingestion"
	"pvsdm-service/service/models"
	"pvsdm-service/service/monitoring"
	"pvsdm-service/service/storage"
	"pvsdm-service/service/validation"
)

var (
	// ErrInvalidFileType 文件类型不支持
	ErrInvalidFileType = errors.New("请上传Excel文件（.xls或.xlsx）")
	// ErrFileTooLarge 文件过大
	ErrFileTooLarge = errors.New("文件大小超出限制")
	// ErrImportInProgress 相同文件正在导入
	ErrImportInProgress = errors.New("相同文件正在导入，请稍后再试")
)

// importLockTTL 导入锁过期时间
const importLockTTL = 10 * time.Minute

// Locker 导入互斥锁
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Publisher 变更事件发布
type Publisher interface {
	Publish(ctx context.Context, event models.ChangeEvent)
}

// ImportService 导入服务
type ImportService struct {
	parser      *ingestion.Parser
	importer    *BatchImporter
	store       storage.Store
	locker      Locker
	publisher   Publisher
	maxUploadMB int
}

// Option 导入服务选项
type Option func(*ImportService)

// WithLocker 设置导入互斥锁
func WithLocker(locker Locker) Option {
	return func(s *ImportService) {
		if locker != nil {
			s.locker = locker
		}
	}
}

// WithPublisher 设置变更事件发布器
func WithPublisher(publisher Publisher) Option {
	return func(s *ImportService) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithMaxUploadMB 设置上传大小上限
func WithMaxUploadMB(mb int) Option {
	return func(s *ImportService) {
		s.maxUploadMB = mb
	}
}

// NewImportService 创建导入服务
func NewImportService(store storage.Store, importer *BatchImporter, opts ...Option) *ImportService {
	s := &ImportService{
		parser:      ingestion.NewParser(),
		importer:    importer,
		store:       store,
		locker:      nopLocker{},
		publisher:   nopPublisher{},
		maxUploadMB: validation.DefaultMaxFileSizeMB,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// checkUpload 上传文件类型与大小校验
func (s *ImportService) checkUpload(upload *models.ImportUpload) error {
	if !validation.ValidateFileType(upload.FileName, upload.ContentType) {
		return ErrInvalidFileType
	}
	size := upload.Size
	if size == 0 {
		size = int64(len(upload.Content))
	}
	if !validation.ValidateFileSize(size, s.maxUploadMB) {
		return fmt.Errorf("%w: 最大%dMB", ErrFileTooLarge, s.maxUploadMB)
	}
	return nil
}

// Preview 仅解析不写入，返回有效行与错误
func (s *ImportService) Preview(ctx context.Context, upload *models.ImportUpload) (*models.ParsePreview, error) {
	if err := s.checkUpload(upload); err != nil {
		return nil, err
	}
	parsed, err := s.parse(ctx, upload)
	if err != nil {
		return nil, err
	}
	return &models.ParsePreview{
		FileName:  upload.FileName,
		TotalRows: parsed.TotalRows,
		Data:      parsed.Data,
		Errors:    parsed.Errors,
	}, nil
}

func (s *ImportService) parse(ctx context.Context, upload *models.ImportUpload) (*ingestion.ParseResult, error) {
	parsed, err := s.parser.ParseBytes(ctx, upload.Content)
	if err != nil {
		var failure *ingestion.ParseFailure
		if errors.As(err, &failure) {
			monitoring.RecordParseFailure()
		}
		return nil, err
	}
	return parsed, nil
}

// Ingest 解析并导入上传文件
// 写入失败时同时返回报告（含已写入数量）与 *ImportFailure
func (s *ImportService) Ingest(ctx context.Context, upload *models.ImportUpload) (*models.ImportReport, error) {
	if err := s.checkUpload(upload); err != nil {
		return nil, err
	}

	digest := contentDigest(upload.Content)
	locked, err := s.locker.TryLock(ctx, "import:"+digest, importLockTTL)
	if err != nil {
		// 锁服务不可用时不阻塞导入
		slog.Warn("获取导入锁失败，继续导入", "file", upload.FileName, "error", err)
	} else if !locked {
		return nil, ErrImportInProgress
	} else {
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), "import:"+digest); err != nil {
				slog.Warn("释放导入锁失败", "file", upload.FileName, "error", err)
			}
		}()
	}

	start := time.Now()
	parsed, err := s.parse(ctx, upload)
	if err != nil {
		return nil, err
	}

	actor, _ := models.ActorFromContext(ctx)
	records, refErrors, err := s.resolve(ctx, parsed.Data, actor, upload.BatchID)
	if err != nil {
		return nil, err
	}

	errs := append(parsed.Errors, refErrors...)
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Row < errs[j].Row })

	report := &models.ImportReport{
		FileName:    upload.FileName,
		FileSize:    int64(len(upload.Content)),
		TotalRows:   parsed.TotalRows,
		ValidRows:   len(records),
		InvalidRows: countRows(errs),
		BatchID:     upload.BatchID,
		Errors:      errs,
	}
	monitoring.RecordParsedRows(report.ValidRows, report.InvalidRows)

	result, importErr := s.importer.Import(ctx, records)
	if result != nil {
		report.InsertedCount = result.InsertedCount
		s.publishInserted(ctx, upload, digest, result.InsertedCount)
	}
	if importErr != nil {
		report.Failure = importErr.Error()
		slog.Error("测试数据导入失败",
			"file", upload.FileName,
			"inserted", report.InsertedCount,
			"valid_rows", report.ValidRows,
			"error", importErr)
		return report, importErr
	}

	slog.Info("测试数据导入完成",
		"file", upload.FileName,
		"total_rows", report.TotalRows,
		"inserted", report.InsertedCount,
		"errors", len(report.Errors),
		"duration", format.FormatDuration(time.Since(start)))
	return report, nil
}

// resolve 将产品型号、测试项目名称解析为ID并构造测试记录
func (s *ImportService) resolve(ctx context.Context, rows []models.ImportRow, actor models.Actor, batchID string) ([]models.TestRecord, []models.ValidationError, error) {
	records := make([]models.TestRecord, 0, len(rows))
	errs := make([]models.ValidationError, 0)
	if len(rows) == 0 {
		return records, errs, nil
	}

	productIDs, err := s.lookupProducts(ctx, rows)
	if err != nil {
		return nil, nil, err
	}
	itemIDs, err := s.lookupTestItems(ctx, rows)
	if err != nil {
		return nil, nil, err
	}

	for _, row := range rows {
		productID, okProduct := productIDs[row.ProductModel]
		itemID, okItem := itemIDs[row.TestItem]
		if !okProduct {
			errs = append(errs, models.ValidationError{Row: row.Row, Field: validation.FieldProductModel, Value: row.ProductModel, Message: "产品型号不存在"})
		}
		if !okItem {
			errs = append(errs, models.ValidationError{Row: row.Row, Field: validation.FieldTestItem, Value: row.TestItem, Message: "测试项目不存在"})
		}
		if !okProduct || !okItem {
			continue
		}

		testDate, _ := time.Parse(models.DateLayout, row.TestDate)
		record := models.TestRecord{
			TestDate:   testDate,
			DeviceSN:   row.DeviceSN,
			ProductID:  productID,
			TestItemID: itemID,
			TestValue:  row.TestValue,
			Result:     row.Result,
			OperatorID: row.Operator,
		}
		if record.TestValue == nil {
			record.TestValue = models.JSONB{}
		}
		if record.OperatorID == "" {
			record.OperatorID = actor.ID
		}
		if row.Remarks != "" {
			remarks := row.Remarks
			record.Remarks = &remarks
		}
		if batchID != "" {
			b := batchID
			record.BatchID = &b
		}
		records = append(records, record)
	}
	return records, errs, nil
}

func (s *ImportService) lookupProducts(ctx context.Context, rows []models.ImportRow) (map[string]string, error) {
	var products []models.Product
	q := (&storage.SelectQuery{}).Where("model", storage.OpIn, distinct(rows, func(r models.ImportRow) string { return r.ProductModel }))
	if _, err := s.store.Select(ctx, models.TableProducts, q, &products); err != nil {
		return nil, fmt.Errorf("查询产品型号失败: %w", err)
	}
	ids := make(map[string]string, len(products))
	for _, p := range products {
		ids[p.Model] = p.ID
	}
	return ids, nil
}

// lookupTestItems 测试项目按名称或编码匹配，仅匹配启用的项目
func (s *ImportService) lookupTestItems(ctx context.Context, rows []models.ImportRow) (map[string]string, error) {
	names := distinct(rows, func(r models.ImportRow) string { return r.TestItem })
	ids := make(map[string]string, len(names))

	for _, field := range []string{"code", "name"} {
		var items []models.TestItem
		q := (&storage.SelectQuery{}).
			Where("is_active", storage.OpEq, true).
			Where(field, storage.OpIn, names)
		if _, err := s.store.Select(ctx, models.TableTestItems, q, &items); err != nil {
			return nil, fmt.Errorf("查询测试项目失败: %w", err)
		}
		for _, item := range items {
			key := item.Name
			if field == "code" {
				key = item.Code
			}
			// 名称匹配优先于编码匹配
			ids[key] = item.ID
		}
	}
	return ids, nil
}

// publishInserted 一次导入只发布一条批次事件，订阅方据此刷新缓存并重新查询；
// 未指定批次号时以文件摘要作为事件主键
func (s *ImportService) publishInserted(ctx context.Context, upload *models.ImportUpload, digest string, inserted int) {
	if inserted == 0 {
		return
	}
	key := upload.BatchID
	if key == "" {
		key = digest
	}
	s.publisher.Publish(ctx, models.NewChangeEvent(models.TableTestRecords, models.ChangeInsert, key, map[string]interface{}{
		"batch_id":  upload.BatchID,
		"file_name": upload.FileName,
		"digest":    digest,
		"count":     inserted,
	}))
}

func distinct(rows []models.ImportRow, key func(models.ImportRow) string) []string {
	seen := make(map[string]bool, len(rows))
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		k := key(r)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// countRows 统计出现错误的行数
func countRows(errs []models.ValidationError) int {
	rows := make(map[int]struct{}, len(errs))
	for _, e := range errs {
		rows[e.Row] = struct{}{}
	}
	return len(rows)
}

func contentDigest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

type nopLocker struct{}

func (nopLocker) TryLock(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (nopLocker) Unlock(context.Context, string) error                         { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.ChangeEvent) {}
