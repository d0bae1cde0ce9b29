/*
 * @module service/records/record_service
 * @description 测试记录管理服务，提供单条测试记录的查询、手工录入、修改和删除
 * @architecture 业务服务层 - 记录管理
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 请求参数 -> 字段校验 -> 存储契约 -> 回读关联数据 -> 发布变更事件
 * @rules 写操作返回变更后的完整记录；测试日期只保留日历日；失败时返回 QueryFailure，不做重试
 * @dependencies pvsdm-service/service/storage, pvsdm-service/service/query
 * @refs api/controllers/record_controller.go, service/event
 */

package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pvsdm-service/service/models"
	"pvsdm-service/service/monitoring"
	"pvsdm-service/service/query"
	"pvsdm-service/service/storage"
	"pvsdm-service/service/validation"
)

// QueryFailure 与查询构造器共用同一失败类型
type QueryFailure = query.QueryFailure

// InputError 请求数据校验失败
type InputError struct {
	Errors []models.ValidationError
}

func (e *InputError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, ve.Message)
	}
	return strings.Join(msgs, "; ")
}

// Publisher 变更事件发布
type Publisher interface {
	Publish(ctx context.Context, event models.ChangeEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.ChangeEvent) {}

// RecordInput 新建测试记录
type RecordInput struct {
	TestDate   string       `json:"test_date"`
	DeviceSN   string       `json:"device_sn"`
	ProductID  string       `json:"product_id"`
	TestItemID string       `json:"test_item_id"`
	TestValue  models.JSONB `json:"test_value"`
	Result     string       `json:"result"`
	OperatorID string       `json:"operator_id"`
	BatchID    *string      `json:"batch_id,omitempty"`
	Remarks    *string      `json:"remarks,omitempty"`
}

// RecordPatch 修改测试记录，nil 字段保持不变
type RecordPatch struct {
	TestDate   *string      `json:"test_date,omitempty"`
	DeviceSN   *string      `json:"device_sn,omitempty"`
	ProductID  *string      `json:"product_id,omitempty"`
	TestItemID *string      `json:"test_item_id,omitempty"`
	TestValue  models.JSONB `json:"test_value,omitempty"`
	Result     *string      `json:"result,omitempty"`
	OperatorID *string      `json:"operator_id,omitempty"`
	BatchID    *string      `json:"batch_id,omitempty"`
	Remarks    *string      `json:"remarks,omitempty"`
}

// RecordService 测试记录服务
type RecordService struct {
	store     storage.Store
	query     *query.RecordQuery
	publisher Publisher
}

// NewRecordService 创建测试记录服务，publisher 为空时不发布事件
func NewRecordService(store storage.Store, publisher Publisher) *RecordService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &RecordService{
		store:     store,
		query:     query.NewRecordQuery(store),
		publisher: publisher,
	}
}

// List 分页查询测试记录
func (s *RecordService) List(ctx context.Context, filters models.QueryFilters, sort models.SortParams, page models.PaginationParams) (*models.RecordPage, error) {
	start := time.Now()
	result, err := s.query.Execute(ctx, filters, sort, page)
	monitoring.ObserveQuery("list_records", start, err)
	return result, err
}

// Get 按ID获取测试记录，包含产品和测试项目
func (s *RecordService) Get(ctx context.Context, id string) (*models.TestRecord, error) {
	q := (&storage.SelectQuery{Limit: 1, Preload: []string{"Product", "TestItem"}}).
		Where("id", storage.OpEq, id)

	var records []models.TestRecord
	if _, err := s.store.Select(ctx, models.TableTestRecords, q, &records); err != nil {
		return nil, &QueryFailure{Op: "查询测试记录", Cause: err}
	}
	if len(records) == 0 {
		return nil, &QueryFailure{Op: "查询测试记录", Cause: storage.ErrNotFound}
	}
	return &records[0], nil
}

// Create 手工录入测试记录
func (s *RecordService) Create(ctx context.Context, input RecordInput) (*models.TestRecord, error) {
	input.Result = strings.ToUpper(strings.TrimSpace(input.Result))
	if errs := validateInput(input); len(errs) > 0 {
		return nil, &InputError{Errors: errs}
	}

	testDate, _ := time.Parse(models.DateLayout, input.TestDate)
	record := models.TestRecord{
		TestDate:   testDate,
		DeviceSN:   input.DeviceSN,
		ProductID:  input.ProductID,
		TestItemID: input.TestItemID,
		TestValue:  input.TestValue,
		Result:     input.Result,
		OperatorID: input.OperatorID,
		BatchID:    input.BatchID,
		Remarks:    input.Remarks,
	}
	if record.TestValue == nil {
		record.TestValue = models.JSONB{}
	}
	if record.OperatorID == "" {
		if actor, ok := models.ActorFromContext(ctx); ok {
			record.OperatorID = actor.ID
		}
	}

	if err := s.store.Insert(ctx, models.TableTestRecords, &record); err != nil {
		slog.Error("新建测试记录失败", "device_sn", record.DeviceSN, "error", err)
		return nil, &QueryFailure{Op: "新建测试记录", Cause: err}
	}

	created, err := s.Get(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, models.NewChangeEvent(models.TableTestRecords, models.ChangeInsert, created.ID, created.EventPayload()))
	return created, nil
}

// Update 修改测试记录
func (s *RecordService) Update(ctx context.Context, id string, patch RecordPatch) (*models.TestRecord, error) {
	old, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields, errs := patchFields(patch)
	if len(errs) > 0 {
		return nil, &InputError{Errors: errs}
	}
	if len(fields) == 0 {
		return old, nil
	}
	fields["updated_at"] = time.Now()

	if err := s.store.Update(ctx, models.TableTestRecords, id, fields, nil); err != nil {
		return nil, &QueryFailure{Op: "修改测试记录", Cause: err}
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	event := models.NewChangeEvent(models.TableTestRecords, models.ChangeUpdate, id, updated.EventPayload())
	event.Old = old.EventPayload()
	s.publisher.Publish(ctx, event)
	return updated, nil
}

// Delete 删除测试记录，返回被删除的记录
func (s *RecordService) Delete(ctx context.Context, id string) (*models.TestRecord, error) {
	old, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, models.TableTestRecords, id); err != nil {
		return nil, &QueryFailure{Op: "删除测试记录", Cause: err}
	}

	event := models.NewChangeEvent(models.TableTestRecords, models.ChangeDelete, id, nil)
	event.Old = old.EventPayload()
	s.publisher.Publish(ctx, event)
	return old, nil
}

// IsNotFound 判断是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

func validateInput(input RecordInput) []models.ValidationError {
	errs := make([]models.ValidationError, 0)
	add := func(e *models.ValidationError) {
		if e != nil {
			errs = append(errs, *e)
		}
	}

	add(validation.ValidateRequired(input.TestDate, validation.FieldTestDate))
	add(validation.ValidateRequired(input.DeviceSN, validation.FieldDeviceSN))
	add(validation.ValidateRequired(input.ProductID, "product_id"))
	add(validation.ValidateRequired(input.TestItemID, "test_item_id"))
	add(validation.ValidateRequired(input.Result, validation.FieldResult))
	if input.TestDate != "" {
		add(validation.ValidateDate(input.TestDate, validation.FieldTestDate))
	}
	if input.DeviceSN != "" {
		add(validation.ValidateDeviceSN(input.DeviceSN))
	}
	if input.Result != "" {
		add(validation.ValidateResult(input.Result))
	}
	return errs
}

// patchFields 将修改请求转为列更新，同时校验格式
func patchFields(patch RecordPatch) (map[string]interface{}, []models.ValidationError) {
	fields := make(map[string]interface{})
	errs := make([]models.ValidationError, 0)

	if patch.TestDate != nil {
		if e := validation.ValidateDate(*patch.TestDate, validation.FieldTestDate); e != nil {
			errs = append(errs, *e)
		} else {
			d, _ := time.Parse(models.DateLayout, *patch.TestDate)
			fields["test_date"] = d
		}
	}
	if patch.DeviceSN != nil {
		if e := validation.ValidateDeviceSN(*patch.DeviceSN); e != nil {
			errs = append(errs, *e)
		} else {
			fields["device_sn"] = *patch.DeviceSN
		}
	}
	if patch.Result != nil {
		if e := validation.ValidateResult(*patch.Result); e != nil {
			errs = append(errs, *e)
		} else {
			fields["result"] = strings.ToUpper(strings.TrimSpace(*patch.Result))
		}
	}
	if patch.ProductID != nil {
		fields["product_id"] = *patch.ProductID
	}
	if patch.TestItemID != nil {
		fields["test_item_id"] = *patch.TestItemID
	}
	if patch.TestValue != nil {
		fields["test_value"] = patch.TestValue
	}
	if patch.OperatorID != nil {
		fields["operator_id"] = *patch.OperatorID
	}
	if patch.BatchID != nil {
		fields["batch_id"] = *patch.BatchID
	}
	if patch.Remarks != nil {
		fields["remarks"] = *patch.Remarks
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return fields, nil
}

// requireField 必填字段错误
func requireField(value, field, label string) *models.ValidationError {
	if strings.TrimSpace(value) == "" {
		return &models.ValidationError{Field: field, Value: value, Message: fmt.Sprintf("%s不能为空", label)}
	}
	return nil
}
