/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference .specify/memory/test_plan.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性；每个测试数据库相互隔离
 * @dependencies gorm, sqlite, testify, time
 * @refs service/models, service/storage
 */

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"pvsdm-service/service/models"
	"pvsdm-service/service/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库，每次调用得到独立的内存库
func NewTestDB() *TestDB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.Product{},
		&models.TestItem{},
		&models.TestRecord{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// Store 返回基于测试库的存储实现
func (tdb *TestDB) Store() *storage.GormStore {
	return storage.NewGormStore(tdb.DB)
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	tables := []string{
		models.TableTestRecords,
		models.TableTestItems,
		models.TableProducts,
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// Close 关闭数据库连接
func (tdb *TestDB) Close() {
	if db, err := tdb.DB.DB(); err == nil {
		db.Close()
	}
}

// TestDataFactory 测试数据工厂
type TestDataFactory struct {
	DB *gorm.DB
}

// NewTestDataFactory 创建测试数据工厂
func NewTestDataFactory(db *gorm.DB) *TestDataFactory {
	return &TestDataFactory{DB: db}
}

// ProductOption 产品选项函数类型
type ProductOption func(*models.Product)

// CreateProduct 创建测试产品
func (f *TestDataFactory) CreateProduct(opts ...ProductOption) *models.Product {
	product := &models.Product{
		Model:          "PV-" + generateSuffix(),
		Name:           "测试逆变器",
		Category:       "逆变器",
		Specifications: models.JSONB{"power": 1500},
		CreatedAt:      time.Now(),
	}

	// 应用选项
	for _, opt := range opts {
		opt(product)
	}

	if err := f.DB.Create(product).Error; err != nil {
		panic(fmt.Sprintf("failed to create test product: %v", err))
	}
	return product
}

// TestItemOption 测试项目选项函数类型
type TestItemOption func(*models.TestItem)

// CreateTestItem 创建测试项目
func (f *TestDataFactory) CreateTestItem(opts ...TestItemOption) *models.TestItem {
	item := &models.TestItem{
		Code:         "TI-" + generateSuffix(),
		Name:         "耐压测试",
		Category:     "电气安全",
		Parameters:   models.JSONB{"voltage": 1500},
		PassCriteria: models.JSONB{"leakage_max": 5},
		IsActive:     true,
		CreatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(item)
	}

	// is_active 列带 default:true，Create 会把 false 回写为 true
	active := item.IsActive
	if err := f.DB.Create(item).Error; err != nil {
		panic(fmt.Sprintf("failed to create test item: %v", err))
	}
	if !active {
		if err := f.DB.Model(item).Update("is_active", false).Error; err != nil {
			panic(fmt.Sprintf("failed to deactivate test item: %v", err))
		}
		item.IsActive = false
	}
	return item
}

// TestRecordOption 测试记录选项函数类型
type TestRecordOption func(*models.TestRecord)

// CreateTestRecord 创建测试记录
func (f *TestDataFactory) CreateTestRecord(productID, testItemID string, opts ...TestRecordOption) *models.TestRecord {
	record := &models.TestRecord{
		TestDate:   models.CalendarDate(time.Now()),
		DeviceSN:   "PV-SD-2025-" + fmt.Sprintf("%03d", nextSeq()%1000),
		ProductID:  productID,
		TestItemID: testItemID,
		TestValue:  models.JSONB{"voltage": 1500},
		Result:     models.ResultPass,
		OperatorID: "test",
	}

	for _, opt := range opts {
		opt(record)
	}

	if err := f.DB.Omit("Product", "TestItem").Create(record).Error; err != nil {
		panic(fmt.Sprintf("failed to create test record: %v", err))
	}
	return record
}

// WithTestDate 设置测试日期
func WithTestDate(date time.Time) TestRecordOption {
	return func(r *models.TestRecord) {
		r.TestDate = models.CalendarDate(date)
	}
}

// WithResult 设置测试结果
func WithResult(result string) TestRecordOption {
	return func(r *models.TestRecord) {
		r.Result = result
	}
}

// WithDeviceSN 设置设备序列号
func WithDeviceSN(sn string) TestRecordOption {
	return func(r *models.TestRecord) {
		r.DeviceSN = sn
	}
}

// WithBatchID 设置批次
func WithBatchID(batchID string) TestRecordOption {
	return func(r *models.TestRecord) {
		r.BatchID = &batchID
	}
}

// Date 构造UTC日期
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

var seq int64

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

// 辅助函数
func generateSuffix() string {
	return fmt.Sprintf("%d%d", time.Now().UnixNano()%100000, nextSeq())
}

// MockStore Mock存储契约
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Select(ctx context.Context, table string, q *storage.SelectQuery, dest interface{}) (int64, error) {
	args := m.Called(ctx, table, q, dest)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) Insert(ctx context.Context, table string, rows interface{}) error {
	args := m.Called(ctx, table, rows)
	return args.Error(0)
}

func (m *MockStore) Update(ctx context.Context, table, id string, patch map[string]interface{}, dest interface{}) error {
	args := m.Called(ctx, table, id, patch, dest)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, table, id string) error {
	args := m.Called(ctx, table, id)
	return args.Error(0)
}

// HTTPTestHelper HTTP测试辅助工具
type HTTPTestHelper struct{}

// NewHTTPTestHelper 创建HTTP测试辅助工具
func NewHTTPTestHelper() *HTTPTestHelper {
	return &HTTPTestHelper{}
}

// CreateJSONRequest 创建JSON请求
func (h *HTTPTestHelper) CreateJSONRequest(method, url string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// CreateUploadRequest 创建文件上传请求，fields 为附加表单字段
func (h *HTTPTestHelper) CreateUploadRequest(url, fileName string, content []byte, fields map[string]string) (*http.Request, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

// WithActor 设置上游网关注入的用户头
func (h *HTTPTestHelper) WithActor(req *http.Request, id, role string) *http.Request {
	req.Header.Set("X-User-ID", id)
	req.Header.Set("X-User-Role", role)
	return req
}

// DecodeResponse 解析统一响应体
func (h *HTTPTestHelper) DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// AssertJSONResponse 断言JSON响应
func (h *HTTPTestHelper) AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedBody interface{}) {
	assert.Equal(t, expectedStatus, w.Code)

	if expectedBody != nil {
		var actualBody interface{}
		err := json.Unmarshal(w.Body.Bytes(), &actualBody)
		assert.NoError(t, err)

		expectedJSON, _ := json.Marshal(expectedBody)
		actualJSON, _ := json.Marshal(actualBody)

		assert.JSONEq(t, string(expectedJSON), string(actualJSON))
	}
}
