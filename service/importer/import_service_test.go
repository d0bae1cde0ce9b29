package importer_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pvsdm-service/service/importer"
	"pvsdm-service/service/ingestion"
	"pvsdm-service/service/models"
	"pvsdm-service/service/storage"
	"pvsdm-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event models.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

type busyLocker struct{}

func (busyLocker) TryLock(context.Context, string, time.Duration) (bool, error) { return false, nil }
func (busyLocker) Unlock(context.Context, string) error                         { return nil }

// failingStore 写入指定次数后失败
type failingStore struct {
	*storage.GormStore
	allow int
	calls int
}

func (s *failingStore) Insert(ctx context.Context, table string, rows interface{}) error {
	s.calls++
	if s.calls > s.allow {
		return errors.New("disk full")
	}
	return s.GormStore.Insert(ctx, table, rows)
}

type importFixture struct {
	tdb     *testutil.TestDB
	factory *testutil.TestDataFactory
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	factory := testutil.NewTestDataFactory(tdb.DB)
	factory.CreateProduct(func(p *models.Product) { p.Model = "PV-1500" })
	factory.CreateTestItem(func(i *models.TestItem) { i.Code = "HV-01"; i.Name = "耐压测试" })
	factory.CreateTestItem(func(i *models.TestItem) { i.Code = "IR-01"; i.Name = "绝缘电阻测试" })
	return &importFixture{tdb: tdb, factory: factory}
}

func upload(t *testing.T, rows [][]interface{}) *models.ImportUpload {
	t.Helper()
	content, err := ingestion.WorkbookBytes(rows)
	require.NoError(t, err)
	return &models.ImportUpload{FileName: "records.xlsx", Size: int64(len(content)), Content: content}
}

func actorCtx() context.Context {
	return models.WithActor(context.Background(), models.Actor{ID: "user-1", Role: models.RoleOperator})
}

func TestImportService_IngestTemplate(t *testing.T) {
	fx := newImportFixture(t)
	publisher := &recordingPublisher{}
	svc := importer.NewImportService(fx.tdb.Store(), importer.NewBatchImporter(fx.tdb.Store(), 1000), importer.WithPublisher(publisher))

	content, err := ingestion.BuildTemplate()
	require.NoError(t, err)

	report, err := svc.Ingest(actorCtx(), &models.ImportUpload{FileName: ingestion.TemplateFileName, Content: content, BatchID: "B-001"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalRows)
	assert.Equal(t, 2, report.ValidRows)
	assert.Equal(t, 2, report.InsertedCount)
	assert.Empty(t, report.Errors)
	require.Len(t, publisher.events, 1, "整批只发布一条事件")
	assert.Equal(t, models.ChangeInsert, publisher.events[0].Type)
	assert.Equal(t, "B-001", publisher.events[0].RecordID)
	assert.Equal(t, 2, publisher.events[0].Record["count"])

	var records []models.TestRecord
	require.NoError(t, fx.tdb.DB.Order("device_sn").Find(&records).Error)
	require.Len(t, records, 2)
	assert.Equal(t, "张三", records[0].OperatorID)
	require.NotNil(t, records[0].BatchID)
	assert.Equal(t, "B-001", *records[0].BatchID)
	require.NotNil(t, records[0].Remarks)
	assert.Equal(t, "测试正常", *records[0].Remarks)
	assert.Nil(t, records[1].Remarks, "空备注不写入")
	assert.Equal(t, "2025-01-15", records[0].DateString())
}

func TestImportService_UnresolvedReferences(t *testing.T) {
	fx := newImportFixture(t)
	svc := importer.NewImportService(fx.tdb.Store(), importer.NewBatchImporter(fx.tdb.Store(), 1000))

	report, err := svc.Ingest(actorCtx(), upload(t, [][]interface{}{
		{"2025-01-15", "PV-SD-2025-001", "PV-1500", "HV-01", "", "PASS", "", ""},
		{"2025-01-15", "PV-SD-2025-002", "PV-9999", "耐压测试", "", "PASS", "", ""},
		{"2025-02-30", "PV-SD-2025-999", "PV-1500", "耐压测试", "", "PASS", "", ""},
		{"2025-01-15", "PV-SD-2025-004", "PV-1500", "未知项目", "", "FAIL", "", ""},
	}))
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalRows)
	assert.Equal(t, 1, report.InsertedCount)
	assert.Equal(t, 3, report.InvalidRows)
	require.Len(t, report.Errors, 3)
	assert.Equal(t, 3, report.Errors[0].Row)
	assert.Equal(t, "产品型号不存在", report.Errors[0].Message)
	assert.Equal(t, 4, report.Errors[1].Row)
	assert.Equal(t, "device_sn", report.Errors[1].Field)
	assert.Equal(t, 5, report.Errors[2].Row)
	assert.Equal(t, "测试项目不存在", report.Errors[2].Message)

	var record models.TestRecord
	require.NoError(t, fx.tdb.DB.First(&record).Error)
	assert.Equal(t, "user-1", record.OperatorID, "未填写测试人员时使用当前用户")
}

func TestImportService_InactiveTestItemNotMatched(t *testing.T) {
	fx := newImportFixture(t)
	fx.factory.CreateTestItem(func(i *models.TestItem) { i.Code = "OLD-01"; i.Name = "停用项目"; i.IsActive = false })
	svc := importer.NewImportService(fx.tdb.Store(), importer.NewBatchImporter(fx.tdb.Store(), 1000))

	report, err := svc.Ingest(actorCtx(), upload(t, [][]interface{}{
		{"2025-01-15", "PV-SD-2025-001", "PV-1500", "停用项目", "", "PASS", "", ""},
	}))
	require.NoError(t, err)
	assert.Equal(t, 0, report.InsertedCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "test_item", report.Errors[0].Field)
}

func TestImportService_RejectsUpload(t *testing.T) {
	fx := newImportFixture(t)

	t.Run("文件类型", func(t *testing.T) {
		svc := importer.NewImportService(fx.tdb.Store(), importer.NewBatchImporter(fx.tdb.Store(), 1000))
		_, err := svc.Ingest(actorCtx(), &models.ImportUpload{FileName: "data.csv", ContentType: "text/csv", Content: []byte("a,b")})
		assert.ErrorIs(t, err, importer.ErrInvalidFileType)
	})

	t.Run("文件大小", func(t *testing.T) {
		svc := importer.NewImportService(fx.tdb.Store(), importer.NewBatchImporter(fx.tdb.Store(), 1000), importer.WithMaxUploadMB(1))
		_, err := svc.Ingest(actorCtx(), &models.ImportUpload{FileName: "big.xlsx", Size: 2 * 1024 * 1024, Content: []byte("x")})
		assert.ErrorIs(t, err, importer.ErrFileTooLarge)
	})

	t.Run("无法解析", func(t *testing.T) {
		svc := importer.NewImportService(fx.tdb.Store(), importer.NewBatchImporter(fx.tdb.Store(), 1000))
		_, err := svc.Ingest(actorCtx(), &models.ImportUpload{FileName: "broken.xlsx", Content: []byte("not a workbook")})
		var failure *ingestion.ParseFailure
		assert.True(t, errors.As(err, &failure))
	})

	t.Run("相同文件正在导入", func(t *testing.T) {
		svc := importer.NewImportService(fx.tdb.Store(), importer.NewBatchImporter(fx.tdb.Store(), 1000), importer.WithLocker(busyLocker{}))
		_, err := svc.Ingest(actorCtx(), upload(t, nil))
		assert.ErrorIs(t, err, importer.ErrImportInProgress)
	})
}

func TestImportService_PartialCommit(t *testing.T) {
	fx := newImportFixture(t)
	store := &failingStore{GormStore: fx.tdb.Store(), allow: 1}
	publisher := &recordingPublisher{}
	svc := importer.NewImportService(store, importer.NewBatchImporter(store, 2), importer.WithPublisher(publisher))

	rows := make([][]interface{}, 0, 5)
	for _, sn := range []string{"PV-SD-2025-001", "PV-SD-2025-002", "PV-SD-2025-003", "PV-SD-2025-004", "PV-SD-2025-005"} {
		rows = append(rows, []interface{}{"2025-01-15", sn, "PV-1500", "耐压测试", "", "PASS", "", ""})
	}

	report, err := svc.Ingest(actorCtx(), upload(t, rows))
	require.Error(t, err)
	require.Len(t, publisher.events, 1, "部分写入也通知已提交的记录")
	assert.Equal(t, 2, publisher.events[0].Record["count"])

	var failure *importer.ImportFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, 2, failure.Committed)

	require.NotNil(t, report)
	assert.Equal(t, 5, report.ValidRows)
	assert.Equal(t, 2, report.InsertedCount, "已提交的分块不回滚")
	assert.NotEmpty(t, report.Failure)

	var count int64
	fx.tdb.DB.Model(&models.TestRecord{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestImportService_Preview(t *testing.T) {
	fx := newImportFixture(t)
	svc := importer.NewImportService(fx.tdb.Store(), importer.NewBatchImporter(fx.tdb.Store(), 1000))

	preview, err := svc.Preview(actorCtx(), upload(t, [][]interface{}{
		{"2025-01-15", "PV-SD-2025-001", "PV-1500", "耐压测试", "", "PASS", "", ""},
		{"2025/01/15", "PV-SD-2025-002", "PV-1500", "耐压测试", "", "PASS", "", ""},
	}))
	require.NoError(t, err)
	assert.Len(t, preview.Data, 1)
	assert.Len(t, preview.Errors, 1)

	var count int64
	fx.tdb.DB.Model(&models.TestRecord{}).Count(&count)
	assert.Equal(t, int64(0), count, "预览不写入数据")
}

func TestImportService_OneEventPerImport(t *testing.T) {
	fx := newImportFixture(t)
	publisher := &recordingPublisher{}
	svc := importer.NewImportService(fx.tdb.Store(), importer.NewBatchImporter(fx.tdb.Store(), 100), importer.WithPublisher(publisher))

	rows := make([][]interface{}, 0, 300)
	for i := 0; i < 300; i++ {
		rows = append(rows, []interface{}{"2025-01-15", fmt.Sprintf("PV-SD-2025-%03d", i), "PV-1500", "耐压测试", "", "PASS", "", ""})
	}

	report, err := svc.Ingest(actorCtx(), upload(t, rows))
	require.NoError(t, err)
	assert.Equal(t, 300, report.InsertedCount)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, models.TableTestRecords, publisher.events[0].Table)
	assert.Equal(t, 300, publisher.events[0].Record["count"])
	assert.NotEmpty(t, publisher.events[0].RecordID, "无批次号时以文件摘要为主键")
	assert.Equal(t, publisher.events[0].Record["digest"], publisher.events[0].RecordID)

	// 全部被拒绝时不发布
	publisher.events = nil
	_, err = svc.Ingest(actorCtx(), upload(t, [][]interface{}{
		{"2025-02-30", "PV-SD-2025-999", "PV-1500", "耐压测试", "", "PASS", "", ""},
	}))
	require.NoError(t, err)
	assert.Empty(t, publisher.events)
}
