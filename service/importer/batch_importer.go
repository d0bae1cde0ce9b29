/*
 * @module service/importer/batch_importer
 * @description 测试记录分块批量写入，按顺序逐块调用存储写入契约并汇总结果
 * @architecture 业务服务层 - 批量处理
 * @documentReference dev_docs/import_rules.md
 * @stateFlow 记录序列 -> 分块 -> 顺序写入 -> 累计写入数/失败信息
 * @rules 第N+1块在第N块返回后才提交；任一块失败立即停止并返回已提交数量，
 *        已提交的块不回滚；已发出的写入不可取消，取消只在块之间生效；不做重试
 * @dependencies pvsdm-service/service/storage
 * @refs service/importer/import_service.go
 */

package importer

import (
	"context"
	"fmt"
	"log/slog"

	"pvsdm-service/service/models"
	"pvsdm-service/service/monitoring"
	"pvsdm-service/service/storage"
)

// DefaultChunkSize 默认分块大小
const DefaultChunkSize = 1000

// ImportFailure 分块写入失败，Committed 为失败前已提交的记录数
type ImportFailure struct {
	Committed  int
	ChunkIndex int
	Cause      error
}

func (e *ImportFailure) Error() string {
	return fmt.Sprintf("第%d批数据写入失败，已写入%d条: %v", e.ChunkIndex+1, e.Committed, e.Cause)
}

func (e *ImportFailure) Unwrap() error {
	return e.Cause
}

// ImportResult 批量写入结果
type ImportResult struct {
	InsertedCount int                 `json:"inserted_count"`
	Inserted      []models.TestRecord `json:"-"`
	Chunks        int                 `json:"chunks"`
}

// BatchImporter 分块批量写入器
type BatchImporter struct {
	store     storage.Store
	chunkSize int
}

// NewBatchImporter 创建分块写入器，chunkSize<=0 时使用默认值
func NewBatchImporter(store storage.Store, chunkSize int) *BatchImporter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &BatchImporter{store: store, chunkSize: chunkSize}
}

// Import 顺序写入全部记录，失败时同时返回部分结果与 *ImportFailure
func (b *BatchImporter) Import(ctx context.Context, records []models.TestRecord) (*ImportResult, error) {
	result := &ImportResult{Inserted: make([]models.TestRecord, 0, len(records))}

	for start, index := 0, 0; start < len(records); start, index = start+b.chunkSize, index+1 {
		// 块之间响应取消
		if err := ctx.Err(); err != nil {
			return result, &ImportFailure{Committed: result.InsertedCount, ChunkIndex: index, Cause: err}
		}

		end := start + b.chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		// 已发出的写入作为整体完成或失败
		err := b.store.Insert(context.WithoutCancel(ctx), models.TableTestRecords, &chunk)
		monitoring.RecordChunk(len(chunk), err)
		if err != nil {
			slog.Error("分块写入失败",
				"chunk", index,
				"size", len(chunk),
				"committed", result.InsertedCount,
				"error", err)
			return result, &ImportFailure{Committed: result.InsertedCount, ChunkIndex: index, Cause: err}
		}

		result.Chunks++
		result.InsertedCount += len(chunk)
		result.Inserted = append(result.Inserted, chunk...)

		slog.Debug("分块写入完成",
			"chunk", index,
			"size", len(chunk),
			"committed", result.InsertedCount,
			"total", len(records))
	}

	return result, nil
}
