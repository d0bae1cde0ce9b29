/*
 * @module service/format/format
 * @description 展示格式化工具，提供日期、数字、百分比、文件大小及各类枚举的中文展示转换
 * @architecture 工具层 - 无状态纯函数
 * @documentReference dev_docs/requirements.md
 * @stateFlow 原始值 -> 格式化字符串
 * @rules 数字按 zh-CN 区域习惯分组，未知枚举值原样返回
 * @dependencies golang.org/x/text/message, golang.org/x/text/number, github.com/spf13/cast
 * @refs api/controllers, service/statistics
 */

package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// 常用日期格式
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
	ChartLayout    = "01-02"
)

var printer = message.NewPrinter(language.SimplifiedChinese)

// FormatDate 格式化日期，支持 time.Time 与可解析的日期字符串
// 无法解析时返回原值的字符串形式
func FormatDate(value interface{}, layout string) string {
	if layout == "" {
		layout = DateLayout
	}
	t, err := cast.ToTimeE(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return t.Format(layout)
}

// FormatDateTime 格式化为 YYYY-MM-DD HH:mm:ss
func FormatDateTime(value interface{}) string {
	return FormatDate(value, DateTimeLayout)
}

// FormatNumber 按中文区域习惯格式化数字，固定保留 decimals 位小数
func FormatNumber(v float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	return printer.Sprint(number.Decimal(v,
		number.MinFractionDigits(decimals),
		number.MaxFractionDigits(decimals),
	))
}

// FormatPercent 格式化百分比，value 已经是百分数（95.7 表示 95.7%）
func FormatPercent(v float64, decimals int) string {
	return FormatNumber(v, decimals) + "%"
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize 以1024为进制格式化文件大小，最多保留两位小数并去掉多余的0
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// FormatDeviceSN 设备序列号统一大写
func FormatDeviceSN(sn string) string {
	return strings.ToUpper(sn)
}

// FormatTestResult 测试结果中文展示
func FormatTestResult(result string) string {
	if result == "PASS" {
		return "合格"
	}
	return "不合格"
}

var severityLabels = map[string]string{
	"low":    "低",
	"medium": "中",
	"high":   "高",
}

var statusLabels = map[string]string{
	"in_progress": "进行中",
	"completed":   "已完成",
	"pending":     "待处理",
	"cancelled":   "已取消",
}

var roleLabels = map[string]string{
	"admin":    "管理员",
	"operator": "操作员",
	"viewer":   "查看者",
}

// FormatSeverity 严重程度中文展示
func FormatSeverity(severity string) string {
	return lookup(severityLabels, severity)
}

// FormatStatus 状态中文展示
func FormatStatus(status string) string {
	return lookup(statusLabels, status)
}

// FormatRole 角色中文展示
func FormatRole(role string) string {
	return lookup(roleLabels, role)
}

func lookup(labels map[string]string, key string) string {
	if label, ok := labels[key]; ok {
		return label
	}
	return key
}

// FormatDuration 以秒为单位格式化耗时，用于导入日志
func FormatDuration(d time.Duration) string {
	return FormatNumber(d.Seconds(), 2) + "s"
}
