package validation

import (
	"mime"
	"path/filepath"
	"strings"
)

// DefaultMaxFileSizeMB 上传文件默认大小上限
const DefaultMaxFileSizeMB = 50

var allowedContentTypes = map[string]bool{
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

var allowedExtensions = map[string]bool{
	".xls":  true,
	".xlsx": true,
}

// ValidateFileType 扩展名或 MIME 类型任一符合即可
func ValidateFileType(fileName, contentType string) bool {
	if allowedExtensions[strings.ToLower(filepath.Ext(fileName))] {
		return true
	}
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return allowedContentTypes[mediaType]
}

// ValidateFileSize 文件大小校验，maxSizeMB<=0 时使用默认上限
func ValidateFileSize(size int64, maxSizeMB int) bool {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxFileSizeMB
	}
	return size <= int64(maxSizeMB)*1024*1024
}
