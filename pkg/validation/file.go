package validation

import (
	"fmt"
	"io"
	"net/http"
	"slices"

	"reservation-system/config"
)

// ValidateFile проверяет размер и MIME-тип загружаемого файла.
// contextName - ключ из config.UploadContexts (например, "catalog_workbook").
func ValidateFile(size int64, file io.ReadSeeker, contextName string) error {
	rules, ok := config.UploadContexts[contextName]
	if !ok {
		return fmt.Errorf("внутренняя ошибка: неизвестный контекст загрузки '%s'", contextName)
	}

	if rules.MaxSizeMB > 0 {
		maxSizeBytes := rules.MaxSizeMB * 1024 * 1024
		if size > maxSizeBytes {
			return fmt.Errorf("размер файла (%.2f MB) превышает лимит в %d MB", float64(size)/1024/1024, rules.MaxSizeMB)
		}
	}

	// Тип определяем по содержимому (первые 512 байт), а не по расширению.
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return fmt.Errorf("ошибка чтения файла")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("ошибка обработки файла")
	}

	mimeType := http.DetectContentType(buffer[:n])
	if !slices.Contains(rules.AllowedMimeTypes, mimeType) {
		return fmt.Errorf("недопустимый формат файла: %s", mimeType)
	}
	return nil
}
