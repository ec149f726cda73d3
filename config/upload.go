package config

type UploadConfig struct {
	AllowedMimeTypes []string
	MaxSizeMB        int64
}

var UploadContexts = map[string]UploadConfig{
	// .xlsx - это zip-архив, DetectContentType видит его как application/zip
	"catalog_workbook": {
		AllowedMimeTypes: []string{
			"application/zip",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		},
		MaxSizeMB: 20,
	},
}
