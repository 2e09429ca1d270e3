package ingest

import (
	"strings"

	"github.com/meterflow/meterflow-api/internal/models"
)

// DetectKind classifies an upload as JSON or CSV from its file name and
// declared content type. No content sniffing happens here: a mislabeled file
// is handed to the wrong parser and yields zero or garbage records.
func DetectKind(fileName, contentType string) models.SourceKind {
	if strings.HasSuffix(strings.ToLower(fileName), ".json") {
		return models.SourceKindJSON
	}
	if mediaType(contentType) == "application/json" {
		return models.SourceKindJSON
	}
	return models.SourceKindCSV
}

func mediaType(contentType string) string {
	if idx := strings.IndexByte(contentType, ';'); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
