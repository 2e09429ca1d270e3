package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meterflow/meterflow-api/internal/models"
)

func TestDetectKind(t *testing.T) {
	cases := []struct {
		name        string
		fileName    string
		contentType string
		want        models.SourceKind
	}{
		{"json extension", "readings.json", "", models.SourceKindJSON},
		{"json extension uppercase", "READINGS.JSON", "text/csv", models.SourceKindJSON},
		{"json content type", "upload.bin", "application/json", models.SourceKindJSON},
		{"json content type with charset", "upload.bin", "application/json; charset=utf-8", models.SourceKindJSON},
		{"csv extension", "readings.csv", "", models.SourceKindCSV},
		{"unknown falls back to csv", "data.txt", "text/plain", models.SourceKindCSV},
		{"empty everything falls back to csv", "", "", models.SourceKindCSV},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectKind(tc.fileName, tc.contentType))
		})
	}
}
