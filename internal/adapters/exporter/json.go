package exporter

import (
	"encoding/json"
	"fmt"
	"io"

	"chat-insights/internal/domain"
	"chat-insights/internal/ports"
)

// JSONExporter пишет отчет в формате JSON.
type JSONExporter struct {
	w         io.Writer
	anonymize bool
}

// NewJSONExporter создает новый экземпляр JSONExporter.
func NewJSONExporter(w io.Writer, anonymize bool) ports.Exporter {
	return &JSONExporter{w: w, anonymize: anonymize}
}

// Export кодирует отчет с отступами.
func (e *JSONExporter) Export(report *domain.Report) error {
	enc := json.NewEncoder(e.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewReportDTO(report, e.anonymize)); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
