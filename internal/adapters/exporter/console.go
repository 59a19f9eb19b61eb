package exporter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"chat-insights/internal/domain"
	"chat-insights/internal/ports"
)

// ConsoleExporter выводит сводку отчета текстовыми таблицами.
type ConsoleExporter struct {
	w         io.Writer
	anonymize bool
	topN      int
}

// NewConsoleExporter создает экспортер в w. Если w == nil, вывод идет в stdout.
func NewConsoleExporter(w io.Writer, anonymize bool) ports.Exporter {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleExporter{w: w, anonymize: anonymize, topN: 5}
}

// Export печатает таблицы сводки.
func (e *ConsoleExporter) Export(report *domain.Report) error {
	tables := SummaryTables(NewReportDTO(report, e.anonymize), e.topN)
	parts := make([]string, len(tables))
	for i, t := range tables {
		parts[i] = t.Render()
	}
	if _, err := fmt.Fprintln(e.w, strings.Join(parts, "\n")); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
