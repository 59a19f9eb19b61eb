package exporter

import (
	"bytes"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"chat-insights/internal/domain"
	"chat-insights/internal/ports"
)

// Названия листов книги.
const (
	sheetSummary  = "Сводка"
	sheetUsers    = "Участники"
	sheetEmotions = "Эмоции"
	sheetActivity = "Активность"
	sheetTop      = "Эмодзи и слова"
)

// Workbook строит книгу Excel по отчету и возвращает ее содержимое.
func Workbook(d *ReportDTO) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetUsers, sheetEmotions, sheetActivity, sheetTop} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	w := &sheetWriter{f: f}
	writeSummary(w, d)
	writeUsers(w, d)
	writeEmotions(w, d)
	writeActivity(w, d)
	writeTop(w, d)
	if w.err != nil {
		return nil, w.err
	}

	f.SetActiveSheet(0)
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &buf, nil
}

// sheetWriter запоминает первую ошибку записи.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) row(sheet string, r int, values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, r)
	if err == nil {
		err = w.f.SetSheetRow(sheet, cell, &values)
	}
	if err != nil {
		w.err = fmt.Errorf("write %s row %d: %w", sheet, r, err)
	}
}

func writeSummary(w *sheetWriter, d *ReportDTO) {
	w.row(sheetSummary, 1, "Показатель", "Значение")
	rows := [][]any{
		{"Сообщений", d.Metadata.TotalMessages},
		{"Участников", len(d.Metadata.Users)},
		{"Начало", d.Metadata.StartDate},
		{"Конец", d.Metadata.EndDate},
		{"Медиа", d.Metadata.MediaCount},
		{"Сообщений в день", d.MessagesPerDay},
		{"Средняя тональность", d.OverallSentimentAvg},
		{"Общие дни подряд", d.LongestStreak.Days},
		{"Оценено сообщений", d.MessagesAnalyzed},
	}
	if d.LongestStreak.Days > 0 {
		rows = append(rows,
			[]any{"Серия с", *d.LongestStreak.StartDate},
			[]any{"Серия по", *d.LongestStreak.EndDate},
		)
	}
	for i, r := range rows {
		w.row(sheetSummary, i+2, r...)
	}
	r := len(rows) + 3
	w.row(sheetSummary, r, "Тип медиа", "Количество")
	for _, t := range []domain.MediaType{
		domain.MediaPhoto, domain.MediaVideo, domain.MediaAudio, domain.MediaGIF,
		domain.MediaDocument, domain.MediaSticker, domain.MediaOther, domain.MediaUnknown,
	} {
		if n, ok := d.Metadata.MediaByType[string(t)]; ok {
			r++
			w.row(sheetSummary, r, string(t), n)
		}
	}
}

func writeUsers(w *sheetWriter, d *ReportDTO) {
	w.row(sheetUsers, 1, "Участник", "Сообщений", "Средняя длина", "Медиа")
	for i, u := range d.Metadata.Users {
		w.row(sheetUsers, i+2, u, d.MessagesPerUser[u], d.AvgMessageLengthPerUser[u], d.Metadata.MediaByUser[u])
	}
}

func writeEmotions(w *sheetWriter, d *ReportDTO) {
	w.row(sheetEmotions, 1, "Область", "Эмоция", "Среднее", "Максимум", "Частота", "Процент", "Сильных")
	r := 2
	write := func(scope string, dist map[string]EmotionStatsDTO) {
		for _, label := range domain.Emotions {
			s := dist[label]
			w.row(sheetEmotions, r, scope, label, s.Avg, s.Max, s.Frequency, s.Percentage, s.StrongCount)
			r++
		}
	}
	write("все", d.OverallEmotionDistribution)
	for _, u := range d.Metadata.Users {
		if dist, ok := d.UserEmotionStats[u]; ok {
			write(u, dist)
		}
	}
}

func writeActivity(w *sheetWriter, d *ReportDTO) {
	w.row(sheetActivity, 1, "День недели", "Всего", "В среднем", "Дней в периоде")
	for i, wd := range WeekdayOrder {
		s := d.WeekdayDistribution[wd.String()]
		w.row(sheetActivity, i+2, wd.String(), s.TotalMessages, s.Average, s.DaysInPeriod)
	}
	base := len(WeekdayOrder) + 3
	w.row(sheetActivity, base, "Часы", "Сообщений")
	for i, h := range domain.HourCategories {
		w.row(sheetActivity, base+i+1, string(h), d.HourlyDistribution[string(h)])
	}
}

func writeTop(w *sheetWriter, d *ReportDTO) {
	w.row(sheetTop, 1, "Участник", "Вид", "Место", "Значение", "Количество")
	r := 2
	for _, u := range d.Metadata.Users {
		for i, e := range d.TopEmojisPerUser[u] {
			w.row(sheetTop, r, u, "эмодзи", i+1, e.Emoji, e.Count)
			r++
		}
		for i, wc := range d.TopWordsPerUser[u] {
			w.row(sheetTop, r, u, "слово", i+1, wc.Word, wc.Count)
			r++
		}
	}
}

// ExcelExporter сохраняет отчет в файл .xlsx.
type ExcelExporter struct {
	path      string
	anonymize bool
}

// NewExcelExporter создает новый экземпляр ExcelExporter.
func NewExcelExporter(path string, anonymize bool) ports.Exporter {
	return &ExcelExporter{path: path, anonymize: anonymize}
}

// Export записывает книгу в файл.
func (e *ExcelExporter) Export(report *domain.Report) error {
	buf, err := Workbook(NewReportDTO(report, e.anonymize))
	if err != nil {
		return err
	}
	if err := os.WriteFile(e.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("save workbook %s: %w", e.path, err)
	}
	return nil
}
