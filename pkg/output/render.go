package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/ilkoid/poncho-fmp/pkg/fmp"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/tidwall/pretty"
)

// NoDataText — индикатор отсутствия данных в текстовом выводе.
const NoDataText = "No data returned"

const ellipsis = "…"

// Options — параметры рендеринга.
type Options struct {
	Precision    Precision // NoPrecision — не округлять
	Fields       []string  // Колонки compact/markdown/tsv; пусто — все поля
	MaxRows      int       // Больше строк — превью; 0 — без ограничения
	PreviewRows  int       // Строк в превью
	MaxCellWidth int       // 0 — не обрезать ячейки
}

// DefaultOptions возвращает опции без округления и ограничений.
func DefaultOptions() Options {
	return Options{Precision: NoPrecision}
}

// Output — результат рендеринга.
//
// Для json/compact заполнено Data, для markdown/tsv и для отсутствия
// данных — Text. Notice — строка перед телом (превью большого набора).
type Output struct {
	Mode   Mode
	Data   any
	Text   string
	Notice string
	Total  int // Записей в ответе
	Shown  int // Записей в выводе
}

// String возвращает финальный текст в любом режиме.
func (o Output) String() string {
	body := o.Text
	if body == "" {
		body = o.encodeData()
	}
	if o.Notice != "" {
		return o.Notice + "\n" + body
	}
	return body
}

func (o Output) encodeData() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(o.Data); err != nil {
		return fmt.Sprint(o.Data)
	}
	if o.Mode == ModeJSON {
		return strings.TrimRight(string(pretty.PrettyOptions(buf.Bytes(), &pretty.Options{
			Width:  120,
			Indent: "  ",
		})), "\n")
	}
	return strings.TrimRight(buf.String(), "\n")
}

// NoDataMessage возвращает индикатор отсутствия данных.
// Для отказа добавляет класс ошибки и человекочитаемое описание.
func NoDataMessage(err *fmp.FetchError) string {
	if err == nil {
		return NoDataText
	}
	msg := err.Type.HumanMessage()
	if err.Message != "" {
		msg = err.Message
	}
	return fmt.Sprintf("%s (%s: %s)", NoDataText, err.Type, msg)
}

// Render применяет точность, затем выбранный режим.
func Render(res fmp.Result, mode Mode, opts Options) Output {
	out := Output{Mode: mode}

	switch res.Kind {
	case fmp.KindFailure:
		out.Text = NoDataMessage(res.Err)
		return out

	case fmp.KindEmpty:
		out.Text = NoDataText
		out.Data = fmp.RecordSet{}
		if mode == ModeCompact {
			out.Data = CompressToTuples(fmp.RecordSet{}, true, opts.Fields)
		}
		return out

	case fmp.KindValue:
		out.Total, out.Shown = 1, 1
		out.Data = res.Value
		if mode.IsText() {
			out.Text = Stringify(res.Value)
		}
		return out

	case fmp.KindRecord:
		out.Total, out.Shown = 1, 1
		record := ApplyPrecisionRecord(res.Record, opts.Precision)
		if mode == ModeJSON {
			out.Data = record
			return out
		}
		return renderSet(out, fmp.RecordSet{record}, opts)
	}

	records := res.Records
	out.Total = len(records)
	if opts.MaxRows > 0 && len(records) > opts.MaxRows {
		shown := opts.PreviewRows
		if shown <= 0 || shown > len(records) {
			shown = min(len(records), opts.MaxRows)
		}
		out.Notice = fmt.Sprintf("Returned %d items. First %d items:", len(records), shown)
		records = records[:shown]
	}
	out.Shown = len(records)

	records = ApplyPrecision(records, opts.Precision)
	if mode == ModeJSON {
		out.Data = records
		return out
	}
	return renderSet(out, records, opts)
}

func renderSet(out Output, records fmp.RecordSet, opts Options) Output {
	switch out.Mode {
	case ModeCompact:
		out.Data = CompressToTuples(records, true, opts.Fields)
	case ModeMarkdown:
		out.Text = Markdown(records, opts.Fields, opts.MaxCellWidth)
	case ModeTSV:
		out.Text = TSV(records, opts.Fields, opts.MaxCellWidth)
	default:
		out.Data = records
	}
	return out
}

// Markdown рендерит записи markdown таблицей.
func Markdown(records fmp.RecordSet, fields []string, maxCellWidth int) string {
	tuples := textTuples(records, fields, maxCellWidth)
	if len(tuples) == 0 || len(tuples[0]) == 0 {
		return NoDataText
	}
	for _, cells := range tuples {
		for i, cell := range cells {
			cells[i] = escapeMarkdown(cell)
		}
	}

	t := table.New().
		Border(lipgloss.MarkdownBorder()).
		BorderTop(false).
		BorderBottom(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(tuples[0]...).
		Rows(tuples[1:]...)

	return t.String()
}

// TSV рендерит записи как значения через табуляцию с заголовком.
func TSV(records fmp.RecordSet, fields []string, maxCellWidth int) string {
	tuples := textTuples(records, fields, maxCellWidth)
	if len(tuples) == 0 || len(tuples[0]) == 0 {
		return NoDataText
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'
	if err := w.WriteAll(tuples); err != nil {
		return NoDataText
	}
	return strings.TrimRight(buf.String(), "\n")
}

// textTuples строит заголовок и строки с обрезкой длинных ячеек.
func textTuples(records fmp.RecordSet, fields []string, maxCellWidth int) [][]string {
	if len(records) == 0 {
		return nil
	}
	tuples := CompressToTuples(records, true, fields).Tuples
	if maxCellWidth <= 0 {
		return tuples
	}
	for _, cells := range tuples[1:] {
		for i, cell := range cells {
			cells[i] = truncateCell(cell, maxCellWidth)
		}
	}
	return tuples
}

func truncateCell(s string, width int) string {
	if ansi.PrintableRuneWidth(s) <= width {
		return s
	}
	return truncate.StringWithTail(s, uint(width), ellipsis)
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
