package output

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ilkoid/poncho-fmp/pkg/fmp"
)

// Compressed — результат CompressToTuples.
//
// При Condensed=false заполнено Records (как пришло, nil остаётся nil),
// иначе Tuples: первая строка — заголовок, далее по строке на запись.
type Compressed struct {
	Condensed bool
	Records   fmp.RecordSet
	Tuples    [][]string
}

// MarshalJSON сериализует активную форму.
func (c Compressed) MarshalJSON() ([]byte, error) {
	if c.Condensed {
		return json.Marshal(c.Tuples)
	}
	return json.Marshal(c.Records)
}

// CompressToTuples кодирует записи в заголовок + кортежи строк.
//
// Колонки — fields как есть, а если fields пуст, то объединение ключей
// всех записей в порядке первого появления. Отсутствующее поле даёт "".
// Пустой набор даёт один пустой кортеж.
func CompressToTuples(records fmp.RecordSet, condensed bool, fields []string) Compressed {
	if !condensed {
		return Compressed{Records: records}
	}
	if len(records) == 0 {
		return Compressed{Condensed: true, Tuples: [][]string{{}}}
	}

	columns := fields
	if len(columns) == 0 {
		columns = Columns(records)
	}

	tuples := make([][]string, 0, len(records)+1)
	header := make([]string, len(columns))
	copy(header, columns)
	tuples = append(tuples, header)
	for _, r := range records {
		tuples = append(tuples, row(r, columns))
	}
	return Compressed{Condensed: true, Tuples: tuples}
}

// Columns возвращает объединение ключей записей в порядке первого появления.
func Columns(records fmp.RecordSet) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, r := range records {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	return columns
}

func row(r fmp.Record, columns []string) []string {
	cells := make([]string, len(columns))
	for i, col := range columns {
		if v, ok := r.Get(col); ok {
			cells[i] = Stringify(v)
		}
	}
	return cells
}

// Stringify превращает значение поля в строку ячейки.
//
// Числа из ответа сохраняют исходный литерал, null даёт пустую строку.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case json.RawMessage:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}
