// Package output превращает ответы FMP API в форму, удобную для LLM:
// нормализация точности чисел, компактные кортежи и текстовые таблицы.
package output

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode — формат вывода.
type Mode int

const (
	// ModeJSON — структурированные данные как есть (после округления).
	ModeJSON Mode = iota
	// ModeCompact — заголовок + строки-кортежи строк.
	ModeCompact
	// ModeMarkdown — markdown таблица.
	ModeMarkdown
	// ModeTSV — значения через табуляцию с заголовком.
	ModeTSV
)

// Modes — имена режимов для enum в JSON Schema.
var Modes = []string{"json", "compact", "markdown", "tsv"}

func (m Mode) String() string {
	switch m {
	case ModeCompact:
		return "compact"
	case ModeMarkdown:
		return "markdown"
	case ModeTSV:
		return "tsv"
	default:
		return "json"
	}
}

// IsText сообщает, что режим выдаёт текст, а не структуру.
func (m Mode) IsText() bool {
	return m == ModeMarkdown || m == ModeTSV
}

// ParseMode разбирает имя режима. "raw" — синоним json.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "raw":
		return ModeJSON, nil
	case "compact", "condensed":
		return ModeCompact, nil
	case "markdown", "md":
		return ModeMarkdown, nil
	case "tsv":
		return ModeTSV, nil
	default:
		return 0, fmt.Errorf("invalid output value: '%s'. Valid options: %v", s, Modes)
	}
}

// Precision — верхняя граница знаков после точки.
type Precision int

// NoPrecision — не округлять.
const NoPrecision Precision = -1

// ParsePrecision разбирает precision из аргумента tool. Пустая строка — NoPrecision.
func ParsePrecision(s string) (Precision, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoPrecision, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return NoPrecision, fmt.Errorf("invalid precision value: '%s'. Expected a non-negative integer", s)
	}
	return Precision(n), nil
}

// PrecisionFrom превращает опциональное значение из конфигурации в Precision.
func PrecisionFrom(p *int) Precision {
	if p == nil || *p < 0 {
		return NoPrecision
	}
	return Precision(*p)
}
