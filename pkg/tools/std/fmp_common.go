// Package std содержит инструменты для Financial Modeling Prep API.
//
// Каждый инструмент описывается в config.yaml (секция tools) и оборачивает
// один endpoint: поколение API, путь с плейсхолдерами и список параметров.
package std

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ilkoid/poncho-fmp/pkg/config"
	"github.com/ilkoid/poncho-fmp/pkg/fmp"
	"github.com/ilkoid/poncho-fmp/pkg/output"
)

// ToolPrefix — префикс имён инструментов.
const ToolPrefix = "fmp_"

// Fetcher выполняет запрос к FMP API. *fmp.Client реализует этот интерфейс.
type Fetcher interface {
	Fetch(ctx context.Context, gen fmp.Generation, path string, params url.Values) fmp.Result
}

// applyFMPDefaults применяет дефолтные значения из fmp и output секций config.
//
// Параметры:
//   - cfg: конфигурация конкретного tool из YAML
//   - outDefaults: дефолтные значения из output секции config.yaml
//
// Возвращает поколение API, режим вывода и опции рендеринга для использования в tool.
func applyFMPDefaults(cfg config.ToolConfig, outDefaults config.OutputConfig) (gen fmp.Generation, mode output.Mode, opts output.Options, err error) {
	outDefaults = outDefaults.GetDefaults()

	gen, err = fmp.ParseGeneration(cfg.Generation)
	if err != nil {
		return
	}

	mode, err = output.ParseMode(outDefaults.DefaultMode)
	if err != nil {
		return
	}

	opts = output.Options{
		Precision:    output.PrecisionFrom(outDefaults.Precision),
		MaxRows:      outDefaults.MaxRows,
		PreviewRows:  outDefaults.PreviewRows,
		MaxCellWidth: outDefaults.MaxCellWidth,
	}
	return
}

// toolName добавляет префикс fmp_, если его нет.
func toolName(name string) string {
	if strings.HasPrefix(name, ToolPrefix) {
		return name
	}
	return ToolPrefix + name
}

// formatArg приводит аргумент LLM к строке для path/query.
//
// LLM нередко присылает числа строками ("5") и списки строкой через запятую,
// поэтому обе формы принимаются.
func formatArg(p config.ParamConfig, raw any) (string, error) {
	switch p.Type {
	case "integer":
		s := scalarString(raw)
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			return "", fmt.Errorf("parameter '%s' must be an integer, got: %v", p.Name, raw)
		}
		return s, nil

	case "number":
		s := scalarString(raw)
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return "", fmt.Errorf("parameter '%s' must be a number, got: %v", p.Name, raw)
		}
		return s, nil

	case "boolean":
		s := scalarString(raw)
		b, err := strconv.ParseBool(s)
		if err != nil {
			return "", fmt.Errorf("parameter '%s' must be a boolean, got: %v", p.Name, raw)
		}
		return strconv.FormatBool(b), nil

	case "array":
		items, err := stringList(raw)
		if err != nil {
			return "", fmt.Errorf("parameter '%s': %w", p.Name, err)
		}
		return strings.Join(items, ","), nil

	default:
		switch v := raw.(type) {
		case string:
			return strings.TrimSpace(v), nil
		case json.Number, bool:
			return scalarString(v), nil
		default:
			return "", fmt.Errorf("parameter '%s' must be a string, got: %T", p.Name, raw)
		}
	}
}

func scalarString(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// stringList принимает JSON массив скаляров или строку через запятую.
func stringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		var items []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		return items, nil
	case []any:
		items := make([]string, 0, len(v))
		for i, item := range v {
			switch item.(type) {
			case string, json.Number, bool:
				if s := scalarString(item); s != "" {
					items = append(items, s)
				}
			default:
				return nil, fmt.Errorf("item %d must be a scalar, got: %T", i, item)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected an array, got: %T", raw)
	}
}

// escapePathList экранирует каждый элемент списка через запятую для path сегмента.
func escapePathList(value string) string {
	parts := strings.Split(value, ",")
	for i, part := range parts {
		parts[i] = url.PathEscape(strings.TrimSpace(part))
	}
	return strings.Join(parts, ",")
}
