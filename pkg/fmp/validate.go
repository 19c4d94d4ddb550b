package fmp

import (
	"fmt"
	"sort"
)

// Допустимые значения enum параметров upstream API.
var (
	Periods = []string{"annual", "quarter"}

	TimeDeltas = []string{"1min", "5min", "15min", "30min", "1hour", "4hour"}

	// TechnicalTimeDeltas — интервалы технических индикаторов (плюс daily).
	TechnicalTimeDeltas = []string{"1min", "5min", "15min", "30min", "1hour", "4hour", "daily"}

	SeriesTypes = []string{"line"}

	StatisticsTypes = []string{
		"SMA", "EMA", "WMA", "DEMA", "TEMA", "williams", "RSI", "ADX", "standardDeviation",
	}

	Sectors = []string{
		"Consumer Cyclical", "Energy", "Technology", "Industrials", "Financial Services",
		"Basic Materials", "Communication Services", "Consumer Defensive", "Healthcare",
		"Real Estate", "Utilities", "Industrial Goods", "Financial", "Services", "Conglomerates",
	}

	Industries = []string{
		"Autos", "Banks", "Banks Diversified", "Software", "Banks Regional",
		"Beverages Alcoholic", "Beverages Brewers", "Beverages Non-Alcoholic",
	}
)

// ValidationError — ошибка входных данных вызывающей стороны.
//
// Единственный класс ошибок, который возвращается как error, а не как Result.
type ValidationError struct {
	Param string
	Value string
	Valid []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s value: '%s'. Valid options: %v", e.Param, e.Value, e.Valid)
}

// ValidateFunc проверяет одно значение параметра.
type ValidateFunc func(value string) error

func oneOf(param string, valid []string) ValidateFunc {
	return func(value string) error {
		for _, v := range valid {
			if v == value {
				return nil
			}
		}
		return &ValidationError{Param: param, Value: value, Valid: valid}
	}
}

var (
	ValidatePeriod             = oneOf("period", Periods)
	ValidateTimeDelta          = oneOf("time_delta", TimeDeltas)
	ValidateTechnicalTimeDelta = oneOf("time_delta", TechnicalTimeDeltas)
	ValidateSeriesType         = oneOf("series_type", SeriesTypes)
	ValidateStatisticsType     = oneOf("statistics_type", StatisticsTypes)
	ValidateSector             = oneOf("sector", Sectors)
	ValidateIndustry           = oneOf("industry", Industries)
)

var validators = map[string]ValidateFunc{
	"period":               ValidatePeriod,
	"time_delta":           ValidateTimeDelta,
	"technical_time_delta": ValidateTechnicalTimeDelta,
	"series_type":          ValidateSeriesType,
	"statistics_type":      ValidateStatisticsType,
	"sector":               ValidateSector,
	"industry":             ValidateIndustry,
}

// Validator возвращает валидатор по имени из конфигурации tool.
func Validator(name string) (ValidateFunc, bool) {
	fn, ok := validators[name]
	return fn, ok
}

// ValidatorNames возвращает имена валидаторов в алфавитном порядке.
func ValidatorNames() []string {
	names := make([]string, 0, len(validators))
	for name := range validators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidValues возвращает допустимые значения валидатора для enum в JSON Schema.
func ValidValues(name string) []string {
	switch name {
	case "period":
		return Periods
	case "time_delta":
		return TimeDeltas
	case "technical_time_delta":
		return TechnicalTimeDeltas
	case "series_type":
		return SeriesTypes
	case "statistics_type":
		return StatisticsTypes
	case "sector":
		return Sectors
	case "industry":
		return Industries
	default:
		return nil
	}
}
