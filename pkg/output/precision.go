package output

import (
	"encoding/json"
	"strconv"

	"github.com/ilkoid/poncho-fmp/pkg/fmp"
	"github.com/shopspring/decimal"
)

// ApplyPrecision округляет числовые поля каждой записи.
//
// Число округляется до min(текущих знаков, p) с округлением half-up
// и заменяется строкой; ноль знаков даёт целое без ".0".
// Строки, bool, null и вложенный JSON не трогаются. Вход не мутируется.
func ApplyPrecision(rs fmp.RecordSet, p Precision) fmp.RecordSet {
	if p < 0 || rs == nil {
		return rs
	}
	out := make(fmp.RecordSet, len(rs))
	for i, r := range rs {
		out[i] = ApplyPrecisionRecord(r, p)
	}
	return out
}

// ApplyPrecisionRecord — ApplyPrecision для одной записи.
func ApplyPrecisionRecord(r fmp.Record, p Precision) fmp.Record {
	if p < 0 {
		return r
	}
	var out fmp.Record
	for _, k := range r.Keys() {
		v, _ := r.Get(k)
		out.Set(k, RoundValue(v, p))
	}
	return out
}

// RoundValue округляет одно значение. Нечисловые значения возвращаются как есть.
func RoundValue(v any, p Precision) any {
	if p < 0 {
		return v
	}

	var literal string
	switch n := v.(type) {
	case json.Number:
		literal = string(n)
	case float64:
		literal = strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		literal = strconv.FormatFloat(float64(n), 'f', -1, 32)
	case int:
		return strconv.Itoa(n)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case uint:
		return strconv.FormatUint(uint64(n), 10)
	case uint32:
		return strconv.FormatUint(uint64(n), 10)
	case uint64:
		return strconv.FormatUint(n, 10)
	default:
		return v
	}

	d, err := decimal.NewFromString(literal)
	if err != nil {
		// NaN, Inf и прочие нечисла
		return v
	}

	places := int32(0)
	if exp := d.Exponent(); exp < 0 {
		places = -exp
	}
	if int32(p) < places {
		places = int32(p)
	}
	return d.StringFixed(places)
}
