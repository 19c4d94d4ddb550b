package fmp

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Record — одна запись ответа API.
//
// Значения полей: string, json.Number (исходный литерал числа), bool, nil
// или json.RawMessage для вложенных объектов и массивов.
// Порядок ключей — порядок первого появления в ответе.
type Record struct {
	keys   []string
	values map[string]any
}

// RecordSet — упорядоченный набор записей одного ответа.
type RecordSet []Record

// NewRecord создает запись из пар ключ-значение.
//
// Пример: NewRecord("date", "2024-01-01", "value", json.Number("3.14")).
// Нечетный хвост и нестроковые ключи игнорируются.
func NewRecord(kv ...any) Record {
	var r Record
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		r.Set(key, kv[i+1])
	}
	return r
}

// Set задаёт значение поля. Новый ключ добавляется в конец.
func (r *Record) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get возвращает значение поля и признак его наличия.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys возвращает копию ключей в порядке появления.
func (r Record) Keys() []string {
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// Len возвращает количество полей.
func (r Record) Len() int {
	return len(r.keys)
}

// Map возвращает копию записи как обычную map.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		m[k] = r.values[k]
	}
	return m
}

// MarshalJSON сериализует запись с сохранением порядка ключей.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeValue(&buf, r.values[k]); err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// encodeValue пишет JSON без HTML экранирования ("S&P 500" остаётся как есть).
func encodeValue(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// UnmarshalJSON разбирает JSON объект, сохраняя порядок ключей и литералы чисел.
func (r *Record) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("record: invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return fmt.Errorf("record: expected json object, got %s", root.Type)
	}
	*r = recordFromJSON(root)
	return nil
}

// recordFromJSON строит Record из gjson объекта.
func recordFromJSON(obj gjson.Result) Record {
	var r Record
	obj.ForEach(func(key, value gjson.Result) bool {
		r.Set(key.String(), valueFromJSON(value))
		return true
	})
	return r
}

// valueFromJSON превращает gjson значение в Value.
//
// Числа остаются литералами: от количества знаков после точки
// зависит округление в пакете output.
func valueFromJSON(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.String:
		return v.String()
	default:
		return json.RawMessage(v.Raw)
	}
}
