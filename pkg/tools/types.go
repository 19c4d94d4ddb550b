// Контракт инструмента и его описание для function calling.

package tools

import "context"

// JSONSchema — JSON Schema объекта аргументов инструмента.
type JSONSchema map[string]any

// ToolDefinition описывает инструмент для LLM (Function Calling API format).
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

// Tool — контракт инструмента.
type Tool interface {
	// Definition возвращает описание инструмента для LLM.
	Definition() ToolDefinition

	// Execute выполняет вызов с сырыми аргументами от LLM.
	//
	// Ошибка возвращается только для некорректных аргументов.
	// Отказ upstream API — это текст "No data returned (...)", а не ошибка.
	Execute(ctx context.Context, argsJSON string) (string, error)
}
