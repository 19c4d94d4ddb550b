// Package openai адаптирует инструменты к формату function calling OpenAI-совместимых API.
//
// Позволяет подключить FMP инструменты к любому чат-клиенту на go-openai
// без MCP: ConvertTools для запроса, ExecuteToolCall для ответа модели.
package openai

import (
	"context"
	"fmt"

	"github.com/ilkoid/poncho-fmp/pkg/tools"
	openai "github.com/sashabaranov/go-openai"
)

// ConvertTools конвертирует определения инструментов в формат OpenAI.
func ConvertTools(defs []tools.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(defs))

	for i, def := range defs {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}

	return result
}

// ExecuteToolCall выполняет вызов инструмента из ответа модели.
//
// Всегда возвращает сообщение с ролью tool: ошибка инструмента
// передаётся модели текстом, чтобы она могла исправить аргументы.
func ExecuteToolCall(ctx context.Context, registry *tools.Registry, call openai.ToolCall) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		ToolCallID: call.ID,
		Name:       call.Function.Name,
	}

	tool, err := registry.Get(call.Function.Name)
	if err != nil {
		msg.Content = fmt.Sprintf("Error: %v", err)
		return msg
	}

	result, err := tool.Execute(ctx, call.Function.Arguments)
	if err != nil {
		msg.Content = fmt.Sprintf("Error calling %s: %v", call.Function.Name, err)
		return msg
	}

	msg.Content = result
	return msg
}
