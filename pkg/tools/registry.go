// Реестр для хранения и поиска инструментов.
package tools

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — потокобезопасное хранилище инструментов.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry создает новый пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// validateToolDefinition проверяет, что схема аргументов годится для Function Calling API.
//
// Валидирует:
//   - Name не пустой
//   - Parameters.type == "object"
//   - Parameters.properties (если есть) — объект
//   - Parameters.required (если есть) — строки, каждая из которых есть в properties
func validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Parameters == nil {
		return fmt.Errorf("tool '%s': parameters cannot be nil", def.Name)
	}

	typeStr, ok := def.Parameters["type"].(string)
	if !ok {
		return fmt.Errorf("tool '%s': parameters must have string 'type' field", def.Name)
	}
	if typeStr != "object" {
		return fmt.Errorf("tool '%s': parameters.type must be 'object', got: '%s'", def.Name, typeStr)
	}

	var props map[string]any
	if raw, exists := def.Parameters["properties"]; exists {
		props, ok = raw.(map[string]any)
		if !ok {
			return fmt.Errorf("tool '%s': parameters.properties must be an object, got: %T", def.Name, raw)
		}
	}

	raw, exists := def.Parameters["required"]
	if !exists {
		return nil
	}

	var required []string
	switch v := raw.(type) {
	case []string:
		required = v
	case []any:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("tool '%s': parameters.required[%d] must be a string, got: %T", def.Name, i, item)
			}
			required = append(required, s)
		}
	default:
		return fmt.Errorf("tool '%s': parameters.required must be an array", def.Name)
	}

	for _, name := range required {
		if _, ok := props[name]; !ok {
			return fmt.Errorf("tool '%s': required parameter '%s' is not in properties", def.Name, name)
		}
	}
	return nil
}

// Register добавляет инструмент в реестр с валидацией схемы.
//
// Повторная регистрация имени — ошибка: два endpoint с одним именем
// в конфигурации почти наверняка опечатка.
func (r *Registry) Register(tool Tool) error {
	def := tool.Definition()
	if err := validateToolDefinition(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool '%s' is already registered", def.Name)
	}
	r.tools[def.Name] = tool
	return nil
}

// Get ищет инструмент по имени.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool '%s' not found", name)
	}
	return tool, nil
}

// Len возвращает количество зарегистрированных инструментов.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names возвращает имена инструментов в алфавитном порядке.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetDefinitions возвращает определения, отсортированные по имени.
func (r *Registry) GetDefinitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs
}
