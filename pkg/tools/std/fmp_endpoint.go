package std

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilkoid/poncho-fmp/pkg/config"
	"github.com/ilkoid/poncho-fmp/pkg/fmp"
	"github.com/ilkoid/poncho-fmp/pkg/output"
	"github.com/ilkoid/poncho-fmp/pkg/tools"
	"github.com/ilkoid/poncho-fmp/pkg/utils"
)

// EndpointTool — инструмент для одного endpoint FMP API, описанного в config.yaml.
//
// Ошибки аргументов (нет обязательного параметра, значение вне enum)
// возвращаются как error. Отказ upstream рендерится текстом "No data returned (...)".
type EndpointTool struct {
	client      Fetcher
	toolID      string
	description string
	gen         fmp.Generation
	path        string
	params      []endpointParam
	mode        output.Mode
	opts        output.Options
	timeout     time.Duration
}

type endpointParam struct {
	config.ParamConfig
	validate fmp.ValidateFunc
}

// NewEndpointTool создает инструмент из конфигурации.
//
// Параметры:
//   - name: ключ tool в секции tools (префикс fmp_ добавляется автоматически)
//   - client: клиент FMP API
//   - cfg: конфигурация tool из YAML
//   - outDefaults: output секция config.yaml
func NewEndpointTool(name string, client Fetcher, cfg config.ToolConfig, outDefaults config.OutputConfig) (*EndpointTool, error) {
	gen, mode, opts, err := applyFMPDefaults(cfg, outDefaults)
	if err != nil {
		return nil, fmt.Errorf("tool '%s': %w", name, err)
	}

	params := make([]endpointParam, 0, len(cfg.Params))
	for _, p := range cfg.Params {
		ep := endpointParam{ParamConfig: p}
		if ep.Type == "" {
			ep.Type = "string"
		}
		if ep.In == "" {
			ep.In = "query"
		}
		if p.Validator != "" {
			fn, ok := fmp.Validator(p.Validator)
			if !ok {
				return nil, fmt.Errorf("tool '%s': param '%s' has unknown validator '%s' (valid: %v)",
					name, p.Name, p.Validator, fmp.ValidatorNames())
			}
			ep.validate = fn
		}
		params = append(params, ep)
	}

	description := cfg.Description
	if description == "" {
		description = fmt.Sprintf("FMP %s endpoint /%s", gen, strings.TrimLeft(cfg.Path, "/"))
	}

	return &EndpointTool{
		client:      client,
		toolID:      toolName(name),
		description: description,
		gen:         gen,
		path:        cfg.Path,
		params:      params,
		mode:        mode,
		opts:        opts,
		timeout:     cfg.Timeout,
	}, nil
}

func (t *EndpointTool) Definition() tools.ToolDefinition {
	properties := make(map[string]interface{}, len(t.params)+3)
	required := []string{}

	for _, p := range t.params {
		prop := map[string]interface{}{
			"type": p.Type,
		}
		if p.Type == "array" {
			prop["items"] = map[string]interface{}{"type": "string"}
		}

		desc := p.Description
		if p.Default != "" {
			desc = strings.TrimSpace(desc + fmt.Sprintf(" (default: %s)", p.Default))
		}
		if desc != "" {
			prop["description"] = desc
		}

		if p.Validator != "" {
			enum := fmp.ValidValues(p.Validator)
			if p.Type == "array" {
				prop["items"] = map[string]interface{}{"type": "string", "enum": enum}
			} else {
				prop["enum"] = enum
			}
		}

		properties[p.Name] = prop
		if p.Required && p.Default == "" {
			required = append(required, p.Name)
		}
	}

	properties["output"] = map[string]interface{}{
		"type":        "string",
		"enum":        output.Modes,
		"description": fmt.Sprintf("Output format (default: %s). compact = header row + value tuples.", t.mode),
	}
	properties["precision"] = map[string]interface{}{
		"type":        "integer",
		"minimum":     0,
		"description": "Max decimal places for numeric fields. Never adds digits.",
	}
	properties["fields"] = map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": "Columns to keep in compact, markdown and tsv output, in this order.",
	}

	return tools.ToolDefinition{
		Name:        t.toolID,
		Description: t.description,
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

func (t *EndpointTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	mode, opts, err := t.renderOptions(args)
	if err != nil {
		return "", err
	}

	path, query, err := t.buildRequest(args)
	if err != nil {
		return "", err
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	res := t.client.Fetch(ctx, t.gen, path, query)
	return output.Render(res, mode, opts).String(), nil
}

// decodeArgs разбирает аргументы LLM, сохраняя числа как json.Number.
func decodeArgs(argsJSON string) (map[string]any, error) {
	argsJSON = utils.CleanJsonBlock(argsJSON)
	args := make(map[string]any)
	if argsJSON == "" || argsJSON == "null" {
		return args, nil
	}

	dec := json.NewDecoder(strings.NewReader(argsJSON))
	dec.UseNumber()
	if err := dec.Decode(&args); err != nil {
		return nil, err
	}
	return args, nil
}

// renderOptions применяет аргументы output, precision и fields поверх дефолтов.
func (t *EndpointTool) renderOptions(args map[string]any) (output.Mode, output.Options, error) {
	mode, opts := t.mode, t.opts

	if raw, ok := args["output"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return mode, opts, fmt.Errorf("parameter 'output' must be a string, got: %T", raw)
		}
		m, err := output.ParseMode(s)
		if err != nil {
			return mode, opts, err
		}
		mode = m
	}

	if raw, ok := args["precision"]; ok && raw != nil {
		p, err := output.ParsePrecision(scalarString(raw))
		if err != nil {
			return mode, opts, err
		}
		opts.Precision = p
	}

	if raw, ok := args["fields"]; ok && raw != nil {
		fields, err := stringList(raw)
		if err != nil {
			return mode, opts, fmt.Errorf("parameter 'fields': %w", err)
		}
		opts.Fields = fields
	}

	return mode, opts, nil
}

// buildRequest подставляет path параметры и собирает query.
func (t *EndpointTool) buildRequest(args map[string]any) (string, url.Values, error) {
	known := make(map[string]bool, len(t.params)+len(config.ReservedParams))
	for _, name := range config.ReservedParams {
		known[name] = true
	}

	path := t.path
	query := url.Values{}

	for _, p := range t.params {
		known[p.Name] = true

		value := ""
		if raw, ok := args[p.Name]; ok && raw != nil {
			v, err := formatArg(p.ParamConfig, raw)
			if err != nil {
				return "", nil, err
			}
			value = v
		}
		if value == "" {
			value = p.Default
		}
		if value == "" {
			if p.Required || p.In == "path" {
				return "", nil, fmt.Errorf("missing required parameter '%s'", p.Name)
			}
			continue
		}

		if p.validate != nil {
			for _, item := range strings.Split(value, ",") {
				if err := p.validate(item); err != nil {
					return "", nil, err
				}
			}
		}

		if p.In == "path" {
			path = strings.ReplaceAll(path, "{"+p.Name+"}", escapePathList(value))
			continue
		}
		name := p.QueryName
		if name == "" {
			name = p.Name
		}
		query.Set(name, value)
	}

	for name := range args {
		if !known[name] {
			return "", nil, fmt.Errorf("unknown parameter '%s'", name)
		}
	}

	return path, query, nil
}
