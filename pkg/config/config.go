package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig — корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	FMP    FMPConfig             `yaml:"fmp"`
	Output OutputConfig          `yaml:"output"`
	App    AppSpecific           `yaml:"app"`
	Tools  map[string]ToolConfig `yaml:"tools"`
}

// FMPConfig — настройки upstream API (три поколения базовых URL).
type FMPConfig struct {
	APIKey         string `yaml:"api_key"`         // Статический ключ; перекрывает api_key_env
	APIKeyEnv      string `yaml:"api_key_env"`     // Переменная окружения, читается при каждом вызове
	BaseURLV3      string `yaml:"base_url_v3"`     // Базовый URL API v3
	BaseURLV4      string `yaml:"base_url_v4"`     // Базовый URL API v4
	BaseURLStable  string `yaml:"base_url_stable"` // Базовый URL stable API
	ConnectTimeout string `yaml:"connect_timeout"` // Например, "5s"
	ReadTimeout    string `yaml:"read_timeout"`    // Например, "30s"
	MaxRedirects   int    `yaml:"max_redirects"`
	RateLimit      int    `yaml:"rate_limit"`  // Запросов в минуту на поколение API
	BurstLimit     int    `yaml:"burst_limit"` // Burst для rate limiter
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *FMPConfig) GetDefaults() FMPConfig {
	result := *c // Копируем текущие значения

	if result.APIKeyEnv == "" {
		result.APIKeyEnv = "FMP_API_KEY"
	}
	if result.BaseURLV3 == "" {
		result.BaseURLV3 = "https://financialmodelingprep.com/api/v3"
	}
	if result.BaseURLV4 == "" {
		result.BaseURLV4 = "https://financialmodelingprep.com/api/v4"
	}
	if result.BaseURLStable == "" {
		result.BaseURLStable = "https://financialmodelingprep.com/stable"
	}
	if result.ConnectTimeout == "" {
		result.ConnectTimeout = "5s"
	}
	if result.ReadTimeout == "" {
		result.ReadTimeout = "30s"
	}
	if result.MaxRedirects == 0 {
		result.MaxRedirects = 30
	}
	if result.RateLimit == 0 {
		result.RateLimit = 300 // запросов в минуту (лимит стартового тарифа)
	}
	if result.BurstLimit == 0 {
		result.BurstLimit = 5
	}

	return result
}

// Timeouts парсит connect/read таймауты.
func (c FMPConfig) Timeouts() (connect time.Duration, read time.Duration, err error) {
	connect, err = time.ParseDuration(c.ConnectTimeout)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid fmp.connect_timeout format: %w", err)
	}
	read, err = time.ParseDuration(c.ReadTimeout)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid fmp.read_timeout format: %w", err)
	}
	return connect, read, nil
}

// OutputConfig — настройки форматирования ответов.
type OutputConfig struct {
	DefaultMode  string `yaml:"default_mode"`   // json | compact | markdown | tsv
	Precision    *int   `yaml:"precision"`      // nil — не округлять
	MaxRows      int    `yaml:"max_rows"`       // Больше строк — показываем превью
	PreviewRows  int    `yaml:"preview_rows"`   // Сколько строк в превью
	MaxCellWidth int    `yaml:"max_cell_width"` // 0 — не обрезать ячейки
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *OutputConfig) GetDefaults() OutputConfig {
	result := *c

	if result.DefaultMode == "" {
		result.DefaultMode = "markdown"
	}
	if result.MaxRows == 0 {
		result.MaxRows = 100
	}
	if result.PreviewRows == 0 {
		result.PreviewRows = 5
	}

	return result
}

// AppSpecific — общие настройки приложения.
type AppSpecific struct {
	Debug bool `yaml:"debug"`
}

// ToolConfig — описание одного endpoint tool.
type ToolConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Description string        `yaml:"description"`
	Generation  string        `yaml:"generation"` // v3 | v4 | stable
	Path        string        `yaml:"path"`       // Может содержать {param} плейсхолдеры
	Params      []ParamConfig `yaml:"params"`
	Timeout     time.Duration `yaml:"timeout"` // Go умеет парсить строки вида "60s", "1m"
}

// ParamConfig — параметр endpoint tool.
type ParamConfig struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"` // string | integer | number | boolean | array
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	In          string `yaml:"in"`         // path | query (по умолчанию query)
	QueryName   string `yaml:"query_name"` // Имя в upstream API, если отличается
	Validator   string `yaml:"validator"`  // period, sector, statistics_type...
	Default     string `yaml:"default"`
}

// ReservedParams — аргументы, которые добавляются в схему каждого tool.
var ReservedParams = []string{"output", "precision", "fields"}

var paramTypes = map[string]bool{
	"string": true, "integer": true, "number": true, "boolean": true, "array": true,
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	// 1. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(rawBytes)
}

// Parse подставляет ENV переменные в YAML и валидирует результат.
func Parse(rawBytes []byte) (*AppConfig, error) {
	// os.ExpandEnv заменяет ${VAR} или $VAR на значение из системы.
	contentWithEnv := os.ExpandEnv(string(rawBytes))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate проверяет структуру секций, которые нельзя исправить дефолтами.
//
// Имена валидаторов и поколений проверяются позже, при создании tools:
// пакет config не знает о пакете fmp.
func (c *AppConfig) validate() error {
	fmpCfg := c.FMP.GetDefaults()
	if _, _, err := fmpCfg.Timeouts(); err != nil {
		return err
	}
	if c.FMP.MaxRedirects < 0 {
		return fmt.Errorf("fmp.max_redirects must not be negative")
	}
	if c.Output.Precision != nil && *c.Output.Precision < 0 {
		return fmt.Errorf("output.precision must not be negative")
	}

	for _, name := range c.ToolNames() {
		tool := c.Tools[name]
		if tool.Path == "" {
			return fmt.Errorf("tool '%s': path is required", name)
		}
		seen := make(map[string]bool, len(tool.Params))
		for _, p := range tool.Params {
			if p.Name == "" {
				return fmt.Errorf("tool '%s': param name cannot be empty", name)
			}
			if seen[p.Name] {
				return fmt.Errorf("tool '%s': duplicate param '%s'", name, p.Name)
			}
			seen[p.Name] = true
			for _, reserved := range ReservedParams {
				if p.Name == reserved {
					return fmt.Errorf("tool '%s': param name '%s' is reserved", name, p.Name)
				}
			}
			if p.Type != "" && !paramTypes[p.Type] {
				return fmt.Errorf("tool '%s': param '%s' has unknown type '%s'", name, p.Name, p.Type)
			}
			if p.In != "" && p.In != "path" && p.In != "query" {
				return fmt.Errorf("tool '%s': param '%s': 'in' must be path or query", name, p.Name)
			}
			if p.In == "path" && !strings.Contains(tool.Path, "{"+p.Name+"}") {
				return fmt.Errorf("tool '%s': path param '%s' is missing in path '%s'", name, p.Name, tool.Path)
			}
		}
	}
	return nil
}

// ToolNames возвращает имена tools в стабильном порядке.
func (c *AppConfig) ToolNames() []string {
	names := make([]string, 0, len(c.Tools))
	for name := range c.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
