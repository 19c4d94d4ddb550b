// Package app собирает компоненты FMP bridge из конфигурации:
// клиент FMP API, реестр инструментов и логгер.
//
// Пакет используется cmd/fmp-bridge и может быть переиспользован
// в любом другом entry point (HTTP, встраивание в агента).
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilkoid/poncho-fmp/pkg/config"
	"github.com/ilkoid/poncho-fmp/pkg/fmp"
	"github.com/ilkoid/poncho-fmp/pkg/tools"
	"go.uber.org/zap"
)

// ConfigEnv — переменная окружения с путём к config.yaml.
const ConfigEnv = "FMP_BRIDGE_CONFIG"

// Components содержит все компоненты приложения для переиспользования.
type Components struct {
	Config   *config.AppConfig
	Client   *fmp.Client
	Registry *tools.Registry
	Logger   *zap.SugaredLogger
}

// ConfigPathFinder определяет стратегию поиска пути к config.yaml.
//
// По умолчанию используется DefaultConfigPathFinder, но можно
// реализовать свою стратегию для тестов или специальных случаев.
type ConfigPathFinder interface {
	FindConfigPath() string
}

// DefaultConfigPathFinder реализует стандартную стратегию поиска config.yaml.
//
// Порядок поиска:
// 1. Флаг --config (если указан)
// 2. Переменная окружения FMP_BRIDGE_CONFIG
// 3. Текущая директория (./config.yaml)
// 4. Директория бинарника
// 5. Родительская директория (для запуска из cmd/)
type DefaultConfigPathFinder struct {
	// ConfigFlag - значение флага --config, если указан
	ConfigFlag string
}

// FindConfigPath находит путь к config.yaml.
func (f *DefaultConfigPathFinder) FindConfigPath() string {
	if f.ConfigFlag != "" {
		return resolveAbsPath(f.ConfigFlag)
	}
	if env := os.Getenv(ConfigEnv); env != "" {
		return resolveAbsPath(env)
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		return resolveAbsPath("config.yaml")
	}

	if execPath, err := os.Executable(); err == nil {
		cfgPath := filepath.Join(filepath.Dir(execPath), "config.yaml")
		if _, err := os.Stat(cfgPath); err == nil {
			return cfgPath
		}
	}

	for _, cfgPath := range []string{
		filepath.Join("..", "config.yaml"),
		filepath.Join("..", "..", "config.yaml"),
	} {
		if _, err := os.Stat(cfgPath); err == nil {
			return resolveAbsPath(cfgPath)
		}
	}

	// Возвращаем дефолтный путь (даже если не существует)
	return resolveAbsPath("config.yaml")
}

// InitializeConfig находит и загружает конфигурацию.
func InitializeConfig(finder ConfigPathFinder) (*config.AppConfig, string, error) {
	cfgPath := finder.FindConfigPath()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// Initialize создаёт клиент FMP API и регистрирует инструменты из конфигурации.
//
// Отсутствие API ключа не ошибка: сервер стартует с предупреждением,
// а вызовы инструментов вернут "No data returned (no_credential: ...)".
func Initialize(cfg *config.AppConfig, logger *zap.SugaredLogger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	client, err := fmp.NewFromConfig(cfg.FMP, fmp.WithLogger(logger))
	if err != nil {
		logger.Errorw("FMP client creation failed", "error", err)
		return nil, fmt.Errorf("failed to create FMP client: %w", err)
	}

	fmpCfg := cfg.FMP.GetDefaults()
	if err := ValidateFMPKey(ResolveAPIKey(fmpCfg), fmpCfg.APIKeyEnv); err != nil {
		logger.Warnw("FMP API key is not set. Tool calls will return no data until it is configured",
			"env", fmpCfg.APIKeyEnv)
	}

	registry := tools.NewRegistry()
	if err := SetupToolsFromConfig(registry, client, cfg, logger); err != nil {
		logger.Errorw("Tools registration failed", "error", err)
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	logger.Infow("Components initialized",
		"tools", registry.Len(),
		"rate_limit", fmpCfg.RateLimit,
		"burst_limit", fmpCfg.BurstLimit)

	return &Components{
		Config:   cfg,
		Client:   client,
		Registry: registry,
		Logger:   logger,
	}, nil
}

// ResolveAPIKey возвращает статический ключ из конфигурации или значение переменной окружения.
func ResolveAPIKey(cfg config.FMPConfig) string {
	if cfg.APIKey != "" {
		return cfg.APIKey
	}
	return os.Getenv(cfg.APIKeyEnv)
}

// ValidateFMPKey проверяет, что API ключ задан.
//
// Строка-шаблон "${FMP_API_KEY}" означает, что переменная окружения
// не была раскрыта, и считается пустым ключом.
func ValidateFMPKey(apiKey, envName string) error {
	if apiKey == "" || apiKey == "${"+envName+"}" {
		return fmt.Errorf("%s not set in config or environment.\n\n"+
			"Please set the %s environment variable:\n"+
			"  export %s=your_api_key_here\n\n"+
			"Or add it to your config.yaml:\n"+
			"  fmp:\n"+
			"    api_key: \"${%s}\"", envName, envName, envName, envName)
	}
	return nil
}

// resolveAbsPath преобразует путь в абсолютный (если это не уже абсолютный путь).
func resolveAbsPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
