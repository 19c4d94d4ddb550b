package app

import (
	"fmt"

	"github.com/ilkoid/poncho-fmp/pkg/config"
	"github.com/ilkoid/poncho-fmp/pkg/tools"
	"github.com/ilkoid/poncho-fmp/pkg/tools/std"
	"go.uber.org/zap"
)

// SetupToolsFromConfig регистрирует endpoint инструменты из секции tools.
//
// Добавление нового endpoint требует только записи в config.yaml.
// Отключённые инструменты (enabled: false) пропускаются.
func SetupToolsFromConfig(registry *tools.Registry, client std.Fetcher, cfg *config.AppConfig, logger *zap.SugaredLogger) error {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	for _, name := range cfg.ToolNames() {
		toolCfg := cfg.Tools[name]
		if !toolCfg.Enabled {
			logger.Debugw("Tool disabled, skipping", "tool", name)
			continue
		}

		tool, err := std.NewEndpointTool(name, client, toolCfg, cfg.Output)
		if err != nil {
			return err
		}
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
		logger.Debugw("Tool registered", "tool", tool.Definition().Name, "path", toolCfg.Path)
	}

	return nil
}
