// fmp-bridge exposes Financial Modeling Prep endpoints as LLM tools.
//
// Usage:
//
//	fmp-bridge serve                         # MCP server on stdin/stdout
//	fmp-bridge call quote '{"symbols":["AAPL"]}'
//	fmp-bridge tools --format openai
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ilkoid/poncho-fmp/pkg/app"
	"github.com/ilkoid/poncho-fmp/pkg/llm/openai"
	"github.com/ilkoid/poncho-fmp/pkg/mcpserver"
	"github.com/ilkoid/poncho-fmp/pkg/tools/std"
	"github.com/ilkoid/poncho-fmp/pkg/utils"
)

// Set at build time via ldflags.
var version = "dev"

var (
	configFlag string
	debugFlag  bool
)

func main() {
	root := &cobra.Command{
		Use:          "fmp-bridge",
		Short:        "Financial Modeling Prep API as LLM tools",
		Long:         "fmp-bridge exposes Financial Modeling Prep endpoints described in config.yaml as tools over MCP (stdio) or one-shot CLI calls.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "", "path to config.yaml")
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "verbose console logging to stderr")

	root.AddCommand(serveCmd(), callCmd(), toolsCmd(), versionCmd())

	err := root.Execute()
	utils.Close()
	if err != nil {
		os.Exit(1)
	}
}

// loadComponents загружает конфигурацию, настраивает логгер и собирает компоненты.
func loadComponents() (*app.Components, error) {
	cfg, cfgPath, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: configFlag})
	if err != nil {
		return nil, err
	}

	if err := utils.InitLogger(debugFlag || cfg.App.Debug); err != nil {
		return nil, err
	}
	utils.Info("Config loaded", "path", cfgPath, "tools", len(cfg.Tools))

	return app.Initialize(cfg, utils.Logger())
}

// ── serve command ──

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	c, err := loadComponents()
	if err != nil {
		return err
	}

	ctx, shutdown := utils.SetupGracefulShutdownWithContext(cmd.Context())
	defer shutdown()

	srv, err := mcpserver.New(c.Registry, c.Logger)
	if err != nil {
		return err
	}
	return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
}

// ── call command ──

func callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool> [args-json]",
		Short: "Call one tool and print the result",
		Long:  "Call one tool and print the result. The fmp_ prefix of the tool name is optional; args default to {}.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runCall,
	}
}

func runCall(cmd *cobra.Command, args []string) error {
	c, err := loadComponents()
	if err != nil {
		return err
	}

	name := args[0]
	if !strings.HasPrefix(name, std.ToolPrefix) {
		name = std.ToolPrefix + name
	}
	tool, err := c.Registry.Get(name)
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(c.Registry.Names(), ", "))
	}

	argsJSON := "{}"
	if len(args) == 2 {
		argsJSON = args[1]
	}

	ctx, shutdown := utils.SetupGracefulShutdownWithContext(cmd.Context())
	defer shutdown()

	out, err := tool.Execute(ctx, argsJSON)
	if err != nil {
		return fmt.Errorf("calling %s: %w", name, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// ── tools command ──

func toolsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print tool definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTools(cmd, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "names", "output format: names, json or openai")
	return cmd
}

func runTools(cmd *cobra.Command, format string) error {
	c, err := loadComponents()
	if err != nil {
		return err
	}

	defs := c.Registry.GetDefinitions()
	var v any
	switch format {
	case "names":
		for _, def := range defs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", def.Name, def.Description)
		}
		return nil
	case "json":
		v = defs
	case "openai":
		v = openai.ConvertTools(defs)
	default:
		return fmt.Errorf("unknown format %q (valid: names, json, openai)", format)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// ── version command ──

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fmp-bridge %s\n", version)
		},
	}
}
