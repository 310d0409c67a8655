package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	"github.com/starford/ansuz/internal/render"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}
	if cmd.Bool("no-browser") {
		opts = append(opts, internal.WithOpenBrowser(false))
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func export(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	inputs := cmd.Args().Slice()
	if len(inputs) == 0 {
		return fmt.Errorf("export: at least one Markdown file is required")
	}

	logger := internal.NewLogger(cfg.App.LogLevel)
	outputs, err := internal.ExportFiles(ctx, inputs, internal.ExportOptions{
		Output:     cmd.String("output"),
		Stylesheet: cfg.Preview.Stylesheet,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	for _, out := range outputs {
		fmt.Fprintln(cmd.Root().Writer, out)
	}
	return nil
}

func preview(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("preview: exactly one Markdown file is required")
	}
	return internal.PreviewFile(cmd.Root().Writer, cmd.Args().First(), cmd.String("style"), int(cmd.Int("width")))
}

func noBrowserFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "no-browser",
		Usage: "Do not open the editor page in the default browser",
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "ansuz",
		Usage:  "Minimal two-pane Markdown editor with live preview and HTML export",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			noBrowserFlag(),
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the editor (default)",
				Action: serve,
				Flags:  []cli.Flag{noBrowserFlag()},
			},
			{
				Name:      "export",
				Usage:     "Render Markdown files to standalone HTML pages",
				ArgsUsage: "<file.md>...",
				Action:    export,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Destination file (single input only)",
					},
				},
			},
			{
				Name:      "preview",
				Usage:     "Render a Markdown file in the terminal",
				ArgsUsage: "<file.md>",
				Action:    preview,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "style",
						Usage: "Terminal style (dark, light, notty, ...)",
						Value: render.DefaultTerminalStyle,
					},
					&cli.IntFlag{
						Name:  "width",
						Usage: "Word wrap width",
						Value: 80,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
