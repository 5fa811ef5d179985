// Package main is a terminal inspector for drone models. It loads a model
// headless and lists its parts with their catalog descriptions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/Faultbox/drone-explorer/internal/assets"
	"github.com/Faultbox/drone-explorer/internal/catalog"
	"github.com/Faultbox/drone-explorer/internal/config"
	"github.com/Faultbox/drone-explorer/internal/explorer"
	"github.com/Faultbox/drone-explorer/internal/logger"
)

var flagCatalog = flag.String("catalog", "", "YAML file with extra part descriptions")

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI.
	if err := logger.InitFile(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("partscope failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat := catalog.Default()
	if *flagCatalog != "" {
		var err error
		if cat, err = catalog.LoadFile(*flagCatalog); err != nil {
			return err
		}
	}

	source := assets.NewManager()
	defer source.Close()
	for _, dir := range cfg.Asset.SearchPaths {
		if err := source.AddDir(dir); err != nil {
			logger.Warn("skipping search path", zap.String("dir", dir), zap.Error(err))
		}
	}

	app, err := explorer.New(cfg, explorer.Deps{
		Source:  source,
		Logger:  logger.Log,
		Catalog: cat,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Load(ctx); err != nil {
		return err
	}

	program := tea.NewProgram(newModel(ctx, app), tea.WithAltScreen())
	_, err = program.Run()
	return err
}
