package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/amefumi/abodial/app"
	"github.com/amefumi/abodial/config"
	"github.com/amefumi/abodial/ui/preview"
)

func main() {
	cfgPath := flag.String("config", "config/params.ini", "path to the INI configuration")
	watch := flag.String("watch", "", "comma separated element IDs to poll (overrides [run] watch)")
	interval := flag.Duration("interval", 0, "poll interval (overrides [run] interval_ms)")
	showPreview := flag.Bool("preview", false, "open a window with the live capture and match rectangles")
	click := flag.Bool("click", false, "left-click watched elements when they appear (Windows)")
	debugFlag := flag.Bool("debug", false, "debug logging and runtime stats")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	// Validation problems still leave a usable config.
	if err != nil {
		NewLogger(slog.LevelInfo).Warn("config load", "path", *cfgPath, "error", err)
	}
	if *debugFlag {
		cfg.Debug = true
	}
	if *watch != "" {
		cfg.Watch = strings.Split(*watch, ",")
	}
	if *interval > 0 {
		cfg.WatchInterval = *interval
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level)

	if err := run(cfg, logger, *showPreview, *click); err != nil {
		logger.Error("exit", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, showPreview, click bool) error {
	c, err := app.BuildContainer(cfg, logger)
	if err != nil {
		return err
	}
	a, err := app.NewApp(c, app.Options{Watch: cfg.Watch, Interval: cfg.WatchInterval, Click: click})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", "process", cfg.WindowProcess, "pinned", cfg.Pinned(),
		"watch", cfg.Watch, "interval", cfg.WatchInterval.String(), "templates", cfg.TemplatePaths)

	var view app.View
	if showPreview {
		view = preview.New(fmt.Sprintf("abodial - %s", cfg.WindowProcess), c.Frames,
			a.Watcher().Boxes, a.Watcher().Focus, logger)
	}
	start := time.Now()
	err = a.Run(ctx, view)
	logger.Info("shutdown", "uptime", time.Since(start).Round(time.Second).String())
	return err
}
