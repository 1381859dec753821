package app

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/amefumi/abodial/assets"
	"github.com/amefumi/abodial/config"
	"github.com/amefumi/abodial/domain/capture"
	"github.com/amefumi/abodial/domain/element"
	"github.com/amefumi/abodial/domain/match"
	"github.com/amefumi/abodial/domain/template"
)

// Container assembles the template store, element catalog, frame source and
// match engine.
type Container struct {
	Config    *config.Config
	Logger    *slog.Logger
	Templates *template.Store
	Elements  *element.Registry
	Frames    *capture.FrameSource
	Engine    *match.Engine
}

// BuildContainer constructs all components. Templates load lazily on first
// lookup; the frame source is returned stopped.
func BuildContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}
	c.Templates = template.NewStore(cfg.TemplatePaths, cfg.TemplateExtensions, logger)

	reg, err := loadElements(cfg)
	if err != nil {
		return nil, err
	}
	c.Elements = reg

	grabber, err := capture.NewGrabber(cfg.CaptureBackend)
	if err != nil {
		return nil, err
	}
	opts := capture.Options{
		Process:    cfg.WindowProcess,
		Size:       image.Pt(cfg.WindowWidth, cfg.WindowHeight),
		StaleAfter: cfg.StaleAfter,
		Interval:   cfg.DiscoveryInterval,
		Grabber:    grabber,
		Logger:     logger,
	}
	if cfg.Pinned() {
		origin := image.Pt(cfg.FixedLeft, cfg.FixedTop)
		opts.Locator = capture.StaticLocator{Area: image.Rectangle{Min: origin, Max: origin.Add(opts.Size)}}
	}
	c.Frames = capture.NewFrameSource(opts)
	c.Engine = match.NewEngine(c.Templates, c.Frames, c.Elements, logger)
	return c, nil
}

func loadElements(cfg *config.Config) (*element.Registry, error) {
	if cfg.ElementsFile != "" {
		return element.LoadFile(cfg.ElementsFile, cfg.Colors)
	}
	r, err := assets.Elements()
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return element.Load(r, cfg.Colors)
}
