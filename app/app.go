// Package app wires configuration, capture and matching into a runnable
// watch loop with an optional front end.
package app

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/amefumi/abodial/debug"
	"github.com/amefumi/abodial/domain/action"
)

const runtimeLogInterval = 5 * time.Second

// Options selects what Run does besides keeping the frame source alive.
type Options struct {
	// Watch lists element IDs polled every Interval.
	Watch    []string
	Interval time.Duration
	// Click left-clicks an element's screen centre when it appears.
	Click bool
}

// View is a blocking front end. Run returns when the view closes or ctx is
// done.
type View interface {
	Run(ctx context.Context) error
}

type App struct {
	c       *Container
	watcher *Watcher
}

// NewApp validates the watch list against the element catalog.
func NewApp(c *Container, opts Options) (*App, error) {
	ids := make([]string, 0, len(opts.Watch))
	regions := make(map[string]image.Rectangle, len(opts.Watch))
	for _, id := range opts.Watch {
		el, err := c.Elements.Get(id)
		if err != nil {
			return nil, fmt.Errorf("app: watch: %w", err)
		}
		ids = append(ids, el.ID)
		regions[el.ID] = el.Rect
	}
	w := NewWatcher(c.Engine, ids, opts.Interval, c.Logger)
	w.ShowRegions(regions)
	if opts.Click {
		w.OnAppear(action.Click)
	}
	return &App{c: c, watcher: w}, nil
}

// Watcher exposes the watch loop, for views that draw its results.
func (a *App) Watcher() *Watcher { return a.watcher }

// Run starts the frame source and the watch loop, then blocks on view, or
// on ctx when view is nil. Everything started here is stopped before Run
// returns.
func (a *App) Run(ctx context.Context, view View) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.c.Frames.Start()
	defer a.c.Frames.Stop()

	if a.c.Config.Debug {
		debug.StartRuntimeLogger(ctx, runtimeLogInterval, a.c.Logger, a.c.Frames.Stats)
	}

	var wg sync.WaitGroup
	if len(a.watcher.ids) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.watcher.Run(ctx)
		}()
	}

	var err error
	if view != nil {
		err = view.Run(ctx)
		cancel()
	} else {
		<-ctx.Done()
	}
	wg.Wait()
	if a.c.Logger != nil {
		a.c.Logger.Info("stopped", "stats", a.c.Frames.Stats())
	}
	return err
}
