package app

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/amefumi/abodial/domain/capture"
	"github.com/amefumi/abodial/domain/match"
	"github.com/amefumi/abodial/ui/images"
)

// Detector narrows the match engine to what the watcher needs.
type Detector interface {
	Detect(id string, opts ...match.Option) (match.Result, bool, error)
}

// Detection is the outcome of one element check.
type Detection struct {
	ID     string
	Result match.Result
	Found  bool
	Err    error
}

// Watcher polls a fixed list of elements and reports when they appear or
// disappear. With a click handler set it clicks an element's screen centre
// each time the element goes from absent to present.
type Watcher struct {
	detector Detector
	ids      []string
	interval time.Duration
	logger   *slog.Logger
	click    func(image.Point) error
	regions  map[string]image.Rectangle

	mu     sync.Mutex
	latest []Detection
	found  map[string]bool
}

// NewWatcher constructs a watcher for ids. A non-positive interval defaults
// to 250ms.
func NewWatcher(d Detector, ids []string, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Watcher{
		detector: d,
		ids:      ids,
		interval: interval,
		logger:   logger,
		found:    make(map[string]bool, len(ids)),
	}
}

// OnAppear sets the handler invoked with CenterScreen when an element appears.
func (w *Watcher) OnAppear(fn func(image.Point) error) {
	w.click = fn
}

// ShowRegions sets the search region drawn for each element ID by Boxes.
func (w *Watcher) ShowRegions(regions map[string]image.Rectangle) {
	w.regions = regions
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.Poll()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll checks every element once and returns the detections in watch order.
func (w *Watcher) Poll() []Detection {
	out := make([]Detection, 0, len(w.ids))
	var appeared []Detection
	for _, id := range w.ids {
		res, ok, err := w.detector.Detect(id)
		d := Detection{ID: id, Result: res, Found: ok, Err: err}
		out = append(out, d)
		w.mu.Lock()
		was := w.found[id]
		w.found[id] = ok && err == nil
		w.mu.Unlock()
		if err != nil {
			w.logFailure(id, err)
			if was && w.logger != nil {
				w.logger.Info("element lost", "element", id, "error", err)
			}
			continue
		}
		switch {
		case ok && !was:
			appeared = append(appeared, d)
			if w.logger != nil {
				w.logger.Info("element found", "element", id, "template", res.Name,
					"score", res.Score, "x", res.CenterScreen.X, "y", res.CenterScreen.Y)
			}
		case !ok && was:
			if w.logger != nil {
				w.logger.Info("element lost", "element", id, "score", res.Score)
			}
		}
	}

	w.mu.Lock()
	w.latest = out
	w.mu.Unlock()

	if w.click != nil {
		for _, d := range appeared {
			if err := w.click(d.Result.CenterScreen); err != nil && w.logger != nil {
				w.logger.Error("click failed", "element", d.ID, "error", err)
			}
		}
	}
	return out
}

func (w *Watcher) logFailure(id string, err error) {
	if w.logger == nil {
		return
	}
	// No window yet is the normal state before the target starts.
	if errors.Is(err, capture.ErrWindowNotFound) {
		w.logger.Debug("detect skipped", "element", id, "error", err)
		return
	}
	w.logger.Warn("detect failed", "element", id, "error", err)
}

// Latest returns the detections from the most recent poll.
func (w *Watcher) Latest() []Detection {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Detection(nil), w.latest...)
}

// Boxes converts the latest detections into preview overlays in frame
// coordinates: search regions in blue, found matches in green, best misses
// in red.
func (w *Watcher) Boxes() []images.Box {
	latest := w.Latest()
	boxes := make([]images.Box, 0, 2*len(latest))
	for _, d := range latest {
		if r, ok := w.regions[d.ID]; ok && !r.Empty() {
			boxes = append(boxes, images.Box{Rect: r, Color: images.RegionColor})
		}
	}
	for _, d := range latest {
		if d.Err != nil || !d.Result.Valid {
			continue
		}
		c := images.MissedColor
		if d.Found {
			c = images.FoundColor
		}
		boxes = append(boxes, images.Box{Rect: d.Result.Region, Color: c})
	}
	return boxes
}

// Focus returns the frame-local centre of the first found element.
func (w *Watcher) Focus() (image.Point, bool) {
	for _, d := range w.Latest() {
		if d.Found && d.Err == nil {
			return d.Result.Center, true
		}
	}
	return image.Point{}, false
}
