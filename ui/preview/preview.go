// Package preview shows the cached capture with match rectangles in a Tk
// window. All widget access happens on the Tk event loop via TclAfter.
package preview

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/amefumi/abodial/domain/capture"
	"github.com/amefumi/abodial/ui/images"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

const (
	tick = 100 * time.Millisecond

	maxPreviewW = 800
	maxPreviewH = 450
	detailSize  = 120
)

// FrameSource is the part of capture.FrameSource the preview reads.
type FrameSource interface {
	Grab(forceNew bool) (*capture.Frame, error)
	Stats() capture.Stats
}

// Window is a single-use preview window.
type Window struct {
	title   string
	frames  FrameSource
	overlay func() []images.Box
	focus   func() (image.Point, bool)
	logger  *slog.Logger

	ctx     context.Context
	afterID string
	frameCh chan *capture.Frame
	lastSeq uint64
	lastErr string

	photo       *Img
	label       *LabelWidget
	detailPhoto *Img
	detail      *LabelWidget
	status      *LabelWidget
}

// New builds a preview over frames. overlay supplies boxes to draw and
// focus the frame-local point shown in the detail crop; either may be nil.
func New(title string, frames FrameSource, overlay func() []images.Box, focus func() (image.Point, bool), logger *slog.Logger) *Window {
	return &Window{title: title, frames: frames, overlay: overlay, focus: focus, logger: logger}
}

// Run builds the widgets and blocks in the Tk main loop until the window is
// closed or ctx is done. It must be called from the main goroutine.
func (w *Window) Run(ctx context.Context) error {
	w.ctx = ctx
	w.frameCh = make(chan *capture.Frame, 1)

	App.WmTitle(w.title)
	WmProtocol(App, "WM_DELETE_WINDOW", w.exitHandler)
	WmGeometry(App, fmt.Sprintf("%dx%d+100+100", maxPreviewW+20, maxPreviewH+detailSize+100))

	placeholder := image.NewRGBA(image.Rect(0, 0, 320, 180))
	w.photo = NewPhoto(Data(images.EncodePNG(placeholder)))
	w.label = Label(Image(w.photo), Borderwidth(1), Relief("sunken"))
	Pack(w.label, Padx("1m"), Pady("1m"))

	w.detailPhoto = NewPhoto(Data(images.EncodePNG(image.NewRGBA(image.Rect(0, 0, detailSize, detailSize)))))
	w.detail = Label(Image(w.detailPhoto), Borderwidth(1), Relief("groove"))
	Pack(w.detail, Padx("1m"), Pady("1m"))

	w.status = Label(Txt("Window: <searching>"), Borderwidth(1), Relief("ridge"))
	Pack(w.status, Padx("1m"), Pady("1m"))
	Pack(Button(Txt("Exit"), Command(w.exitHandler)))

	go w.captureLoop(ctx)
	w.scheduleUpdate()
	App.Wait()
	return nil
}

// captureLoop grabs through the shared cache off the Tk thread and keeps
// only the newest frame in frameCh.
func (w *Window) captureLoop(ctx context.Context) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		f, err := w.frames.Grab(false)
		if err != nil {
			msg := err.Error()
			if msg != w.lastErr && w.logger != nil {
				w.logger.Debug("preview grab failed", "error", err)
			}
			w.lastErr = msg
			continue
		}
		w.lastErr = ""
		select {
		case <-w.frameCh:
		default:
		}
		w.frameCh <- f
	}
}

func (w *Window) update() {
	if w.ctx.Err() != nil {
		w.exitHandler()
		return
	}
	select {
	case f := <-w.frameCh:
		if f.Sequence != w.lastSeq {
			w.lastSeq = f.Sequence
			w.show(f)
		}
	default:
	}
	w.updateStatus()
	w.scheduleUpdate()
}

func (w *Window) show(f *capture.Frame) {
	var boxes []images.Box
	if w.overlay != nil {
		boxes = w.overlay()
	}
	data := images.Render(f.Image, boxes, maxPreviewW, maxPreviewH)
	if len(data) == 0 {
		return
	}
	// Replace previous photo to avoid retaining obsolete pixel buffers.
	if w.photo != nil {
		w.photo.Delete()
	}
	w.photo = NewPhoto(Data(data))
	w.label.Configure(Image(w.photo))
	w.showDetail(f)
}

// showDetail crops the frame around the focus point at full resolution.
func (w *Window) showDetail(f *capture.Frame) {
	if w.focus == nil {
		return
	}
	c, ok := w.focus()
	if !ok {
		return
	}
	roi, _ := images.ExtractROI(f.Image, c, detailSize)
	if w.detailPhoto != nil {
		w.detailPhoto.Delete()
	}
	w.detailPhoto = NewPhoto(Data(images.EncodePNG(roi)))
	w.detail.Configure(Image(w.detailPhoto))
}

func (w *Window) updateStatus() {
	s := w.frames.Stats()
	text := "Window: <searching>"
	if s.WindowKnown {
		text = fmt.Sprintf("Frame #%d  age %v  avg capture %v  hits %d/%d",
			s.Sequence, s.FrameAge.Round(time.Millisecond), s.AvgCapture.Round(time.Microsecond),
			s.CacheHits, s.CacheHits+s.Captures)
	}
	// guard against panic if widget destroyed
	func() {
		defer func() { _ = recover() }()
		w.status.Configure(Txt(text))
	}()
}

func (w *Window) exitHandler() {
	if w.afterID != "" {
		TclAfterCancel(w.afterID)
		w.afterID = ""
	}
	Destroy(App)
}

func (w *Window) scheduleUpdate() {
	w.afterID = TclAfter(tick, func() { w.update() })
}
