package capture

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultStaleAfter = 40 * time.Millisecond
	DefaultInterval   = time.Second
	statsLogInterval  = 5 * time.Second
)

// Options configures a FrameSource. Zero durations take the defaults.
type Options struct {
	Process string
	// Size is the fixed client size to capture. When zero the size reported
	// by the locator is used.
	Size       image.Point
	StaleAfter time.Duration
	Interval   time.Duration
	Locator    Locator
	Grabber    Grabber
	Logger     *slog.Logger
	Now        func() time.Time
}

// FrameSource caches captures of the target window and keeps the window's
// screen offset current from a background discovery loop.
//
// The frame cache and the window offset sit behind separate locks: a
// discovery update never waits on a capture in flight and vice versa.
type FrameSource struct {
	process    string
	size       image.Point
	staleAfter time.Duration
	interval   time.Duration
	locator    Locator
	grabber    Grabber
	logger     *slog.Logger
	now        func() time.Time

	frameMu sync.Mutex
	frame   *Frame
	seq     uint64

	windowMu sync.RWMutex
	window   WindowOffset

	lifeMu  sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup

	captures     atomic.Uint64
	cacheHits    atomic.Uint64
	failures     atomic.Uint64
	discoveries  atomic.Uint64
	captureNanos atomic.Uint64
}

// NewFrameSource builds a stopped source. Locator defaults to the platform
// locator and Grabber to ScreenGrabber.
func NewFrameSource(o Options) *FrameSource {
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Locator == nil {
		o.Locator = DefaultLocator()
	}
	if o.Grabber == nil {
		o.Grabber = ScreenGrabber{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &FrameSource{
		process:    o.Process,
		size:       o.Size,
		staleAfter: o.StaleAfter,
		interval:   o.Interval,
		locator:    o.Locator,
		grabber:    o.Grabber,
		logger:     o.Logger,
		now:        o.Now,
	}
}

// Start runs one discovery attempt, then keeps retrying in the background
// every Interval until Stop. Calling Start on a running source is a no-op.
func (s *FrameSource) Start() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.running {
		return
	}
	s.discover()
	s.running = true
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.loop(s.done)
}

// Stop joins the discovery loop and drops the cached frame and window, so a
// later Start begins from scratch.
func (s *FrameSource) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if !s.running {
		return
	}
	close(s.done)
	s.wg.Wait()
	s.running = false

	s.frameMu.Lock()
	s.frame = nil
	s.frameMu.Unlock()
	s.setWindow(WindowOffset{})
}

// Running reports whether the discovery loop is active.
func (s *FrameSource) Running() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.running
}

func (s *FrameSource) loop(done <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	statsTicker := time.NewTicker(statsLogInterval)
	defer statsTicker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.discover()
		case <-statsTicker.C:
			s.logStats()
		}
	}
}

// discover asks the locator for the target window. A failed lookup keeps
// the previous handle and refreshes its geometry; a handle whose geometry
// can no longer be read counts as the window having closed.
func (s *FrameSource) discover() {
	s.discoveries.Add(1)
	if h, ok := s.locator.FindWindow(s.process); ok {
		rect, err := s.locator.ClientRect(h)
		if err == nil {
			next := WindowOffset{Handle: h, Origin: rect.Min, Size: rect.Size()}
			if prev := s.Window(); prev != next && s.logger != nil {
				s.logger.Debug("window found", "hwnd", uintptr(h), "left", rect.Min.X, "top", rect.Min.Y,
					"width", rect.Dx(), "height", rect.Dy())
			}
			s.setWindow(next)
			return
		}
		if s.logger != nil {
			s.logger.Debug("window geometry unavailable", "hwnd", uintptr(h), "error", err)
		}
	}

	prev := s.Window()
	if prev.Handle == 0 {
		if s.logger != nil {
			s.logger.Debug("window not found", "process", s.process)
		}
		return
	}
	rect, err := s.locator.ClientRect(prev.Handle)
	if err != nil {
		s.setWindow(WindowOffset{})
		if s.logger != nil {
			s.logger.Debug("window lost", "hwnd", uintptr(prev.Handle), "error", err)
		}
		return
	}
	s.setWindow(WindowOffset{Handle: prev.Handle, Origin: rect.Min, Size: rect.Size()})
}

func (s *FrameSource) setWindow(w WindowOffset) {
	s.windowMu.Lock()
	s.window = w
	s.windowMu.Unlock()
}

// Window returns a copy of the current window state; Handle is zero when no
// window is known.
func (s *FrameSource) Window() WindowOffset {
	s.windowMu.RLock()
	defer s.windowMu.RUnlock()
	return s.window
}

// Offset returns the client-area screen origin, if a window is known.
func (s *FrameSource) Offset() (image.Point, bool) {
	w := s.Window()
	return w.Origin, w.Handle != 0
}

// Grab returns the cached frame while it is younger than the staleness
// threshold, unless forceNew is set; otherwise it captures, publishes and
// returns a new frame. Without a known window it fails with
// ErrWindowNotFound.
func (s *FrameSource) Grab(forceNew bool) (*Frame, error) {
	if !forceNew {
		s.frameMu.Lock()
		f := s.frame
		s.frameMu.Unlock()
		if f != nil && s.now().Sub(f.CapturedAt) < s.staleAfter {
			s.cacheHits.Add(1)
			return f, nil
		}
	}

	win := s.Window()
	if win.Handle == 0 {
		s.failures.Add(1)
		return nil, ErrWindowNotFound
	}
	size := s.size
	if size.X <= 0 || size.Y <= 0 {
		size = win.Size
	}
	rect := image.Rectangle{Min: win.Origin, Max: win.Origin.Add(size)}

	start := time.Now()
	img, err := s.grabber.Grab(rect)
	if err == nil && img == nil {
		err = errors.New("empty capture")
	}
	if err != nil {
		s.failures.Add(1)
		if s.logger != nil {
			s.logger.Error("capture failed", "rect", rect, "error", err)
		}
		return nil, fmt.Errorf("capture %v: %w", rect, err)
	}
	s.captureNanos.Add(uint64(time.Since(start).Nanoseconds()))
	s.captures.Add(1)

	f := &Frame{Image: anchor(img), CapturedAt: s.now()}
	s.frameMu.Lock()
	s.seq++
	f.Sequence = s.seq
	s.frame = f
	s.frameMu.Unlock()
	return f, nil
}

// Latest returns the cached frame without capturing, or nil.
func (s *FrameSource) Latest() *Frame {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	return s.frame
}

func (s *FrameSource) Stats() Stats {
	captures := s.captures.Load()
	var avg time.Duration
	if captures > 0 {
		avg = time.Duration(s.captureNanos.Load() / captures)
	}
	st := Stats{
		Captures:    captures,
		CacheHits:   s.cacheHits.Load(),
		Failures:    s.failures.Load(),
		Discoveries: s.discoveries.Load(),
		AvgCapture:  avg,
		WindowKnown: s.Window().Handle != 0,
	}
	if f := s.Latest(); f != nil {
		st.LastCapture = f.CapturedAt
		st.FrameAge = s.now().Sub(f.CapturedAt)
		st.Sequence = f.Sequence
	}
	return st
}

func (s *FrameSource) logStats() {
	if s.logger == nil {
		return
	}
	st := s.Stats()
	s.logger.Debug("capture.stats",
		"captures", st.Captures,
		"cache_hits", st.CacheHits,
		"failures", st.Failures,
		"avg_capture", st.AvgCapture,
		"age", st.FrameAge,
		"window", st.WindowKnown,
	)
}
