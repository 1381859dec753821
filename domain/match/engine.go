// Package match locates templates inside captured frames using normalised
// cross-correlation and maps hits to screen coordinates.
package match

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/amefumi/abodial/domain/capture"
	"github.com/amefumi/abodial/domain/colorfilter"
	"github.com/amefumi/abodial/domain/element"
	"github.com/amefumi/abodial/domain/template"
)

var ErrNoFrame = errors.New("match: no frame available")

// TemplateSource resolves template names.
type TemplateSource interface {
	Get(name string) (*template.Template, error)
}

// FrameProvider supplies frames and the current window offset.
type FrameProvider interface {
	Grab(forceNew bool) (*capture.Frame, error)
	Offset() (image.Point, bool)
}

// Ref names a template or carries a raw image to use as one.
type Ref struct {
	name string
	img  image.Image
}

func Named(name string) Ref { return Ref{name: name} }

func Raw(img image.Image) Ref { return Ref{img: img} }

func (r Ref) String() string { return r.name }

// Names builds refs for a list of template names.
func Names(names ...string) []Ref {
	refs := make([]Ref, len(names))
	for i, n := range names {
		refs[i] = Named(n)
	}
	return refs
}

// Mode selects among several candidate templates.
type Mode int

const (
	// FirstAbove returns the first candidate, in input order, whose score
	// meets the threshold and skips the rest.
	FirstAbove Mode = iota
	// BestMatch evaluates every candidate and returns the highest score
	// meeting the threshold; ties go to the earlier candidate.
	BestMatch
)

func (m Mode) String() string {
	if m == BestMatch {
		return "best"
	}
	return "first"
}

type correlateFunc func(img, tpl plane, mask []bool) scoreMap

// Engine is stateless between calls. Its frame source and element registry
// are optional; without a frame source every call needs WithFrame and
// screen coordinates equal frame coordinates.
type Engine struct {
	templates TemplateSource
	frames    FrameProvider
	elements  *element.Registry
	logger    *slog.Logger
	correlate correlateFunc
}

func NewEngine(templates TemplateSource, frames FrameProvider, elements *element.Registry, logger *slog.Logger) *Engine {
	return &Engine{
		templates: templates,
		frames:    frames,
		elements:  elements,
		logger:    logger,
		correlate: correlate,
	}
}

// MatchOne finds the best placement of ref in the frame. The returned score
// is raw; no threshold is applied. A region not larger than the template
// yields an invalid result with a nil error.
func (e *Engine) MatchOne(ref Ref, opts ...Option) (Result, error) {
	o := collect(opts)
	tpl, err := e.resolve(ref)
	if err != nil {
		return invalid(ref.name), err
	}
	frame, err := e.frame(o)
	if err != nil {
		return invalid(tpl.Name), err
	}
	return e.matchTemplate(tpl, frame, o), nil
}

// MatchAll matches every ref against one frame and returns the results in
// input order. Refs that fail to resolve yield invalid results and their
// errors are joined.
func (e *Engine) MatchAll(refs []Ref, opts ...Option) ([]Result, error) {
	o := collect(opts)
	frame, err := e.frame(o)
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(refs))
	var errs []error
	for i, ref := range refs {
		tpl, err := e.resolve(ref)
		if err != nil {
			out[i] = invalid(ref.name)
			errs = append(errs, err)
			continue
		}
		out[i] = e.matchTemplate(tpl, frame, o)
	}
	return out, errors.Join(errs...)
}

// MatchAny searches refs against one frame and selects per mode. ok reports
// whether a candidate met threshold; when none did, the returned result is
// the highest-scoring valid candidate seen, for diagnostics. A candidate
// that cannot be resolved aborts the search.
func (e *Engine) MatchAny(refs []Ref, mode Mode, threshold float64, opts ...Option) (res Result, ok bool, err error) {
	o := collect(opts)
	frame, err := e.frame(o)
	if err != nil {
		return invalid(""), false, err
	}
	best := invalid("")
	bestOK := false
	for _, ref := range refs {
		tpl, err := e.resolve(ref)
		if err != nil {
			return invalid(ref.name), false, err
		}
		r := e.matchTemplate(tpl, frame, o)
		if !r.Valid {
			continue
		}
		above := r.Score >= threshold
		if mode == FirstAbove && above {
			return r, true, nil
		}
		switch {
		case above && (!bestOK || r.Score > best.Score):
			best, bestOK = r, true
		case !bestOK && (!best.Valid || r.Score > best.Score):
			best = r
		}
	}
	return best, bestOK, nil
}

// Detect looks up an element in the registry and runs MatchAny with its
// templates, region, threshold and preprocessing. Extra opts are applied
// after the element's own, so a caller may supply a frame or override the
// region.
func (e *Engine) Detect(id string, opts ...Option) (Result, bool, error) {
	if e.elements == nil {
		return invalid(id), false, fmt.Errorf("%w: %q (no registry)", element.ErrUnknownElement, id)
	}
	el, err := e.elements.Get(id)
	if err != nil {
		return invalid(id), false, err
	}
	var base []Option
	if !el.Rect.Empty() {
		base = append(base, WithRegion(el.Rect))
	}
	if el.Color != nil {
		base = append(base, WithColor(*el.Color))
	}
	if el.Grayscale {
		base = append(base, WithGrayscale())
	}
	mode := FirstAbove
	if el.BestMatch {
		mode = BestMatch
	}
	res, ok, err := e.MatchAny(Names(el.Names...), mode, el.Threshold, append(base, opts...)...)
	if e.logger != nil && err == nil {
		e.logger.Debug("detect", "element", el.ID, "found", ok, "template", res.Name, "score", res.Score)
	}
	return res, ok, err
}

func (e *Engine) resolve(ref Ref) (*template.Template, error) {
	if ref.img != nil {
		return template.FromImage(ref.name, ref.img), nil
	}
	if e.templates == nil {
		return nil, &template.AssetMissingError{Name: ref.name}
	}
	return e.templates.Get(ref.name)
}

func (e *Engine) frame(o options) (image.Image, error) {
	if o.frame != nil {
		return o.frame, nil
	}
	if e.frames == nil {
		return nil, ErrNoFrame
	}
	f, err := e.frames.Grab(o.forceNew)
	if err != nil {
		return nil, fmt.Errorf("match: grab frame: %w", err)
	}
	return f.Image, nil
}

// matchTemplate runs one template against one frame.
func (e *Engine) matchTemplate(tpl *template.Template, frame image.Image, o options) Result {
	fb := frame.Bounds()
	roi := fb
	if o.hasRegion {
		roi = o.region.Add(fb.Min).Intersect(fb)
	}
	tsize := tpl.Size()
	if roi.Dx() <= tsize.X || roi.Dy() <= tsize.Y {
		if e.logger != nil {
			e.logger.Error("region too small", "err", &RegionTooSmallError{
				Name: tpl.Name, ROI: roi.Sub(fb.Min), RegionSize: roi.Size(), TemplateSize: tsize,
			})
		}
		return invalid(tpl.Name)
	}

	crop := subImage(frame, roi)
	var img, tp plane
	switch {
	case o.color != nil:
		_, fimg := colorfilter.Apply(crop, *o.color)
		_, ftpl := colorfilter.Apply(tpl.Color, *o.color)
		img, tp = planeFromRGBA(fimg), planeFromRGBA(ftpl)
	case o.grayscale:
		img, tp = planeFromGray(template.ToGray(crop)), planeFromGray(tpl.Gray)
	default:
		img, tp = planeFromRGBA(toRGBA(crop)), planeFromRGBA(tpl.Color)
	}

	var mask []bool
	if tpl.Mask != nil {
		mask = make([]bool, len(tpl.Mask.Pix))
		for i, v := range tpl.Mask.Pix {
			mask[i] = v != 0
		}
	}

	scores := e.correlate(img, tp, mask)
	if len(scores.Scores) == 0 {
		return invalid(tpl.Name)
	}
	if n := scores.sanitize(); n > 0 && e.logger != nil {
		e.logger.Debug("score map sanitized", "template", tpl.Name, "values", n)
	}
	pos, score := scores.argmax()

	origin := pos.Add(roi.Min).Sub(fb.Min)
	local := image.Rectangle{Min: origin, Max: origin.Add(tsize)}
	var offset image.Point
	if e.frames != nil {
		offset, _ = e.frames.Offset()
	}
	screen := local.Add(offset)
	return Result{
		Name:         tpl.Name,
		Score:        score,
		Region:       local,
		RegionScreen: screen,
		Center:       CenterOf(local),
		CenterScreen: CenterOf(screen),
		Valid:        true,
	}
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// subImage crops img to r without copying when the type allows it.
func subImage(img image.Image, r image.Rectangle) image.Image {
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	return toRGBA(img).SubImage(r.Sub(img.Bounds().Min))
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	return template.ToRGBA(img)
}
