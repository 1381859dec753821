package match

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/amefumi/abodial/domain/capture"
	"github.com/amefumi/abodial/domain/colorfilter"
	"github.com/amefumi/abodial/domain/element"
	"github.com/amefumi/abodial/domain/template"
)

// noiseFrame returns a deterministic random RGB image.
func noiseFrame(w, h int, seed uint64) *image.RGBA {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(r.IntN(256))
		img.Pix[i+1] = uint8(r.IntN(256))
		img.Pix[i+2] = uint8(r.IntN(256))
		img.Pix[i+3] = 0xFF
	}
	return img
}

// cut copies a rectangle of src into a new origin-anchored image.
func cut(src *image.RGBA, r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			out.SetRGBA(x, y, src.RGBAAt(r.Min.X+x, r.Min.Y+y))
		}
	}
	return out
}

type mapTemplates struct {
	byName map[string]*template.Template
	gets   []string
}

func (m *mapTemplates) Get(name string) (*template.Template, error) {
	m.gets = append(m.gets, name)
	t, ok := m.byName[template.NormalizeName(name)]
	if !ok {
		return nil, &template.AssetMissingError{Name: name}
	}
	return t, nil
}

func newTemplates(imgs map[string]image.Image) *mapTemplates {
	m := &mapTemplates{byName: map[string]*template.Template{}}
	for name, img := range imgs {
		t := template.FromImage(name, img)
		m.byName[t.Name] = t
	}
	return m
}

type fixedFrames struct {
	frame  *image.RGBA
	offset image.Point
	known  bool
	grabs  int
}

func (f *fixedFrames) Grab(bool) (*capture.Frame, error) {
	f.grabs++
	if f.frame == nil {
		return nil, capture.ErrWindowNotFound
	}
	return &capture.Frame{Image: f.frame}, nil
}

func (f *fixedFrames) Offset() (image.Point, bool) { return f.offset, f.known }

// An exact crop is found at its origin with a score of ~1 in every mode.
func TestMatchOne_ExactPosition(t *testing.T) {
	frame := noiseFrame(96, 64, 1)
	at := image.Rect(37, 21, 49, 30)
	tpl := cut(frame, at)
	e := NewEngine(nil, nil, nil, nil)
	for name, extra := range map[string][]Option{
		"plain":     nil,
		"grayscale": {WithGrayscale()},
		"region":    {WithRegion(image.Rect(30, 15, 70, 50))},
	} {
		res, err := e.MatchOne(Raw(tpl), append([]Option{WithFrame(frame)}, extra...)...)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !res.Valid || res.Region != at {
			t.Fatalf("%s: got %v valid=%v, want %v", name, res.Region, res.Valid, at)
		}
		if math.Abs(res.Score-1) > 1e-6 {
			t.Fatalf("%s: score %v, want ~1", name, res.Score)
		}
	}
}

// Transparent template pixels are excluded from scoring.
func TestMatchOne_AlphaMask(t *testing.T) {
	frame := noiseFrame(80, 60, 2)
	at := image.Rect(20, 25, 36, 37)
	src := cut(frame, at)
	tpl := image.NewNRGBA(src.Rect)
	for y := 0; y < src.Rect.Dy(); y++ {
		for x := 0; x < src.Rect.Dx(); x++ {
			c := src.RGBAAt(x, y)
			tpl.SetNRGBA(x, y, color.NRGBA{c.R, c.G, c.B, 0xFF})
			if x < 4 {
				tpl.SetNRGBA(x, y, color.NRGBA{255, 0, 255, 0})
			}
		}
	}
	e := NewEngine(nil, nil, nil, nil)
	res, err := e.MatchOne(Raw(tpl), WithFrame(frame))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if res.Region != at || math.Abs(res.Score-1) > 1e-6 {
		t.Fatalf("got %v score %v, want %v ~1", res.Region, res.Score, at)
	}
}

// Colour filtering isolates the band; the red glyph is found on a noisy
// green/blue background.
func TestMatchOne_ColorFilter(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 60, 40))
	r := rand.New(rand.NewPCG(3, 3))
	for i := 0; i < len(frame.Pix); i += 4 {
		frame.Pix[i+1] = uint8(r.IntN(256))
		frame.Pix[i+2] = uint8(r.IntN(256))
		frame.Pix[i+3] = 0xFF
	}
	red := color.RGBA{230, 20, 20, 0xFF}
	glyph := image.Rect(31, 12, 41, 22)
	for y := glyph.Min.Y; y < glyph.Max.Y; y++ {
		frame.SetRGBA(glyph.Min.X, y, red)
		frame.SetRGBA(glyph.Min.X+1, y, red)
	}
	for x := glyph.Min.X; x < glyph.Max.X; x++ {
		frame.SetRGBA(x, glyph.Max.Y-1, red)
	}
	tpl := cut(frame, glyph)
	rng := colorfilter.Range{HueLow: -9, SatLow: 110, ValLow: 100, HueHigh: 12, SatHigh: 255, ValHigh: 255}
	e := NewEngine(nil, nil, nil, nil)
	res, err := e.MatchOne(Raw(tpl), WithFrame(frame), WithColor(rng), WithGrayscale())
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if res.Region != glyph || math.Abs(res.Score-1) > 1e-6 {
		t.Fatalf("got %v score %v, want %v", res.Region, res.Score, glyph)
	}
}

// A region not strictly larger than the template yields an invalid result and a log line.
func TestMatchOne_RegionTooSmall(t *testing.T) {
	frame := noiseFrame(50, 50, 4)
	tpl := cut(frame, image.Rect(0, 0, 10, 10))
	var buf bytes.Buffer
	e := NewEngine(nil, nil, nil, slog.New(slog.NewJSONHandler(&buf, nil)))
	for _, region := range []image.Rectangle{
		image.Rect(5, 5, 15, 15),
		image.Rect(5, 5, 30, 15),
		image.Rect(5, 5, 12, 40),
		image.Rect(45, 45, 70, 70), // clipped by the frame to 5x5
	} {
		buf.Reset()
		res, err := e.MatchOne(Raw(tpl), WithFrame(frame), WithRegion(region))
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if res.Valid || res.Score != -1 {
			t.Fatalf("region %v: got valid=%v score=%v", region, res.Valid, res.Score)
		}
		if !strings.Contains(buf.String(), "region too small") {
			t.Fatalf("region %v: shape mismatch not logged: %s", region, buf.String())
		}
	}
}

// NaN injected at the true peak is sanitized and never selected.
func TestMatchOne_NaNNotSelected(t *testing.T) {
	frame := noiseFrame(64, 48, 5)
	at := image.Rect(22, 17, 32, 25)
	tpl := cut(frame, at)
	e := NewEngine(nil, nil, nil, nil)
	e.correlate = func(img, tp plane, mask []bool) scoreMap {
		m := correlate(img, tp, mask)
		m.Scores[at.Min.Y*m.W+at.Min.X] = math.NaN()
		m.Scores[0] = math.Inf(1)
		return m
	}
	res, err := e.MatchOne(Raw(tpl), WithFrame(frame))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if math.IsNaN(res.Score) || math.IsInf(res.Score, 0) {
		t.Fatalf("score not sanitized: %v", res.Score)
	}
	if res.Region.Min == at.Min || res.Region.Min == (image.Point{}) {
		t.Fatalf("degenerate location selected: %v", res.Region)
	}
	if !res.Valid || res.Score >= 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

// Frame-local centre (30,20) with window offset (100,50) maps to (130,70).
func TestMatchOne_ScreenCoordinates(t *testing.T) {
	frame := noiseFrame(80, 60, 6)
	at := image.Rect(25, 15, 35, 25)
	frames := &fixedFrames{frame: frame, offset: image.Pt(100, 50), known: true}
	e := NewEngine(newTemplates(map[string]image.Image{"glyph": cut(frame, at)}), frames, nil, nil)
	res, err := e.MatchOne(Named("GLYPH"))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if res.Center != image.Pt(30, 20) {
		t.Fatalf("center %v, want (30,20)", res.Center)
	}
	if res.CenterScreen != image.Pt(130, 70) {
		t.Fatalf("screen center %v, want (130,70)", res.CenterScreen)
	}
	if res.RegionScreen != at.Add(image.Pt(100, 50)) {
		t.Fatalf("screen region %v", res.RegionScreen)
	}
	if frames.grabs != 1 {
		t.Fatalf("expected one grab, got %d", frames.grabs)
	}
}

// Unknown window offset leaves screen coordinates equal to frame coordinates.
func TestMatchOne_NoOffset(t *testing.T) {
	frame := noiseFrame(40, 40, 7)
	at := image.Rect(5, 6, 15, 16)
	e := NewEngine(nil, &fixedFrames{frame: frame}, nil, nil)
	res, err := e.MatchOne(Raw(cut(frame, at)))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if res.RegionScreen != res.Region || res.CenterScreen != res.Center {
		t.Fatalf("unexpected screen mapping %+v", res)
	}
}

func TestMatchOne_Errors(t *testing.T) {
	e := NewEngine(newTemplates(nil), nil, nil, nil)
	if _, err := e.MatchOne(Named("missing"), WithFrame(noiseFrame(10, 10, 1))); !errors.Is(err, template.ErrAssetMissing) {
		t.Fatalf("want ErrAssetMissing, got %v", err)
	}
	if _, err := e.MatchOne(Raw(noiseFrame(2, 2, 1))); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("want ErrNoFrame, got %v", err)
	}
	e = NewEngine(nil, &fixedFrames{}, nil, nil)
	if _, err := e.MatchOne(Raw(noiseFrame(2, 2, 1))); !errors.Is(err, capture.ErrWindowNotFound) {
		t.Fatalf("want ErrWindowNotFound, got %v", err)
	}
}

// scoredEngine returns an engine whose correlation yields a constant score
// per template width, and a counter of correlation calls.
func scoredEngine(scores map[int]float64) (*Engine, *mapTemplates, *int) {
	tpls := newTemplates(map[string]image.Image{
		"a": image.NewRGBA(image.Rect(0, 0, 3, 3)),
		"b": image.NewRGBA(image.Rect(0, 0, 4, 4)),
		"c": image.NewRGBA(image.Rect(0, 0, 5, 5)),
	})
	calls := 0
	e := NewEngine(tpls, nil, nil, nil)
	e.correlate = func(img, tp plane, _ []bool) scoreMap {
		calls++
		m := scoreMap{W: img.W - tp.W + 1, H: img.H - tp.H + 1}
		m.Scores = make([]float64, m.W*m.H)
		for i := range m.Scores {
			m.Scores[i] = scores[tp.W] * 0.5
		}
		m.Scores[len(m.Scores)-1] = scores[tp.W]
		return m
	}
	return e, tpls, &calls
}

// Best mode picks the highest score; first-above stops at the first hit.
func TestMatchAny_Modes(t *testing.T) {
	frame := noiseFrame(20, 20, 8)
	e, tpls, calls := scoredEngine(map[int]float64{3: 0.5, 4: 0.9, 5: 0.7})

	res, ok, err := e.MatchAny(Names("a", "b", "c"), BestMatch, 0.4, WithFrame(frame))
	if err != nil || !ok {
		t.Fatalf("best: ok=%v err=%v", ok, err)
	}
	if res.Name != "B" || res.Score != 0.9 {
		t.Fatalf("best: got %s %v", res.Name, res.Score)
	}
	if *calls != 3 {
		t.Fatalf("best: expected 3 evaluations, got %d", *calls)
	}

	*calls = 0
	tpls.gets = nil
	res, ok, err = e.MatchAny(Names("a", "b", "c"), FirstAbove, 0.6, WithFrame(frame))
	if err != nil || !ok {
		t.Fatalf("first: ok=%v err=%v", ok, err)
	}
	if res.Name != "B" {
		t.Fatalf("first: got %s", res.Name)
	}
	if *calls != 2 || len(tpls.gets) != 2 {
		t.Fatalf("first: third candidate evaluated (calls=%d gets=%v)", *calls, tpls.gets)
	}
}

// Equal scores go to the earlier candidate; nothing above threshold reports !ok.
func TestMatchAny_TieAndMiss(t *testing.T) {
	frame := noiseFrame(20, 20, 9)
	e, _, _ := scoredEngine(map[int]float64{3: 0.8, 4: 0.8, 5: 0.3})
	res, ok, _ := e.MatchAny(Names("c", "b", "a"), BestMatch, 0.5, WithFrame(frame))
	if !ok || res.Name != "B" {
		t.Fatalf("tie: got %s ok=%v", res.Name, ok)
	}
	res, ok, _ = e.MatchAny(Names("a", "b", "c"), BestMatch, 0.95, WithFrame(frame))
	if ok {
		t.Fatalf("expected no candidate above threshold")
	}
	if res.Name != "A" || res.Score != 0.8 {
		t.Fatalf("diagnostic result: got %s %v", res.Name, res.Score)
	}
}

// MatchAll keeps input order and reports missing templates.
func TestMatchAll(t *testing.T) {
	frame := noiseFrame(20, 20, 10)
	e, _, _ := scoredEngine(map[int]float64{3: 0.1, 4: 0.2, 5: 0.3})
	res, err := e.MatchAll(Names("c", "missing", "a"), WithFrame(frame))
	if !errors.Is(err, template.ErrAssetMissing) {
		t.Fatalf("want ErrAssetMissing, got %v", err)
	}
	if len(res) != 3 || res[0].Score != 0.3 || res[1].Valid || res[2].Score != 0.1 {
		t.Fatalf("unexpected results %+v", res)
	}
}

// Detect applies the element's region and threshold.
func TestDetect(t *testing.T) {
	frame := noiseFrame(120, 80, 11)
	at := image.Rect(70, 40, 82, 50)
	tpls := newTemplates(map[string]image.Image{
		"play_btn":      cut(frame, at),
		"play_btn_gray": noiseFrame(12, 10, 99),
	})
	reg, err := element.Load(strings.NewReader(`
regions:
  play: {x: 60, y: 30, w: 40, h: 30}
  elsewhere: {x: 0, y: 0, w: 40, h: 30}
elements:
  - id: PlayBtn
    names: [PLAY_BTN_GRAY, PLAY_BTN]
    region: play
    best_match: true
    threshold: 0.9
  - id: Hidden
    names: [PLAY_BTN]
    region: elsewhere
    threshold: 0.9
`), nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	e := NewEngine(tpls, &fixedFrames{frame: frame, offset: image.Pt(10, 10), known: true}, reg, nil)
	res, ok, err := e.Detect("playbtn")
	if err != nil || !ok {
		t.Fatalf("detect: ok=%v err=%v", ok, err)
	}
	if res.Name != "PLAY_BTN" || res.Region != at || res.RegionScreen != at.Add(image.Pt(10, 10)) {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, ok, _ := e.Detect("Hidden"); ok {
		t.Fatalf("element outside its region should not be detected")
	}
	if _, _, err := e.Detect("nope"); !errors.Is(err, element.ErrUnknownElement) {
		t.Fatalf("want ErrUnknownElement, got %v", err)
	}
}

func TestCenterOf(t *testing.T) {
	cases := map[image.Rectangle]image.Point{
		image.Rect(0, 0, 10, 10):   image.Pt(5, 5),
		image.Rect(0, 0, 5, 3):     image.Pt(3, 2),
		image.Rect(10, 20, 11, 21): image.Pt(11, 21),
	}
	for r, want := range cases {
		if got := CenterOf(r); got != want {
			t.Errorf("CenterOf(%v)=%v want %v", r, got, want)
		}
	}
}
