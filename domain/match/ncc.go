package match

import (
	"image"
	"math"
)

// plane is a channel-interleaved float image anchored at the origin.
type plane struct {
	W, H, C int
	Pix     []float64
}

func planeFromRGBA(img *image.RGBA) plane {
	b := img.Bounds()
	p := plane{W: b.Dx(), H: b.Dy(), C: 3}
	p.Pix = make([]float64, p.W*p.H*3)
	for y := 0; y < p.H; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < p.W; x++ {
			o := (y*p.W + x) * 3
			p.Pix[o] = float64(row[x*4])
			p.Pix[o+1] = float64(row[x*4+1])
			p.Pix[o+2] = float64(row[x*4+2])
		}
	}
	return p
}

func planeFromGray(img *image.Gray) plane {
	b := img.Bounds()
	p := plane{W: b.Dx(), H: b.Dy(), C: 1}
	p.Pix = make([]float64, p.W*p.H)
	for y := 0; y < p.H; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < p.W; x++ {
			p.Pix[y*p.W+x] = float64(row[x])
		}
	}
	return p
}

// integrals holds zero-padded summed-area tables, one per channel plus one
// for the sum of squares over all channels. Tables are (W+1)*(H+1).
type integrals struct {
	stride int
	sum    [][]float64
	sq     []float64
}

func buildIntegrals(p plane) integrals {
	st := p.W + 1
	in := integrals{stride: st, sum: make([][]float64, p.C), sq: make([]float64, st*(p.H+1))}
	for c := range in.sum {
		in.sum[c] = make([]float64, st*(p.H+1))
	}
	for y := 0; y < p.H; y++ {
		rowSq := 0.0
		rowSum := make([]float64, p.C)
		for x := 0; x < p.W; x++ {
			o := (y*p.W + x) * p.C
			for c := 0; c < p.C; c++ {
				v := p.Pix[o+c]
				rowSum[c] += v
				rowSq += v * v
				in.sum[c][(y+1)*st+x+1] = in.sum[c][y*st+x+1] + rowSum[c]
			}
			in.sq[(y+1)*st+x+1] = in.sq[y*st+x+1] + rowSq
		}
	}
	return in
}

// window returns the sum over [x,x+w) x [y,y+h) of table t.
func (in integrals) window(t []float64, x, y, w, h int) float64 {
	st := in.stride
	return t[(y+h)*st+x+w] - t[y*st+x+w] - t[(y+h)*st+x] + t[y*st+x]
}

// scoreMap holds one correlation score per template placement, row-major.
type scoreMap struct {
	W, H   int
	Scores []float64
}

// sanitize replaces NaN and infinities with 0 and reports how many it fixed.
func (m scoreMap) sanitize() int {
	n := 0
	for i, v := range m.Scores {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			m.Scores[i] = 0
			n++
		}
	}
	return n
}

// argmax returns the first position (row-major) holding the maximum score.
func (m scoreMap) argmax() (image.Point, float64) {
	best := math.Inf(-1)
	var at image.Point
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if v := m.Scores[y*m.W+x]; v > best {
				best = v
				at = image.Pt(x, y)
			}
		}
	}
	return at, best
}

// correlate computes the zero-mean normalised cross-correlation of tpl at
// every placement inside img:
//
//	score = Σ T'·I' / sqrt(Σ T'² · Σ I'²)
//
// where T' and I' are the template and window with their per-channel means
// removed and sums run over all channels. When mask is non-nil only pixels
// with a true entry take part, means included. Degenerate windows produce
// NaN or Inf; callers sanitize.
func correlate(img, tpl plane, mask []bool) scoreMap {
	m := scoreMap{W: img.W - tpl.W + 1, H: img.H - tpl.H + 1}
	if m.W <= 0 || m.H <= 0 || img.C != tpl.C {
		return scoreMap{}
	}
	m.Scores = make([]float64, m.W*m.H)
	C := tpl.C

	// Active template pixels and their offsets within an image window.
	var tplIdx, imgOff []int
	for py := 0; py < tpl.H; py++ {
		for px := 0; px < tpl.W; px++ {
			i := py*tpl.W + px
			if mask != nil && !mask[i] {
				continue
			}
			tplIdx = append(tplIdx, i)
			imgOff = append(imgOff, py*img.W+px)
		}
	}
	n := float64(len(tplIdx))

	mean := make([]float64, C)
	for _, i := range tplIdx {
		for c := 0; c < C; c++ {
			mean[c] += tpl.Pix[i*C+c]
		}
	}
	for c := range mean {
		mean[c] /= n
	}
	tz := make([]float64, len(tplIdx)*C)
	tnorm := 0.0
	for k, i := range tplIdx {
		for c := 0; c < C; c++ {
			v := tpl.Pix[i*C+c] - mean[c]
			tz[k*C+c] = v
			tnorm += v * v
		}
	}

	var in integrals
	if mask == nil {
		in = buildIntegrals(img)
	}

	parallelRows(m.H, m.W*len(tplIdx)*C, func(y0, y1 int) {
		sums := make([]float64, C)
		for y := y0; y < y1; y++ {
			for x := 0; x < m.W; x++ {
				base := y*img.W + x
				var numer, sq float64
				for c := range sums {
					sums[c] = 0
				}
				if mask == nil {
					for k, off := range imgOff {
						ii := (base + off) * C
						for c := 0; c < C; c++ {
							numer += img.Pix[ii+c] * tz[k*C+c]
						}
					}
					for c := 0; c < C; c++ {
						sums[c] = in.window(in.sum[c], x, y, tpl.W, tpl.H)
					}
					sq = in.window(in.sq, x, y, tpl.W, tpl.H)
				} else {
					for k, off := range imgOff {
						ii := (base + off) * C
						for c := 0; c < C; c++ {
							v := img.Pix[ii+c]
							numer += v * tz[k*C+c]
							sums[c] += v
							sq += v * v
						}
					}
				}
				varI := sq
				for _, s := range sums {
					varI -= s * s / n
				}
				if varI < 0 {
					varI = 0
				}
				score := numer / math.Sqrt(tnorm*varI)
				if !math.IsNaN(score) && !math.IsInf(score, 0) {
					score = max(-1, min(1, score))
				}
				m.Scores[y*m.W+x] = score
			}
		}
	})
	return m
}
