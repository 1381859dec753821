package colorfilter

import (
	"errors"
	"fmt"
)

// HueMax is the size of the circular hue axis (OpenCV 8-bit convention).
const HueMax = 180

var (
	ErrDoubleWrap   = errors.New("colorfilter: hue range wraps on both ends")
	ErrRangeLength  = errors.New("colorfilter: range needs six bounds")
	ErrInvertedBand = errors.New("colorfilter: low bound above high bound")
)

// Range bounds a band in HSV space. HueLow may be negative (the band wraps
// below zero) or HueHigh may exceed HueMax (the band wraps above 180), but
// not both. Saturation and value are linear on [0,255].
type Range struct {
	HueLow, SatLow, ValLow    int
	HueHigh, SatHigh, ValHigh int
}

// FromSlice builds a Range from the six-value form used in config files:
// hLow, sLow, vLow, hHigh, sHigh, vHigh.
func FromSlice(v []int) (Range, error) {
	if len(v) != 6 {
		return Range{}, fmt.Errorf("%w: got %d", ErrRangeLength, len(v))
	}
	r := Range{
		HueLow: v[0], SatLow: v[1], ValLow: v[2],
		HueHigh: v[3], SatHigh: v[4], ValHigh: v[5],
	}
	return r, r.Validate()
}

// Validate checks the wraparound invariant and band ordering.
func (r Range) Validate() error {
	if r.HueLow < 0 && r.HueHigh > HueMax {
		return fmt.Errorf("%w: [%d,%d]", ErrDoubleWrap, r.HueLow, r.HueHigh)
	}
	if r.HueLow > r.HueHigh || r.SatLow > r.SatHigh || r.ValLow > r.ValHigh {
		return fmt.Errorf("%w: %v", ErrInvertedBand, r)
	}
	return nil
}

// Wraps reports whether the hue band crosses the 0/180 seam.
func (r Range) Wraps() bool {
	return r.HueLow < 0 || r.HueHigh > HueMax
}

// Split expands a wrapping band into the linear sub-ranges whose union it
// covers. A band fully inside [0,180] is returned unchanged.
func (r Range) Split() []Range {
	switch {
	case r.HueLow < 0:
		lower := r
		lower.HueLow = 0
		upper := r
		upper.HueLow = HueMax + r.HueLow
		upper.HueHigh = HueMax
		return []Range{lower, upper}
	case r.HueHigh > HueMax:
		upper := r
		upper.HueHigh = HueMax
		lower := r
		lower.HueLow = 0
		lower.HueHigh = r.HueHigh - HueMax
		return []Range{upper, lower}
	default:
		return []Range{r}
	}
}

// Contains is an inclusive in-range test on a single HSV triple. It does
// not unwrap; callers go through Split first.
func (r Range) Contains(h, s, v uint8) bool {
	return int(h) >= r.HueLow && int(h) <= r.HueHigh &&
		int(s) >= r.SatLow && int(s) <= r.SatHigh &&
		int(v) >= r.ValLow && int(v) <= r.ValHigh
}

func (r Range) String() string {
	return fmt.Sprintf("h[%d,%d] s[%d,%d] v[%d,%d]", r.HueLow, r.HueHigh, r.SatLow, r.SatHigh, r.ValLow, r.ValHigh)
}
