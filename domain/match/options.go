package match

import (
	"image"

	"github.com/amefumi/abodial/domain/colorfilter"
)

// Option adjusts a single match call.
type Option func(*options)

type options struct {
	frame     image.Image
	region    image.Rectangle
	hasRegion bool
	color     *colorfilter.Range
	grayscale bool
	forceNew  bool
}

func collect(opts []Option) options {
	var o options
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// WithFrame matches against img instead of grabbing from the frame source.
func WithFrame(img image.Image) Option {
	return func(o *options) { o.frame = img }
}

// WithRegion restricts the search to r in frame-local coordinates. The
// region is clipped to the frame.
func WithRegion(r image.Rectangle) Option {
	return func(o *options) {
		o.region = r
		o.hasRegion = true
	}
}

// WithColor filters region and template by rng before correlating. It
// takes precedence over WithGrayscale.
func WithColor(rng colorfilter.Range) Option {
	return func(o *options) { o.color = &rng }
}

// WithGrayscale correlates single-channel luma instead of colour.
func WithGrayscale() Option {
	return func(o *options) { o.grayscale = true }
}

// WithFreshFrame forces the frame source to capture instead of serving a
// cached frame.
func WithFreshFrame() Option {
	return func(o *options) { o.forceNew = true }
}
