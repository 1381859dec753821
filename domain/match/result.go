package match

import (
	"fmt"
	"image"
)

// Result is the outcome of one matching attempt. Region and Center are
// frame-local; RegionScreen and CenterScreen add the window offset.
type Result struct {
	Name         string
	Score        float64
	Region       image.Rectangle
	RegionScreen image.Rectangle
	Center       image.Point
	CenterScreen image.Point
	Valid        bool
}

func invalid(name string) Result {
	return Result{Name: name, Score: -1}
}

// CenterOf returns the midpoint of r, rounding halves up.
func CenterOf(r image.Rectangle) image.Point {
	return image.Pt(r.Min.X+(r.Dx()+1)/2, r.Min.Y+(r.Dy()+1)/2)
}

// RegionTooSmallError reports a search region that is not strictly larger
// than the template in both dimensions.
type RegionTooSmallError struct {
	Name         string
	ROI          image.Rectangle
	RegionSize   image.Point
	TemplateSize image.Point
}

func (e *RegionTooSmallError) Error() string {
	return fmt.Sprintf("match: region %v (%dx%d) not larger than template %q (%dx%d)",
		e.ROI, e.RegionSize.X, e.RegionSize.Y, e.Name, e.TemplateSize.X, e.TemplateSize.Y)
}
