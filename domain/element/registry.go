// Package element is the catalog of named UI elements: which templates
// represent each element, where on screen to look, the score an element
// needs to count as present, and how the search region is preprocessed.
// A Registry is built once at startup and is read-only afterwards.
package element

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/amefumi/abodial/domain/colorfilter"
)

// DefaultThreshold applies to elements that do not set one.
const DefaultThreshold = 0.68

var ErrUnknownElement = errors.New("element: unknown element")

// Element holds the matching parameters for one UI element.
type Element struct {
	ID        string
	Names     []string
	Region    string
	Rect      image.Rectangle // resolved Region; empty means the whole frame
	Threshold float64
	BestMatch bool
	Grayscale bool
	ColorName string
	Color     *colorfilter.Range
}

type regionDef struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

type elementDef struct {
	ID        string   `yaml:"id"`
	Names     []string `yaml:"names"`
	Region    string   `yaml:"region,omitempty"`
	Threshold *float64 `yaml:"threshold,omitempty"`
	BestMatch bool     `yaml:"best_match,omitempty"`
	Grayscale bool     `yaml:"grayscale,omitempty"`
	Color     string   `yaml:"color,omitempty"`
}

type catalogFile struct {
	Regions  map[string]regionDef `yaml:"regions"`
	Elements []elementDef         `yaml:"elements"`
}

// Registry maps element IDs (case-insensitive) to their parameters.
type Registry struct {
	elements map[string]Element
	order    []string
	regions  map[string]image.Rectangle
}

// LoadFile parses a YAML catalog from path.
func LoadFile(path string, colors map[string]colorfilter.Range) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("element: open catalog: %w", err)
	}
	defer f.Close()
	return Load(f, colors)
}

// Load parses a YAML catalog. Color names resolve against colors; an
// unknown region or color is an error.
func Load(r io.Reader, colors map[string]colorfilter.Range) (*Registry, error) {
	var cf catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("element: parse catalog: %w", err)
	}

	reg := &Registry{
		elements: make(map[string]Element, len(cf.Elements)),
		regions:  make(map[string]image.Rectangle, len(cf.Regions)),
	}
	for name, d := range cf.Regions {
		if d.W <= 0 || d.H <= 0 || d.X < 0 || d.Y < 0 {
			return nil, fmt.Errorf("element: region %q has invalid bounds %+v", name, d)
		}
		reg.regions[strings.ToLower(name)] = image.Rect(d.X, d.Y, d.X+d.W, d.Y+d.H)
	}

	for i, d := range cf.Elements {
		if d.ID == "" {
			return nil, fmt.Errorf("element: entry %d has no id", i)
		}
		key := strings.ToLower(d.ID)
		if _, dup := reg.elements[key]; dup {
			return nil, fmt.Errorf("element: duplicate id %q", d.ID)
		}
		if len(d.Names) == 0 {
			return nil, fmt.Errorf("element: %s lists no templates", d.ID)
		}
		e := Element{
			ID:        d.ID,
			Names:     slices.Clone(d.Names),
			Region:    d.Region,
			Threshold: DefaultThreshold,
			BestMatch: d.BestMatch,
			Grayscale: d.Grayscale,
			ColorName: d.Color,
		}
		if d.Threshold != nil {
			e.Threshold = *d.Threshold
		}
		if e.Threshold < 0 || e.Threshold > 1 {
			return nil, fmt.Errorf("element: %s threshold %v outside [0,1]", d.ID, e.Threshold)
		}
		if d.Region != "" {
			rect, ok := reg.regions[strings.ToLower(d.Region)]
			if !ok {
				return nil, fmt.Errorf("element: %s references unknown region %q", d.ID, d.Region)
			}
			e.Rect = rect
		}
		if d.Color != "" {
			rng, ok := colors[strings.ToLower(d.Color)]
			if !ok {
				return nil, fmt.Errorf("element: %s references unknown color %q", d.ID, d.Color)
			}
			e.Color = &rng
		}
		reg.elements[key] = e
		reg.order = append(reg.order, d.ID)
	}
	return reg, nil
}

// Get returns the element registered under id.
func (r *Registry) Get(id string) (Element, error) {
	e, ok := r.elements[strings.ToLower(id)]
	if !ok {
		if near := r.Suggest(id, 3); len(near) > 0 {
			return Element{}, fmt.Errorf("%w: %q (did you mean %s?)", ErrUnknownElement, id, strings.Join(near, ", "))
		}
		return Element{}, fmt.Errorf("%w: %q", ErrUnknownElement, id)
	}
	e.Names = slices.Clone(e.Names)
	return e, nil
}

// Suggest returns up to limit element IDs that fuzzily match id, best
// first.
func (r *Registry) Suggest(id string, limit int) []string {
	keys := make([]string, len(r.order))
	for i, k := range r.order {
		keys[i] = strings.ToLower(k)
	}
	matches := fuzzy.Find(strings.ToLower(id), keys)
	out := make([]string, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, r.order[m.Index])
	}
	return out
}

// IDs lists element IDs in catalog order.
func (r *Registry) IDs() []string {
	return slices.Clone(r.order)
}

// Region returns a named region in frame-local coordinates.
func (r *Registry) Region(name string) (image.Rectangle, bool) {
	rect, ok := r.regions[strings.ToLower(name)]
	return rect, ok
}
