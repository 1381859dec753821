package element

import (
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/amefumi/abodial/domain/colorfilter"
)

var testColors = map[string]colorfilter.Range{
	"red": {HueLow: -9, SatLow: 110, ValLow: 100, HueHigh: 12, SatHigh: 255, ValHigh: 255},
}

const catalog = `
regions:
  death: {x: 10, y: 20, w: 300, h: 100}
elements:
  - id: YouHaveDied
    names: [YOU_HAVE_DIED]
    region: death
    threshold: 0.9
    color: red
    grayscale: true
  - id: NPCMenu
    names: [TALK, CANCEL]
    best_match: true
`

// Fields resolve from YAML; omitted threshold takes the default.
func TestLoad_ResolvesFields(t *testing.T) {
	reg, err := Load(strings.NewReader(catalog), testColors)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	died, err := reg.Get("youhavedied")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if died.Rect != image.Rect(10, 20, 310, 120) {
		t.Fatalf("unexpected rect %v", died.Rect)
	}
	if died.Threshold != 0.9 || !died.Grayscale || died.Color == nil || died.Color.HueLow != -9 {
		t.Fatalf("unexpected element %+v", died)
	}
	npc, _ := reg.Get("NPCMenu")
	if npc.Threshold != DefaultThreshold || !npc.BestMatch || !npc.Rect.Empty() {
		t.Fatalf("unexpected defaults %+v", npc)
	}
	if ids := reg.IDs(); len(ids) != 2 || ids[0] != "YouHaveDied" || ids[1] != "NPCMenu" {
		t.Fatalf("unexpected order %v", ids)
	}
	if r, ok := reg.Region("DEATH"); !ok || r.Dx() != 300 {
		t.Fatalf("region lookup failed")
	}
}

// Returned elements do not alias registry state.
func TestGet_Copy(t *testing.T) {
	reg, err := Load(strings.NewReader(catalog), testColors)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	e, _ := reg.Get("NPCMenu")
	e.Names[0] = "CHANGED"
	again, _ := reg.Get("NPCMenu")
	if again.Names[0] != "TALK" {
		t.Fatalf("registry mutated through Get")
	}
}

func TestGet_Unknown(t *testing.T) {
	reg, _ := Load(strings.NewReader(catalog), testColors)
	if _, err := reg.Get("nope"); !errors.Is(err, ErrUnknownElement) {
		t.Fatalf("want ErrUnknownElement, got %v", err)
	}
}

// Catalog mistakes are reported at load time.
// Near misses are suggested in the error.
func TestGet_Suggests(t *testing.T) {
	reg, err := Load(strings.NewReader(catalog), testColors)
	if err != nil {
		t.Fatal(err)
	}
	if got := reg.Suggest("ydied", 3); len(got) != 1 || got[0] != "YouHaveDied" {
		t.Fatalf("suggest: %v", got)
	}
	_, err = reg.Get("npcmnu")
	if !errors.Is(err, ErrUnknownElement) || !strings.Contains(err.Error(), "did you mean NPCMenu") {
		t.Fatalf("expected suggestion, got %v", err)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown region": "elements:\n  - id: A\n    names: [X]\n    region: nowhere\n",
		"unknown color":  "elements:\n  - id: A\n    names: [X]\n    color: purple\n",
		"no names":       "elements:\n  - id: A\n",
		"duplicate":      "elements:\n  - id: A\n    names: [X]\n  - id: a\n    names: [Y]\n",
		"bad threshold":  "elements:\n  - id: A\n    names: [X]\n    threshold: 1.5\n",
		"unknown field":  "elements:\n  - id: A\n    names: [X]\n    roi: foo\n",
		"bad region":     "regions:\n  r: {x: 0, y: 0, w: 0, h: 5}\nelements: []\n",
	}
	for name, doc := range cases {
		if _, err := Load(strings.NewReader(doc), testColors); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
