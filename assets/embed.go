package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
)

// ElementsYAML contains the default element catalog for a 1280x720 client
// area.
//
//go:embed elements.yaml
var ElementsYAML []byte

// Elements returns a reader over the embedded catalog.
func Elements() (io.Reader, error) {
	if len(ElementsYAML) == 0 {
		return nil, fmt.Errorf("embedded elements.yaml is empty")
	}
	return bytes.NewReader(ElementsYAML), nil
}
