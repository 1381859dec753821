package template

import (
	"errors"
	"fmt"
)

// ErrAssetMissing is matched by every AssetMissingError via errors.Is.
var ErrAssetMissing = errors.New("template: asset missing")

// AssetLoadError reports a file that exists but cannot be decoded. The
// store logs it and leaves the entry out of the catalog.
type AssetLoadError struct {
	Path string
	Err  error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("template: load %s: %v", e.Path, e.Err)
}

func (e *AssetLoadError) Unwrap() error { return e.Err }

// AssetMissingError reports a name that was never discovered on disk.
type AssetMissingError struct {
	Name string
}

func (e *AssetMissingError) Error() string {
	return fmt.Sprintf("template: no asset named %q", e.Name)
}

func (e *AssetMissingError) Is(target error) bool { return target == ErrAssetMissing }
