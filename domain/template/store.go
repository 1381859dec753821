package template

import (
	"errors"
	"image"
	"io/fs"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

// Store is the catalog of templates found under a set of asset directories.
// The catalog is built on first access, exactly once, and never changes.
type Store struct {
	dirs   []string
	exts   map[string]struct{}
	logger *slog.Logger
	open   func(path string) (image.Image, error)

	once   sync.Once
	byName map[string]*Template
}

// NewStore returns a store over dirs. Files are eligible when their
// extension (case-insensitive) is in exts; an empty exts means ".png".
func NewStore(dirs, exts []string, logger *slog.Logger) *Store {
	if len(exts) == 0 {
		exts = []string{".png"}
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return &Store{
		dirs:   slices.Clone(dirs),
		exts:   set,
		logger: logger,
		open:   func(p string) (image.Image, error) { return imaging.Open(p) },
	}
}

// Get returns the template registered under name (case-insensitive).
func (s *Store) Get(name string) (*Template, error) {
	s.once.Do(s.populate)
	t, ok := s.byName[NormalizeName(name)]
	if !ok {
		err := &AssetMissingError{Name: name}
		if s.logger != nil {
			s.logger.Warn("template missing", "name", name)
		}
		return nil, err
	}
	return t, nil
}

// All returns a copy of the full catalog keyed by normalized name.
func (s *Store) All() map[string]*Template {
	s.once.Do(s.populate)
	return maps.Clone(s.byName)
}

// Names lists catalog keys in sorted order.
func (s *Store) Names() []string {
	s.once.Do(s.populate)
	return slices.Sorted(maps.Keys(s.byName))
}

func (s *Store) populate() {
	s.byName = make(map[string]*Template)
	for _, dir := range s.dirs {
		err := filepath.WalkDir(dir, s.visit(dir))
		if err != nil && s.logger != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("asset dir not found", "dir", dir)
			} else {
				s.logger.Error("asset dir walk failed", "dir", dir, "err", err)
			}
		}
	}
	if s.logger != nil {
		s.logger.Debug("templates loaded", "count", len(s.byName), "dirs", s.dirs)
	}
}

// visit adds matching files under root. An unreadable entry below root is
// logged and skipped so its siblings still load.
func (s *Store) visit(root string) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if s.logger != nil {
				s.logger.Warn("asset entry unreadable", "path", path, "err", err)
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := s.exts[ext]; !ok {
			return nil
		}
		s.add(path, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		return nil
	}
}

func (s *Store) add(path, stem string) {
	key := NormalizeName(stem)
	if prev, ok := s.byName[key]; ok {
		if s.logger != nil {
			s.logger.Warn("duplicate template name", "name", key, "kept", prev.Path, "ignored", path)
		}
		return
	}
	img, err := s.open(path)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("template decode failed", "err", &AssetLoadError{Path: path, Err: err})
		}
		return
	}
	t := FromImage(key, img)
	t.Path = path
	if t.Hash != nil && s.logger != nil {
		for _, other := range s.byName {
			if other.Hash == nil || other.Size() != t.Size() {
				continue
			}
			if d, err := t.Hash.Distance(other.Hash); err == nil && d == 0 {
				s.logger.Warn("duplicate template image", "name", key, "same_as", other.Name)
			}
		}
	}
	s.byName[key] = t
}
