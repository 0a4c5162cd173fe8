package detector

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"spacedetect/processing/frame"
)

// ResultStore is the directory the single-shot paths write annotated
// images into. It only ever holds the output of the latest run.
type ResultStore struct {
	dir string
}

func NewResultStore(dir string) *ResultStore {
	return &ResultStore{dir: dir}
}

func (s *ResultStore) Dir() string { return s.dir }

// Clear removes every file left by a previous run.
func (s *ResultStore) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "read %s", s.dir)
	}

	var errs error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		errs = multierr.Append(errs, os.Remove(filepath.Join(s.dir, e.Name())))
	}
	return errs
}

func (s *ResultStore) Save(img image.Image, name string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %s", s.dir)
	}
	path := filepath.Join(s.dir, name)
	if err := frame.Save(img, path); err != nil {
		return "", err
	}
	return path, nil
}

// ResultImage returns the first image in the directory by name, or "" when
// there is none.
func (s *ResultStore) ResultImage() (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrapf(err, "read %s", s.dir)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && isImage(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return filepath.Join(s.dir, names[0]), nil
}

func isImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range frame.ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
