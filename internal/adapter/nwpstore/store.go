// Package nwpstore reads and writes the on-disk forecast store: one
// directory per model run named by its init id, NetCDF field files inside,
// and published JSON artifacts alongside them.
package nwpstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/lakewx/nwp-blend/internal/domain"
)

// Store is the filesystem-backed field and artifact store.
type Store struct {
	root   string
	layout string
	initRe *regexp.Regexp
	logger *slog.Logger
}

// New creates a store rooted at root. dateLayout is the Go reference layout
// for init ids; run discovery only considers directories whose names have
// exactly the layout's width in digits.
func New(root, dateLayout string, logger *slog.Logger) *Store {
	return &Store{
		root:   root,
		layout: dateLayout,
		initRe: regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, len(dateLayout))),
		logger: logger,
	}
}

// ParseInit parses a run id back into its UTC initialization time.
func (s *Store) ParseInit(id string) (time.Time, error) {
	t, err := time.Parse(s.layout, id)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse init id %q: %w", id, err)
	}
	return t.UTC(), nil
}

// FormatInit renders an initialization time as a run id.
func (s *Store) FormatInit(t time.Time) string {
	return t.UTC().Format(s.layout)
}

func fieldFileName(model, init, parameter string) string {
	return fmt.Sprintf("%s-%s-%s.nc", model, init, parameter)
}

// FieldPath returns the local path of one field file:
// {root}/{init}/{MODEL}-{init}-{PARAMETER}.nc.
func (s *Store) FieldPath(model, init, parameter string) string {
	return filepath.Join(s.root, init, fieldFileName(model, init, parameter))
}

// FieldExists reports whether the field file is present.
func (s *Store) FieldExists(model, init, parameter string) bool {
	_, err := os.Stat(s.FieldPath(model, init, parameter))
	return err == nil
}

// ReadField loads one parameter field of a model run. A missing file yields
// a domain.MissingInputError; a file that exists but lacks the parameter
// variable yields a domain.MissingParameterError.
func (s *Store) ReadField(model, init, parameter string) (*domain.Field, error) {
	path := s.FieldPath(model, init, parameter)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.MissingInputError{Model: model, Parameter: parameter, Path: path}
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	field, err := decodeField(f, parameter)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return field, nil
}

// WriteField stores a field under the run directory, creating it if needed.
// The file is written to a temporary name and renamed into place so readers
// never observe a partial field.
func (s *Store) WriteField(model, init string, field *domain.Field) error {
	if err := field.Validate(); err != nil {
		return err
	}
	dir := filepath.Join(s.root, init)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run directory %s: %w", dir, err)
	}

	final := s.FieldPath(model, init, field.Parameter)
	tmp := final + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if err := encodeField(f, field); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", final, err)
	}
	return nil
}
