package reflar

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIOFailure            = errors.New("reflar: io failure")
	ErrMalformedDocument    = errors.New("reflar: malformed document")
	ErrUnsupportedFieldType = errors.New("reflar: unsupported field type")
	ErrDanglingReference    = errors.New("reflar: dangling reference")
	ErrAlreadyPrepared      = errors.New("reflar: archive already prepared")
	ErrNotPointer           = errors.New("reflar: expected a non-nil pointer")
)

// PathError reports where in the document a save or load failed. Path runs
// from the outermost key down to the failing node.
type PathError struct {
	Path []string
	Err  error
}

func (e *PathError) Error() string {
	return "reflar: " + strings.Join(e.Path, "/") + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// atPath prefixes err with seg, extending an existing PathError.
func atPath(seg string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PathError
	if errors.As(err, &pe) {
		pe.Path = append([]string{seg}, pe.Path...)
		return pe
	}
	return &PathError{Path: []string{seg}, Err: err}
}

func malformed(err error) error {
	if errors.Is(err, ErrMalformedDocument) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrMalformedDocument, err)
}

func malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedDocument, fmt.Sprintf(format, args...))
}

func unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedFieldType, fmt.Sprintf(format, args...))
}
