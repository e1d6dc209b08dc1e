package assetpipe

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors
var (
	// ErrUndefinedReference is returned when a name is not in the manifest,
	// even after on-demand discovery.
	ErrUndefinedReference = errors.New("undefined asset reference")

	// ErrEmptyAsset is returned when compilation produces no output.
	ErrEmptyAsset = errors.New("empty asset")

	// ErrInvalidType is returned for unknown types, or types that cannot be rendered.
	ErrInvalidType = errors.New("invalid asset type")

	// ErrLocked is returned when callbacks are registered on a locked pipeline.
	ErrLocked = errors.New("pipeline is locked")
)

// ValidationError represents one or more validation errors that occurred
// while building a reference or preparing directories.
type ValidationError struct {
	Errors []error
}

// Error implements the error interface.
func (ve *ValidationError) Error() string {
	if len(ve.Errors) == 0 {
		return "validation failed"
	}
	if len(ve.Errors) == 1 {
		return fmt.Sprintf("validation failed: %v", ve.Errors[0])
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "validation failed with %d errors:\n", len(ve.Errors))
	for i, err := range ve.Errors {
		fmt.Fprintf(&buf, "  %d. %v\n", i+1, err)
	}
	return buf.String()
}

// Unwrap returns the underlying errors for use with errors.Is and errors.As.
func (ve *ValidationError) Unwrap() []error {
	return ve.Errors
}

// newValidationError creates a ValidationError from a slice of errors.
// Returns nil if the slice is empty.
func newValidationError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: errs}
}

// UndefinedReferenceError reports a manifest miss.
// Suggestions holds nearby names that do exist.
type UndefinedReferenceError struct {
	Key         string
	Suggestions []string
}

func (e *UndefinedReferenceError) Error() string {
	msg := fmt.Sprintf("missing expected asset %q; run discovery to update the manifest", e.Key)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *UndefinedReferenceError) Is(target error) bool {
	return target == ErrUndefinedReference
}

// EmptyAssetError reports an asset whose compiled output is empty.
type EmptyAssetError struct {
	Name    string
	AssetID string
}

func (e *EmptyAssetError) Error() string {
	name := e.Name
	if e.AssetID != "" {
		name += "#" + e.AssetID
	}
	return fmt.Sprintf("the asset %q source is empty after compilation", name)
}

func (e *EmptyAssetError) Is(target error) bool {
	return target == ErrEmptyAsset
}

// InvalidTypeError reports a type that is unknown or not supported by an operation.
type InvalidTypeError struct {
	Type   string
	Reason string
}

func (e *InvalidTypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid asset type %q: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("invalid asset type %q", e.Type)
}

func (e *InvalidTypeError) Is(target error) bool {
	return target == ErrInvalidType
}
