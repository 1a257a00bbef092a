package surface

import (
	"errors"
	"fmt"
)

var (
	// ErrMount is returned when a surface cannot be created.
	ErrMount = errors.New("surface mount failed")

	// ErrDestroyed is returned by every call on a destroyed surface.
	ErrDestroyed = errors.New("surface destroyed")

	// ErrImageLoad is reported when the panorama cannot be fetched or decoded.
	ErrImageLoad = errors.New("panorama image load failed")
)

// MountError describes why Mount refused to create a surface.
type MountError struct {
	Reason string
	Err    error
}

func (e *MountError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mount: %s: %v", e.Reason, e.Err)
	}
	return "mount: " + e.Reason
}

func (e *MountError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMount, e.Err}
	}
	return []error{ErrMount}
}

// ImageLoadError reports an asynchronous load failure for one image URL.
type ImageLoadError struct {
	URL string
	Err error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("load %q: %v", e.URL, e.Err)
}

func (e *ImageLoadError) Unwrap() []error {
	return []error{ErrImageLoad, e.Err}
}

func destroyed(op string) error {
	return fmt.Errorf("%s: %w", op, ErrDestroyed)
}
