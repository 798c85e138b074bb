package domain

import "fmt"

// GridError indicates a malformed or missing grid mapping on a raster.
// Fatal for that file; the batch skips it and continues.
type GridError struct {
	Unit string // file or product the grid belongs to
	Err  error
}

func (e *GridError) Error() string {
	return fmt.Sprintf("grid error in %s: %v", e.Unit, e.Err)
}

func (e *GridError) Unwrap() error { return e.Err }

// GeometryError indicates a malformed site boundary. Fatal for that site;
// other sites in the batch are unaffected.
type GeometryError struct {
	Site string
	Err  error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry error for site %s: %v", e.Site, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }

// IOFailure indicates an unwritable or unreadable output destination.
// Fatal for that output only.
type IOFailure struct {
	Path string
	Err  error
}

func (e *IOFailure) Error() string {
	return fmt.Sprintf("io failure at %s: %v", e.Path, e.Err)
}

func (e *IOFailure) Unwrap() error { return e.Err }
