package dedup

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded is returned by Put and Flush before a successful Load.
	ErrNotLoaded = errors.New("store not loaded")
)

type ErrorKind string

const (
	KindCorrupt ErrorKind = "corrupt"
	KindIO      ErrorKind = "io"
)

// StoreError reports a backing store that could not be read or written.
type StoreError struct {
	Kind     ErrorKind
	Op       string //"load" or "flush"
	Location string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s (%s): %v", e.Op, e.Kind, e.Location, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsCorrupt reports whether err is a StoreError of kind corrupt.
func IsCorrupt(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindCorrupt
}

func corruptErr(op, location string, err error) *StoreError {
	return &StoreError{Kind: KindCorrupt, Op: op, Location: location, Err: err}
}

func ioErr(op, location string, err error) *StoreError {
	return &StoreError{Kind: KindIO, Op: op, Location: location, Err: err}
}

// asStoreError keeps an existing StoreError and wraps anything else as io.
func asStoreError(op, location string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return ioErr(op, location, err)
}
