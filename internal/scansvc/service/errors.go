package service

import (
	"errors"
	"fmt"

	"github.com/strcr/nfc-meals/internal/scansvc/store"
)

var (
	// ErrStorageFailure marks errors where the store could not answer at all,
	// as opposed to answering "not found".
	ErrStorageFailure = errors.New("storage failure")
	ErrInvalidInput   = errors.New("invalid input")
)

// storageErr passes store.ErrNotFound and store.ErrDuplicate through and tags
// everything else as ErrStorageFailure.
func storageErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}
