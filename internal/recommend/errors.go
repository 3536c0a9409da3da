// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package recommend

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidConfig is returned when a run request or pipeline config fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// UnknownModelError is returned when a requested model name is not registered.
// The run aborts before any generation or write.
type UnknownModelError struct {
	Name      string
	Available []string
}

func (e *UnknownModelError) Error() string {
	avail := append([]string(nil), e.Available...)
	sort.Strings(avail)
	return fmt.Sprintf("unknown model %q (available: %s)", e.Name, strings.Join(avail, ", "))
}

// CatalogUnavailableError is returned when the catalog cannot be loaded.
type CatalogUnavailableError struct {
	Err error
}

func (e *CatalogUnavailableError) Error() string {
	return fmt.Sprintf("catalog unavailable: %v", e.Err)
}

func (e *CatalogUnavailableError) Unwrap() error { return e.Err }

// NotFoundError is returned when a query references an item absent from the
// loaded catalog. The affected target is skipped.
type NotFoundError struct {
	Kind TargetType
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found in catalog", e.Kind, e.ID)
}

// InsufficientCatalogError is returned when sampling asks for more distinct
// items than are available. The affected target is skipped.
type InsufficientCatalogError struct {
	Requested int
	Available int
}

func (e *InsufficientCatalogError) Error() string {
	return fmt.Sprintf("insufficient catalog: requested %d items, %d available", e.Requested, e.Available)
}

// StorePersistError is a single failed write. The run logs it and continues.
type StorePersistError struct {
	TargetKey string
	Model     string
	Err       error
}

func (e *StorePersistError) Error() string {
	return fmt.Sprintf("persist %s for model %s: %v", e.TargetKey, e.Model, e.Err)
}

func (e *StorePersistError) Unwrap() error { return e.Err }

// StoreUnavailableError signals that the store cannot accept further writes.
// When returned from a run, Completed and Pending report how far it got.
type StoreUnavailableError struct {
	Err       error
	Completed int64
	Pending   int64
}

func (e *StoreUnavailableError) Error() string {
	if e.Completed == 0 && e.Pending == 0 {
		return fmt.Sprintf("store unavailable: %v", e.Err)
	}
	return fmt.Sprintf("store unavailable after %d completed targets (%d pending): %v",
		e.Completed, e.Pending, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// IsRecoverable reports whether err only affects a single target and the run
// may continue.
func IsRecoverable(err error) bool {
	var nf *NotFoundError
	var ins *InsufficientCatalogError
	var pe *StorePersistError
	return errors.As(err, &nf) || errors.As(err, &ins) || errors.As(err, &pe)
}
