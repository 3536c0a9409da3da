// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package api

import (
	"fmt"
	"net/http"
)

// requestError is a client-facing failure raised while loading a response.
// It is never cached.
type requestError struct {
	status  int
	code    string
	message string
	details interface{}
}

func (e *requestError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.status, e.code, e.message)
}

func badRequest(message string) error {
	return &requestError{status: http.StatusBadRequest, code: ErrCodeBadRequest, message: message}
}

func notFound(message string, details interface{}) error {
	return &requestError{status: http.StatusNotFound, code: ErrCodeNotFound, message: message, details: details}
}
