// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared process-wide; it caches struct metadata
// and reports field names by their json tag so messages match the names users
// pass on the command line and in query strings.
//
//	type RecommendationQuery struct {
//	    Limit int    `json:"limit" validate:"min=1,max=100"`
//	    Model string `json:"model" validate:"omitempty,model_name"`
//	}
//
//	if verr := validation.ValidateStruct(&q); verr != nil {
//	    rw.ValidationError(verr.Error(), verr.Fields())
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// modelNamePattern matches registry names such as "random" or "item_similarity".
var modelNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// FieldError is a single failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// RequestValidationError collects every failed rule of one struct.
type RequestValidationError struct {
	errors []FieldError
}

// Fields returns the individual field errors.
func (ve *RequestValidationError) Fields() []FieldError {
	return ve.errors
}

// Error joins the field messages.
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve.errors))
	for i, e := range ve.errors {
		messages[i] = e.Message
	}
	return strings.Join(messages, "; ")
}

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		// Registration only fails on an empty tag or nil func.
		_ = validate.RegisterValidation("model_name", func(fl validator.FieldLevel) bool {
			return modelNamePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// ValidateStruct validates s. It returns nil when every rule passes.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{errors: []FieldError{{
			Field:   "unknown",
			Tag:     "unknown",
			Message: err.Error(),
		}}}
	}

	out := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		out[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translateError(fe),
		}
	}
	return &RequestValidationError{errors: out}
}

var errorMessageTemplates = map[string]string{
	"required":   "%s is required",
	"model_name": "%s must be a lowercase model name",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func translateError(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}

	counted := fe.Kind() == reflect.Slice || fe.Kind() == reflect.String
	switch tag {
	case "min":
		if counted {
			return fmt.Sprintf("%s must contain at least %s entries", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if counted {
			return fmt.Sprintf("%s must contain at most %s entries", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
