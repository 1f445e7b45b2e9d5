// Package validator runs the validate struct tags declared on request
// bodies and turns failures into user-facing messages keyed by JSON field.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

// Messages recorded per failing field.
const (
	MsgRequired         = "is required"
	MsgInvalidEmail     = "Invalid email address"
	MsgPasswordMismatch = "Passwords do not match!"
	MsgPasswordTooLong  = "Password must be at most 72 bytes"
	MsgInvalid          = "is invalid"
)

// bcrypt ignores everything past 72 bytes. max=72 would count runes.
const maxPasswordBytes = 72

// The validator caches struct metadata and is safe for concurrent use.
var validate = newValidate()

func newValidate() *playground.Validate {
	v := playground.New(playground.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("bcryptmax", func(fl playground.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	}); err != nil {
		panic(err)
	}
	return v
}

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// Add records message for field unless the field already failed.
func (v ValidationErrors) Add(field, message string) {
	if _, ok := v[field]; !ok {
		v[field] = message
	}
}

// HasRequired reports whether any field failed for being blank.
func (v ValidationErrors) HasRequired() bool {
	for _, msg := range v {
		if msg == MsgRequired {
			return true
		}
	}
	return false
}

// First returns the message of the alphabetically first failing field.
func (v ValidationErrors) First() string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return v[keys[0]]
}

// Struct validates s against its validate tags. The returned map is empty
// when s is valid; the error is only set when s cannot be validated at all.
func Struct(s any) (ValidationErrors, error) {
	errs := make(ValidationErrors)

	err := validate.Struct(s)
	if err == nil {
		return errs, nil
	}

	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil, fmt.Errorf("validate %T: %w", s, err)
	}
	for _, fe := range fieldErrs {
		errs.Add(fe.Field(), message(fe))
	}
	return errs, nil
}

func message(fe playground.FieldError) string {
	switch fe.Tag() {
	case "required":
		return MsgRequired
	case "email":
		return MsgInvalidEmail
	case "eqfield":
		return MsgPasswordMismatch
	case "bcryptmax":
		return MsgPasswordTooLong
	default:
		return MsgInvalid
	}
}
