package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field limits carried over from the original database schema.
const (
	MaxNameLength   = 50
	MaxTextLength   = 255
	MaxStreetNumber = 255
)

// ErrValidation is wrapped by every validation failure.
var ErrValidation = errors.New("invalid input")

func checkText(name, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, name)
	}
	if n := utf8.RuneCountInString(value); n > max {
		return fmt.Errorf("%w: %s must be at most %d characters, got %d", ErrValidation, name, max, n)
	}
	return nil
}
