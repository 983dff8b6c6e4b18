package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrCodeCollision  = errors.New("could not generate a unique code")
	ErrDeliveryFailed = errors.New("invitation delivery failed")
)

var validate = validator.New()

func validateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Clock is the time source shared by the services
type Clock func() time.Time

// SystemClock returns the current time in UTC
func SystemClock() time.Time {
	return time.Now().UTC()
}

// maxCodeAttempts bounds optimistic unique-code generation
const maxCodeAttempts = 5
