package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/and161185/vidtags/internal/errs"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a Video row before it is stored.
func (v Video) Validate() error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: video: %v", errs.ErrInvalidInput, err)
	}
	return nil
}

// Validate checks a User row before it is stored.
func (u User) Validate() error {
	if err := validate.Struct(u); err != nil {
		return fmt.Errorf("%w: user: %v", errs.ErrInvalidInput, err)
	}
	return nil
}
