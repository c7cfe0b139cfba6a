package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidatePosting checks that a decoded posting carries the fields the
// client relies on. A posting without a hash cannot be deduplicated.
func ValidatePosting(p Posting) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid posting %q: %w", p.Hash, err)
	}
	return nil
}
