package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/jwalitptl/dentallab-api/pkg/errors"
)

type sample struct {
	Name  string  `validate:"required"`
	Price float64 `validate:"gte=0"`
	Email string  `validate:"omitempty,email"`
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(sample{Name: "Crown", Price: 10}))

	err := Validate(sample{Price: -1, Email: "nope"})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	assert.Contains(t, err.Error(), "Name is required")
	assert.Contains(t, err.Error(), "Price must be at least 0")
	assert.Contains(t, err.Error(), "Email must be a valid email")
}
