package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate проверяет DTO по тегам validate и возвращает apperr.ErrValidation
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%v: %w", err, apperr.ErrValidation)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("некорректные поля (%s): %w", strings.Join(parts, ", "), apperr.ErrValidation)
}
