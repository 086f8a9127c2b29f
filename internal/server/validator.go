package server

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// requestValidator implements echo.Validator.
type requestValidator struct {
	validate *validator.Validate
}

func newValidator() echo.Validator {
	return &requestValidator{validate: validator.New()}
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}
