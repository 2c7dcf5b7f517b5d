package api

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/axellelanca/clicktrail/internal/shortcode"
)

// RegisterValidators adds the "alias" tag to gin's binding engine.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("alias", func(fl validator.FieldLevel) bool {
		return shortcode.IsValidAlias(strings.ToLower(strings.TrimSpace(fl.Field().String())))
	})
}
