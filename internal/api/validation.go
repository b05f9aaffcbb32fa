package api

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/hkaraki/herfa/internal/models"
)

// RegisterValidations adds the catalog-backed tags to Gin's binding
// engine so request structs can declare `binding:"specialty"` and
// `binding:"governorate"`. Called once from main.
func RegisterValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("specialty", func(fl validator.FieldLevel) bool {
		return models.ValidSpecialty(fl.Field().String())
	})
	_ = v.RegisterValidation("governorate", func(fl validator.FieldLevel) bool {
		return models.ValidGovernorate(fl.Field().String())
	})
}
