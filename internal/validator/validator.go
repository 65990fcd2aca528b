// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"reflect"
	"strconv"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"papertrade/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn installs the custom rules on v.
func RegisterOn(v *validator.Validate) {
	// decimal.Decimal fields are validated through their string form.
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	_ = v.RegisterValidation("positive_decimal", validatePositiveDecimal)
	_ = v.RegisterValidation("max_places", validateMaxPlaces)
	_ = v.RegisterValidation("asset_category", validateAssetCategory)
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

func validatePositiveDecimal(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.IsPositive()
}

// validateMaxPlaces rejects decimals with more fractional digits than the
// tag parameter, e.g. max_places=4.
func validateMaxPlaces(fl validator.FieldLevel) bool {
	places, err := strconv.ParseInt(fl.Param(), 10, 32)
	if err != nil {
		return false
	}
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.Equal(d.Truncate(int32(places)))
}

func validateAssetCategory(fl validator.FieldLevel) bool {
	_, err := models.ParseAssetCategory(fl.Field().String())
	return err == nil
}
