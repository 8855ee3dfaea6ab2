package items

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/expiry-tracker/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ItemInput is the user-editable shape of an item. Updates replace every field.
type ItemInput struct {
	Name         string           `json:"name" validate:"required,max=100"`
	Description  *string          `json:"description,omitempty" validate:"omitempty,max=2000"`
	Quantity     decimal.Decimal  `json:"quantity" validate:"gte=0"`
	Unit         string           `json:"unit" validate:"omitempty,max=20"`
	PurchaseDate *time.Time       `json:"purchase_date,omitempty"`
	ExpiryDate   *time.Time       `json:"expiry_date,omitempty"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
	SellingPrice *decimal.Decimal `json:"selling_price,omitempty" validate:"omitempty,gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Validate rejects negative quantities or prices and a purchase date after the
// expiry date. Field problems are reported together in the error details.
func Validate(input ItemInput) error {
	details := map[string]string{}
	if err := validate.Struct(input); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
		}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
	}
	if input.PurchaseDate != nil && input.ExpiryDate != nil && input.PurchaseDate.After(*input.ExpiryDate) {
		details["purchase_date"] = "cannot be after expiry_date"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "cannot be negative"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return "is invalid"
}
