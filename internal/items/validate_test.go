package items

import (
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/expiry-tracker/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	purchase := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	expiry := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	negative := decimal.NewFromFloat(-1.5)

	require.NoError(t, Validate(ItemInput{Name: "Milk", Quantity: decimal.NewFromInt(2)}))

	err := Validate(ItemInput{
		Quantity:     decimal.NewFromInt(-1),
		SellingPrice: &negative,
		PurchaseDate: &purchase,
		ExpiryDate:   &expiry,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["name"])
	assert.Equal(t, "cannot be negative", details["quantity"])
	assert.Equal(t, "cannot be negative", details["selling_price"])
	assert.Equal(t, "cannot be after expiry_date", details["purchase_date"])
}
