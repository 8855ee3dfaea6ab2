package zoho

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Amount is a decimal that marshals as a bare JSON number.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d.
func NewAmount(d decimal.Decimal) *Amount {
	return &Amount{Decimal: d}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// ID accepts both quoted and numeric identifiers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Item is a remote inventory item as returned by the API.
type Item struct {
	ItemID       ID     `json:"item_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Unit         string `json:"unit"`
	Status       string `json:"status"`
	Rate         Amount `json:"rate"`
	PurchaseRate Amount `json:"purchase_rate"`
	StockOnHand  Amount `json:"stock_on_hand"`
}

// ItemPayload is the body of create and update calls. Unset pointers are
// omitted.
type ItemPayload struct {
	Name             string  `json:"name,omitempty"`
	Description      *string `json:"description,omitempty"`
	Unit             string  `json:"unit,omitempty"`
	Status           string  `json:"status,omitempty"`
	Rate             *Amount `json:"rate,omitempty"`
	PurchaseRate     *Amount `json:"purchase_rate,omitempty"`
	StockOnHand      *Amount `json:"stock_on_hand,omitempty"`
	InitialStock     *Amount `json:"initial_stock,omitempty"`
	InitialStockRate *Amount `json:"initial_stock_rate,omitempty"`
	ItemType         string  `json:"item_type,omitempty"`
	ProductType      string  `json:"product_type,omitempty"`
}

// Organization is one entry of the organizations listing.
type Organization struct {
	OrganizationID ID     `json:"organization_id"`
	Name           string `json:"name"`
}

type pageContext struct {
	Page        int  `json:"page"`
	HasMorePage bool `json:"has_more_page"`
}

type listItemsResponse struct {
	Code        int         `json:"code"`
	Message     string      `json:"message"`
	Items       []Item      `json:"items"`
	PageContext pageContext `json:"page_context"`
}

type itemResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Item    Item   `json:"item"`
}

type organizationsResponse struct {
	Organizations []Organization `json:"organizations"`
}
