package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/expiry-tracker/api/responses"
	"github.com/angelmondragon/expiry-tracker/api/validators"
	"github.com/angelmondragon/expiry-tracker/internal/items"
	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
)

type itemRequest struct {
	Name         string           `json:"name"`
	Description  *string          `json:"description,omitempty"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Unit         string           `json:"unit"`
	PurchaseDate *string          `json:"purchase_date,omitempty"`
	ExpiryDate   *string          `json:"expiry_date,omitempty"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty"`
	SellingPrice *decimal.Decimal `json:"selling_price,omitempty"`
	// SyncRemote mirrors a new item to the connected inventory account.
	SyncRemote bool `json:"sync_remote,omitempty"`
}

func (p itemRequest) toInput() (items.ItemInput, error) {
	purchase, err := validators.ParseDate("purchase_date", p.PurchaseDate)
	if err != nil {
		return items.ItemInput{}, err
	}
	expiry, err := validators.ParseDate("expiry_date", p.ExpiryDate)
	if err != nil {
		return items.ItemInput{}, err
	}
	return items.ItemInput{
		Name:         strings.TrimSpace(p.Name),
		Description:  p.Description,
		Quantity:     p.Quantity,
		Unit:         strings.TrimSpace(p.Unit),
		PurchaseDate: purchase,
		ExpiryDate:   expiry,
		CostPrice:    p.CostPrice,
		SellingPrice: p.SellingPrice,
	}, nil
}

type itemResponse struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	Name            string           `json:"name"`
	Description     *string          `json:"description,omitempty"`
	Quantity        decimal.Decimal  `json:"quantity"`
	Unit            string           `json:"unit"`
	PurchaseDate    *string          `json:"purchase_date,omitempty"`
	ExpiryDate      *string          `json:"expiry_date,omitempty"`
	CostPrice       *decimal.Decimal `json:"cost_price,omitempty"`
	SellingPrice    *decimal.Decimal `json:"selling_price,omitempty"`
	DiscountedPrice *decimal.Decimal `json:"discounted_price,omitempty"`
	ExternalID      *string          `json:"external_id,omitempty"`
	Status          string           `json:"status"`
	StatusChangedAt *time.Time       `json:"status_changed_at,omitempty"`
	RemoteStatus    string           `json:"remote_status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func newItemResponse(item *models.Item) itemResponse {
	return itemResponse{
		ID:              item.ID,
		UserID:          item.UserID,
		Name:            item.Name,
		Description:     item.Description,
		Quantity:        item.Quantity,
		Unit:            item.Unit,
		PurchaseDate:    formatDate(item.PurchaseDate),
		ExpiryDate:      formatDate(item.ExpiryDate),
		CostPrice:       item.CostPrice,
		SellingPrice:    item.SellingPrice,
		DiscountedPrice: item.DiscountedPrice,
		ExternalID:      item.ExternalID,
		Status:          string(item.Status),
		StatusChangedAt: item.StatusChangedAt,
		RemoteStatus:    string(item.RemoteStatus),
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

type discountRequest struct {
	Percentage decimal.Decimal `json:"percentage"`
}

func CreateItem(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "userID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload itemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Create(r.Context(), userID, input, payload.SyncRemote)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newItemResponse(item))
	}
}

func UpdateItem(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "userID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := uuidParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload itemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.Update(r.Context(), userID, itemID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newItemResponse(item))
	}
}

func DeleteItem(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "userID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := uuidParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), userID, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

// RefreshItemStatus is the page-view path: it recomputes the item's status and
// with ?force=true re-emits the notifications for an unchanged status.
func RefreshItemStatus(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "userID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := uuidParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		force, err := validators.ParseQueryBool(r, "force")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.RefreshStatus(r.Context(), userID, itemID, force)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newItemResponse(item))
	}
}

func SetItemDiscount(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "userID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := uuidParam(r, "itemID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload discountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.SetDiscount(r.Context(), userID, itemID, payload.Percentage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newItemResponse(item))
	}
}
