package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/expiry-tracker/api/responses"
	"github.com/angelmondragon/expiry-tracker/api/validators"
	"github.com/angelmondragon/expiry-tracker/internal/inventorysync"
	pkgerrors "github.com/angelmondragon/expiry-tracker/pkg/errors"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
)

// InventoryAccounts connects users to the remote inventory service.
type InventoryAccounts interface {
	AuthURL(ctx context.Context, userID uuid.UUID, state string) (string, error)
	ConnectAccount(ctx context.Context, userID uuid.UUID, code string) error
	SyncInventory(ctx context.Context, userID uuid.UUID) (inventorysync.SyncResult, error)
}

type connectRequest struct {
	Code string `json:"code" validate:"required"`
}

func InventoryAuthURL(svc InventoryAccounts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "userID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state := strings.TrimSpace(r.URL.Query().Get("state"))
		if state == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "state required"))
			return
		}
		url, err := svc.AuthURL(r.Context(), userID, state)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"url": url})
	}
}

func InventoryConnect(svc InventoryAccounts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "userID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload connectRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ConnectAccount(r.Context(), userID, payload.Code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"connected": true})
	}
}

func InventorySync(svc InventoryAccounts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuidParam(r, "userID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SyncInventory(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
