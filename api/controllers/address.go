package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmfellows/bidstreet-backend/api/responses"
	"github.com/dmfellows/bidstreet-backend/api/validators"
	"github.com/dmfellows/bidstreet-backend/internal/address"
	"github.com/dmfellows/bidstreet-backend/pkg/db/models"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
	"github.com/dmfellows/bidstreet-backend/pkg/logger"
	"github.com/dmfellows/bidstreet-backend/pkg/types"
)

type createAddressRequest struct {
	Label     *string       `json:"label,omitempty"`
	Address   types.Address `json:"address" validate:"required"`
	IsDefault bool          `json:"isDefault"`
}

// AddressList returns the buyer's address book.
func AddressList(repo address.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address repository unavailable"))
			return
		}

		buyerID, err := buyerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		addrs, err := repo.ListByBuyer(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses"))
			return
		}
		responses.WriteSuccess(w, addrs)
	}
}

// AddressCreate stores a new shipping address owned by the caller.
func AddressCreate(repo address.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address repository unavailable"))
			return
		}

		buyerID, err := buyerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createAddressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		addr := &models.Address{
			ID:        uuid.New(),
			BuyerID:   buyerID,
			Label:     payload.Label,
			Address:   payload.Address,
			IsDefault: payload.IsDefault,
		}
		if err := repo.Create(r.Context(), addr); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, addr)
	}
}

// AddressDelete removes an address the caller owns.
func AddressDelete(repo address.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address repository unavailable"))
			return
		}

		buyerID, err := buyerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		addressID, err := uuid.Parse(chi.URLParam(r, "addressId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address id"))
			return
		}

		rows, err := repo.Delete(r.Context(), addressID, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address"))
			return
		}
		if rows == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "address not found"))
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}
