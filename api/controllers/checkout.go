package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dmfellows/bidstreet-backend/api/middleware"
	"github.com/dmfellows/bidstreet-backend/api/responses"
	"github.com/dmfellows/bidstreet-backend/api/validators"
	checkoutsvc "github.com/dmfellows/bidstreet-backend/internal/checkout"
	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
	"github.com/dmfellows/bidstreet-backend/pkg/logger"
)

type checkoutResponse struct {
	Success        bool        `json:"success"`
	OrderIDs       []uuid.UUID `json:"orderIds"`
	GatewayOrderID *string     `json:"gatewayOrderId,omitempty"`
}

// Checkout submits the buyer's seller-grouped line items and creates
// one order per seller.
func Checkout(svc checkoutsvc.Assembler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		buyerID, err := buyerIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutsvc.CheckoutInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), buyerID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Success:        true,
			OrderIDs:       result.OrderIDs,
			GatewayOrderID: result.GatewayOrderID,
		})
	}
}

func buyerIDFromContext(r *http.Request) (uuid.UUID, error) {
	if r == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	buyerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return buyerID, nil
}
