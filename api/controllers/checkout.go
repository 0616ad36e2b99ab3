package controllers

import (
	"net/http"

	"github.com/angelmondragon/fanjava-backend/api/responses"
	"github.com/angelmondragon/fanjava-backend/api/validators"
	"github.com/angelmondragon/fanjava-backend/internal/checkout"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
	"github.com/angelmondragon/fanjava-backend/pkg/types"
)

// CheckoutRequest carries the delivery data; the lines come from the caller's cart.
type CheckoutRequest struct {
	Shipping   types.ShippingSnapshot `json:"shipping"`
	ClientNote *string                `json:"client_note,omitempty" validate:"omitempty,max=1000"`
}

// Checkout converts the cart into one order per vendor. Stock conflicts come back as 409
// with the itemized shortfalls in error.details.conflicts.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("checkout"))
			return
		}
		who, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body CheckoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		group, err := svc.Execute(r.Context(), who.UserID, checkout.CheckoutInput{
			Shipping:   body.Shipping,
			ClientNote: body.ClientNote,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, group)
	}
}
