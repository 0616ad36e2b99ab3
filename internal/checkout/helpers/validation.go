package helpers

import (
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/types"
)

// ValidateShipping normalizes the snapshot and rejects blank required fields.
func ValidateShipping(snapshot types.ShippingSnapshot) (types.ShippingSnapshot, error) {
	normalized := snapshot.Normalize()
	if missing := normalized.Missing(); len(missing) > 0 {
		return normalized, pkgerrors.New(pkgerrors.CodeValidation, "shipping address incomplete").
			WithDetails(map[string][]string{"missing": missing})
	}
	return normalized, nil
}
