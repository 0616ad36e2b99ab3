package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/fanjava-backend/api/responses"
	"github.com/angelmondragon/fanjava-backend/api/validators"
	"github.com/angelmondragon/fanjava-backend/internal/analytics"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
)

const (
	defaultStatsLimit = 10
	maxStatsLimit     = 50
)

// VendorStats returns the headline numbers of the calling vendor.
func VendorStats(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("analytics"))
			return
		}
		who, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), who.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func VendorTopProducts(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return vendorProductStats(svc, logg, func(s analytics.Service) productStatsFn { return s.TopProducts })
}

func VendorLowStock(svc analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return vendorProductStats(svc, logg, func(s analytics.Service) productStatsFn { return s.LowStock })
}

type productStatsFn = func(ctx context.Context, vendorID uuid.UUID, limit int) ([]analytics.ProductStat, error)

func vendorProductStats(svc analytics.Service, logg *logger.Logger, pick func(analytics.Service) productStatsFn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("analytics"))
			return
		}
		who, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultStatsLimit, 1, maxStatsLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := pick(svc)(r.Context(), who.UserID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if rows == nil {
			rows = []analytics.ProductStat{}
		}
		responses.WriteSuccess(w, rows)
	}
}
