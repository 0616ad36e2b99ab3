package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/fanjava-backend/api/responses"
	"github.com/angelmondragon/fanjava-backend/api/validators"
	"github.com/angelmondragon/fanjava-backend/internal/products"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
)

const maxSearchLength = 100

// CreateProductRequest is the POST /vendor/products payload.
type CreateProductRequest struct {
	CategoryID      *uuid.UUID `json:"category_id,omitempty"`
	Name            string     `json:"name" validate:"required,max=200"`
	Description     string     `json:"description" validate:"max=5000"`
	SKU             *string    `json:"sku,omitempty" validate:"omitempty,max=64"`
	PriceCents      int64      `json:"price_cents" validate:"gt=0"`
	PromoPriceCents *int64     `json:"promo_price_cents,omitempty" validate:"omitempty,gt=0"`
	Stock           int        `json:"stock" validate:"gte=0"`
	AlertThreshold  int        `json:"alert_threshold" validate:"gte=0"`
	Status          string     `json:"status,omitempty" validate:"omitempty,oneof=active draft inactive"`
	Featured        bool       `json:"featured"`
}

// UpdateProductRequest is the PATCH /vendor/products/{id} payload.
type UpdateProductRequest struct {
	CategoryID      *uuid.UUID `json:"category_id,omitempty"`
	ClearCategory   bool       `json:"clear_category,omitempty"`
	Name            *string    `json:"name,omitempty" validate:"omitempty,max=200"`
	Description     *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	SKU             *string    `json:"sku,omitempty" validate:"omitempty,max=64"`
	PriceCents      *int64     `json:"price_cents,omitempty" validate:"omitempty,gt=0"`
	PromoPriceCents *int64     `json:"promo_price_cents,omitempty" validate:"omitempty,gt=0"`
	ClearPromo      bool       `json:"clear_promo,omitempty"`
	AlertThreshold  *int       `json:"alert_threshold,omitempty" validate:"omitempty,gte=0"`
	Status          *string    `json:"status,omitempty" validate:"omitempty,oneof=active draft inactive"`
	Featured        *bool      `json:"featured,omitempty"`
}

// SetStockRequest is the PUT /vendor/products/{id}/stock payload.
type SetStockRequest struct {
	Stock *int `json:"stock" validate:"required,gte=0"`
}

// ListProducts serves the public catalog of active products.
func ListProducts(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("products"))
			return
		}
		input := products.ListProductsInput{
			Search: validators.SanitizeString(r.URL.Query().Get("q"), maxSearchLength),
		}
		var err error
		if input.CategoryID, err = validators.ParseQueryUUID(r, "category"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.VendorID, err = validators.ParseQueryUUID(r, "vendor"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.Pagination, err = validators.ParsePagination(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListProducts(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("products"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func VendorListProducts(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("products"))
			return
		}
		who, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListVendorProducts(r.Context(), who.UserID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func VendorCreateProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("products"))
			return
		}
		who, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body CreateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.CreateProduct(r.Context(), who.UserID, products.CreateProductInput{
			CategoryID:      body.CategoryID,
			Name:            body.Name,
			Description:     body.Description,
			SKU:             body.SKU,
			PriceCents:      body.PriceCents,
			PromoPriceCents: body.PromoPriceCents,
			Stock:           body.Stock,
			AlertThreshold:  body.AlertThreshold,
			Status:          enums.ProductStatus(strings.TrimSpace(body.Status)),
			Featured:        body.Featured,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func VendorUpdateProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("products"))
			return
		}
		who, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body UpdateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := products.UpdateProductInput{
			CategoryID:      body.CategoryID,
			ClearCategory:   body.ClearCategory,
			Name:            body.Name,
			Description:     body.Description,
			SKU:             body.SKU,
			PriceCents:      body.PriceCents,
			PromoPriceCents: body.PromoPriceCents,
			ClearPromo:      body.ClearPromo,
			AlertThreshold:  body.AlertThreshold,
			Featured:        body.Featured,
		}
		if body.Status != nil {
			status, err := enums.ParseProductStatus(strings.TrimSpace(*body.Status))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			input.Status = &status
		}
		product, err := svc.UpdateProduct(r.Context(), who.UserID, productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func VendorDeleteProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("products"))
			return
		}
		who, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), who.UserID, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// VendorSetStock replaces the stock level; status flips between active and out_of_stock accordingly.
func VendorSetStock(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("products"))
			return
		}
		who, err := callerFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body SetStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.SetStock(r.Context(), who.UserID, productID, *body.Stock)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}
