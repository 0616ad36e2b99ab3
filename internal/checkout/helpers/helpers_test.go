package helpers

import (
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/types"
)

func TestMergeLines(t *testing.T) {
	t.Parallel()
	a, b := uuid.New(), uuid.New()
	merged := MergeLines([]Line{{a, 1}, {b, 2}, {a, 3}, {b, 0}})
	if len(merged) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(merged))
	}
	if merged[0].ProductID != a || merged[0].Quantity != 4 {
		t.Fatalf("unexpected first line %+v", merged[0])
	}
	if merged[1].Quantity != 2 {
		t.Fatalf("unexpected second line %+v", merged[1])
	}
}

func TestGroupByVendorFreezesPromoPrice(t *testing.T) {
	t.Parallel()
	vendorA, vendorB := uuid.New(), uuid.New()
	promo := int64(800)
	p1 := models.Product{ID: uuid.New(), VendorID: vendorA, Name: "p1", PriceCents: 1000, PromoPriceCents: &promo}
	p2 := models.Product{ID: uuid.New(), VendorID: vendorB, Name: "p2", PriceCents: 300}
	p3 := models.Product{ID: uuid.New(), VendorID: vendorA, Name: "p3", PriceCents: 50}
	products := map[uuid.UUID]models.Product{p1.ID: p1, p2.ID: p2, p3.ID: p3}

	groups := GroupByVendor([]Line{{p1.ID, 2}, {p2.ID, 1}, {p3.ID, 4}}, products)
	if len(groups) != 2 {
		t.Fatalf("expected 2 vendor groups, got %d", len(groups))
	}
	for _, group := range groups {
		switch group.VendorID {
		case vendorA:
			totals := ComputeVendorTotals(group.Lines, 500)
			if totals.SubtotalCents != 2*800+4*50 || totals.TotalCents != totals.SubtotalCents+500 || totals.Units != 6 {
				t.Fatalf("unexpected vendor A totals %+v", totals)
			}
		case vendorB:
			if len(group.Lines) != 1 || group.Lines[0].LineTotalCents != 300 {
				t.Fatalf("unexpected vendor B lines %+v", group.Lines)
			}
		default:
			t.Fatalf("unexpected vendor %s", group.VendorID)
		}
	}
}

func TestValidateShipping(t *testing.T) {
	t.Parallel()
	_, err := ValidateShipping(types.ShippingSnapshot{Address: " 1 rue ", City: "Tana"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, err := ValidateShipping(types.ShippingSnapshot{Address: " 1 rue ", City: "Tana", PostalCode: "101", Phone: "034"})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got.Address != "1 rue" || got.Country != "Madagascar" {
		t.Fatalf("unexpected normalized snapshot %+v", got)
	}
}
