package helpers

import (
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
)

// Line is a requested quantity of one product.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// MergeLines folds duplicate product lines together, keeping first-seen order.
func MergeLines(lines []Line) []Line {
	index := make(map[uuid.UUID]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out
}

// Requested maps product ids to total requested quantity.
func Requested(lines []Line) map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		out[line.ProductID] += line.Quantity
	}
	return out
}

// ProductIDs returns the distinct ids in lines.
func ProductIDs(lines []Line) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		out = append(out, line.ProductID)
	}
	return out
}

// VendorGroup is the slice of a checkout that becomes one order.
type VendorGroup struct {
	VendorID uuid.UUID
	Lines    []models.OrderLine
}

// GroupByVendor splits lines by the live vendor of each locked product and
// freezes the current final price into every line. Groups come back sorted by
// vendor id and lines by product id.
func GroupByVendor(lines []Line, products map[uuid.UUID]models.Product) []VendorGroup {
	grouped := make(map[uuid.UUID][]models.OrderLine)
	for _, line := range lines {
		product := products[line.ProductID]
		unit := product.FinalPriceCents()
		grouped[product.VendorID] = append(grouped[product.VendorID], models.OrderLine{
			ProductID:      product.ID,
			ProductName:    product.Name,
			UnitPriceCents: unit,
			Quantity:       line.Quantity,
			LineTotalCents: unit * int64(line.Quantity),
		})
	}

	out := make([]VendorGroup, 0, len(grouped))
	for vendorID, orderLines := range grouped {
		sort.Slice(orderLines, func(i, j int) bool {
			return orderLines[i].ProductID.String() < orderLines[j].ProductID.String()
		})
		out = append(out, VendorGroup{VendorID: vendorID, Lines: orderLines})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VendorID.String() < out[j].VendorID.String() })
	return out
}

// VendorTotals captures the money of one vendor order.
type VendorTotals struct {
	SubtotalCents    int64
	DeliveryFeeCents int64
	TotalCents       int64
	Units            int
}

// ComputeVendorTotals sums frozen line totals and adds the delivery fee.
func ComputeVendorTotals(lines []models.OrderLine, deliveryFeeCents int64) VendorTotals {
	totals := VendorTotals{DeliveryFeeCents: deliveryFeeCents}
	for _, line := range lines {
		totals.SubtotalCents += line.LineTotalCents
		totals.Units += line.Quantity
	}
	totals.TotalCents = totals.SubtotalCents + totals.DeliveryFeeCents
	return totals
}
