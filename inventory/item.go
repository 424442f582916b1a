/*
item.go - Stock items

PURPOSE:
  Inventory is the quantity-sliced pool variant: each item holds a
  non-negative stock count, a reorder threshold and its past usage
  series, which feeds the demand forecast.
*/
package inventory

import "github.com/warp/hospital-engine/core"

// Item is one stocked product.
type Item struct {
	ID               string
	Name             string
	Quantity         int
	ReorderThreshold int
	UsageHistory     []int
	ExpiryDate       core.Date
}

// LowStock reports whether the quantity fell below the threshold.
func (i Item) LowStock() bool { return i.Quantity < i.ReorderThreshold }

// TotalUsage sums the recorded usage series.
func (i Item) TotalUsage() int {
	total := 0
	for _, u := range i.UsageHistory {
		total += u
	}
	return total
}
