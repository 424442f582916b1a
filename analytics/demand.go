/*
demand.go - Inventory demand classification

PURPOSE:
  Classifies stock items by historical usage volume and flags depletion
  spikes, feeding reorder prioritization.
*/
package analytics

import "github.com/warp/hospital-engine/inventory"

// DemandClass buckets an item's historical usage volume.
type DemandClass string

const (
	DemandFast   DemandClass = "fast-moving"
	DemandMedium DemandClass = "medium"
	DemandSlow   DemandClass = "slow-moving"
)

// spikeFactor marks a depletion spike when the trailing average
// exceeds this multiple of the full-history average.
const spikeFactor = 1.5

// trailingPeriods is the window compared against the full history.
const trailingPeriods = 3

// ItemDemand is one item's demand classification.
type ItemDemand struct {
	ItemID     string      `json:"item_id"`
	Name       string      `json:"name"`
	TotalUsage int         `json:"total_usage"`
	Class      DemandClass `json:"class"`
	Spike      bool        `json:"depletion_spike"`
}

// ClassifyDemand buckets total usage: >100 fast-moving, >30 medium,
// else slow-moving.
func ClassifyDemand(totalUsage int) DemandClass {
	switch {
	case totalUsage > 100:
		return DemandFast
	case totalUsage > 30:
		return DemandMedium
	default:
		return DemandSlow
	}
}

// HasDepletionSpike reports whether the trailing-3-period average
// exceeds 1.5x the full-history average. Short histories never spike.
func HasDepletionSpike(history []int) bool {
	if len(history) <= trailingPeriods {
		return false
	}
	total := 0
	for _, u := range history {
		total += u
	}
	trailing := 0
	for _, u := range history[len(history)-trailingPeriods:] {
		trailing += u
	}
	overall := float64(total) / float64(len(history))
	recent := float64(trailing) / float64(trailingPeriods)
	return recent > spikeFactor*overall
}

// DemandProfile classifies every item in the snapshot.
func DemandProfile(items []inventory.Item) []ItemDemand {
	out := make([]ItemDemand, 0, len(items))
	for _, item := range items {
		total := item.TotalUsage()
		out = append(out, ItemDemand{
			ItemID:     item.ID,
			Name:       item.Name,
			TotalUsage: total,
			Class:      ClassifyDemand(total),
			Spike:      HasDepletionSpike(item.UsageHistory),
		})
	}
	return out
}
