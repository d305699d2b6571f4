package node

import (
	"sort"
	"time"
)

// UnlimitedLoadSentinel is the ratio assigned to nodes without a declared capacity.
// It is low enough to keep them attractive but not zero, so they do not win every tie.
const UnlimitedLoadSentinel = 0.1

// Load is one observation of a node's occupancy.
type Load struct {
	NodeID       string
	CurrentUsers int
	Capacity     int
	ObservedAt   time.Time
}

func (l Load) IsUnlimited() bool {
	return l.Capacity <= 0
}

// Ratio is CurrentUsers/Capacity, or the sentinel for unlimited nodes.
func (l Load) Ratio() float64 {
	if l.IsUnlimited() {
		return UnlimitedLoadSentinel
	}
	return float64(l.CurrentUsers) / float64(l.Capacity)
}

// HasRoom is false for a finite node that is already at capacity.
func (l Load) HasRoom() bool {
	return l.IsUnlimited() || l.CurrentUsers < l.Capacity
}

// Less orders by ratio, then finite before unlimited, then node id.
func Less(a, b Load) bool {
	ra, rb := a.Ratio(), b.Ratio()
	if ra != rb {
		return ra < rb
	}
	if a.IsUnlimited() != b.IsUnlimited() {
		return !a.IsUnlimited()
	}
	return a.NodeID < b.NodeID
}

// Rank drops full nodes and returns the rest best first. The input is not modified.
func Rank(loads []Load) []Load {
	out := make([]Load, 0, len(loads))
	for _, l := range loads {
		if l.HasRoom() {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}
