package allocator

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/emptybox/memutils"
	"golang.org/x/exp/slices"
)

func printStatistics(json *jwriter.ObjectState, stats *memutils.DetailedStatistics) {
	json.Name("AllocateCount").Int(stats.AllocateCount)
	json.Name("FreeCount").Int(stats.FreeCount)
	json.Name("AllocationCount").Int(stats.AllocationCount)
	json.Name("AllocationBytes").Int(stats.AllocationBytes)
	json.Name("PeakAllocationCount").Int(stats.PeakAllocationCount)
	json.Name("PeakAllocationBytes").Int(stats.PeakAllocationBytes)

	if stats.AllocateCount > 0 {
		json.Name("AllocationSizeMin").Int(stats.AllocationSizeMin)
		json.Name("AllocationSizeMax").Int(stats.AllocationSizeMax)
	}
}

func (r *liveAllocation) printParameters(json *jwriter.ObjectState) {
	json.Name("Id").Int(r.id)
	json.Name("Type").String(r.typ.String())
	json.Name("Size").Int(r.layout.Size)
	json.Name("Alignment").Int(int(r.layout.Alignment))
	json.Name("PointerFree").Bool(r.layout.PointerFree)

	if r.count > 1 {
		json.Name("Count").Int(r.count)
	}
}

// BuildStatsString renders this allocator's statistics as JSON. When detailedMap is true, every
// live allocation is listed as well, ordered by allocation id.
func (a *Tracking) BuildStatsString(detailedMap bool) string {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	writer := jwriter.NewWriter()
	root := writer.Object()

	total := root.Name("Total").Object()
	printStatistics(&total, &a.stats)
	total.End()

	root.Name("Flags").String(a.flags.String())
	if a.budget.limit > 0 {
		budgetJSON := root.Name("Budget").Object()
		budgetJSON.Name("BudgetBytes").Int(int(a.budget.limit))
		budgetJSON.Name("UsedBytes").Int(a.budget.Used())
		budgetJSON.End()
	}

	if detailedMap {
		records := make([]*liveAllocation, 0, a.live.Count())
		a.live.Iter(func(key uintptr, record *liveAllocation) bool {
			records = append(records, record)
			return false
		})
		slices.SortFunc(records, func(left, right *liveAllocation) int {
			return left.id - right.id
		})

		live := root.Name("LiveAllocations").Array()
		for _, record := range records {
			o := live.Object()
			record.printParameters(&o)
			o.End()
		}
		live.End()
	}

	root.End()
	return string(writer.Bytes())
}
