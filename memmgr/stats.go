package memmgr

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/tilerkit/memmgr/memutils"
)

// CalculateStatistics fills stats with totals over every buffer the allocator is tracking
func (a *Allocator) CalculateStatistics(stats *memutils.DetailedStatistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	stats.Clear()
	a.books.registry.AddDetailedStatistics(stats)
}

// BuildStatsString renders the allocator state as JSON. With detailedMap set, every tracked buffer
// and its blocks are listed in address order.
func (a *Allocator) BuildStatsString(detailedMap bool) string {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	var stats memutils.DetailedStatistics
	stats.Clear()
	a.books.registry.AddDetailedStatistics(&stats)

	writer := jwriter.NewWriter()
	root := writer.Object()

	root.Name("SessionRefCount").Int(a.books.session.refCount)

	total := root.Name("Total").Object()
	total.Name("BufferCount").Int(stats.BufferCount)
	total.Name("BlockCount").Int(stats.BlockCount)
	total.Name("BufferBytes").Int(stats.BufferBytes)
	total.Name("AllocatedCount").Int(stats.AllocatedCount)
	total.Name("MappedCount").Int(stats.MappedCount)
	if stats.BufferCount > 0 {
		total.Name("BufferSizeMin").Int(stats.BufferSizeMin)
		total.Name("BufferSizeMax").Int(stats.BufferSizeMax)
	}
	total.End()

	if detailedMap {
		a.books.registry.PrintDetailedMap(root.Name("Buffers"))
	}

	root.End()
	return string(writer.Bytes())
}
