package memmgr

import (
	"fmt"

	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/tilerkit/memmgr/memutils"
	"github.com/tilerkit/memmgr/tiler"
	"golang.org/x/exp/slices"
)

// bufferRecord is what the allocator remembers about a buffer it created: the driver's name for the
// block group and the mapped region with the block list as it was registered
type bufferRecord struct {
	id     tiler.BufferID
	buffer *tiler.Buffer
}

func (r *bufferRecord) record() *bufferRecord {
	return r
}

// blockAt returns the block whose bytes contain addr
func (r *bufferRecord) blockAt(addr uintptr) (tiler.BlockSpec, bool) {
	if !r.buffer.Contains(addr) {
		return tiler.BlockSpec{}, false
	}

	offset := int(addr - r.buffer.Base())
	for i := r.buffer.BlockCount() - 1; i >= 0; i-- {
		if offset >= r.buffer.Offset(i) {
			return r.buffer.Block(i), true
		}
	}
	return tiler.BlockSpec{}, false
}

func (r *bufferRecord) printParameters(json *jwriter.ObjectState) {
	json.Name("Base").String(fmt.Sprintf("0x%x", r.buffer.Base()))
	json.Name("BufferID").Int(int(r.id))
	json.Name("Size").Int(r.buffer.Size())

	blocks := json.Name("Blocks").Array()
	for _, block := range r.buffer.Blocks() {
		o := blocks.Object()
		o.Name("Format").String(block.Format.String())
		if block.Format == tiler.FormatPage {
			o.Name("Length").Int(block.Length)
		} else {
			o.Name("Width").Int(block.Width)
			o.Name("Height").Int(block.Height)
		}
		o.Name("Stride").Int(block.Stride)
		o.Name("SystemPtr").String(fmt.Sprintf("0x%x", uintptr(block.SystemPtr)))
		o.End()
	}
	blocks.End()
}

// registryEntry is one of *allocatedEntry or *mappedEntry. The two kinds are torn down differently,
// and teardown takes the entry by its concrete type.
type registryEntry interface {
	record() *bufferRecord
}

// allocatedEntry is a buffer whose blocks were allocated by the driver for this process
type allocatedEntry struct {
	bufferRecord
}

// mappedEntry is a buffer wrapping caller memory. Its blocks are only associations.
type mappedEntry struct {
	bufferRecord
}

func entryKind(entry registryEntry) string {
	switch entry.(type) {
	case *allocatedEntry:
		return "Allocated"
	case *mappedEntry:
		return "Mapped"
	}
	return "Unknown"
}

// registry maps the base address of each live buffer to its entry
type registry struct {
	entries *swiss.Map[uintptr, registryEntry]
}

func newRegistry() registry {
	return registry{
		entries: swiss.NewMap[uintptr, registryEntry](16),
	}
}

func (r *registry) insert(base uintptr, entry registryEntry) {
	if r.entries.Has(base) {
		panic(fmt.Sprintf("buffer at 0x%x is already registered", base))
	}
	r.entries.Put(base, entry)
}

// takeEntry removes and returns the entry at base only if it is of kind T. An entry of the other
// kind is left in place.
func takeEntry[T registryEntry](r *registry, base uintptr) (T, bool) {
	var zero T

	entry, ok := r.entries.Get(base)
	if !ok {
		return zero, false
	}

	typed, ok := entry.(T)
	if !ok {
		return zero, false
	}

	r.entries.Delete(base)
	return typed, true
}

// find returns the entry whose packed blocks contain addr, or nil
func (r *registry) find(addr uintptr) registryEntry {
	var found registryEntry
	r.entries.Iter(func(_ uintptr, entry registryEntry) bool {
		if entry.record().buffer.Contains(addr) {
			found = entry
			return true
		}
		return false
	})
	return found
}

func (r *registry) count() int {
	return r.entries.Count()
}

// sortedBases returns the base of every entry in address order
func (r *registry) sortedBases() []uintptr {
	bases := make([]uintptr, 0, r.entries.Count())
	r.entries.Iter(func(base uintptr, _ registryEntry) bool {
		bases = append(bases, base)
		return false
	})
	slices.Sort(bases)
	return bases
}

func (r *registry) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	r.entries.Iter(func(_ uintptr, entry registryEntry) bool {
		buffer := entry.record().buffer
		_, mapped := entry.(*mappedEntry)
		stats.AddBuffer(buffer.Size(), buffer.BlockCount(), mapped)
		return false
	})
}

func (r *registry) PrintDetailedMap(writer *jwriter.Writer) {
	s := writer.Array()
	defer s.End()

	for _, base := range r.sortedBases() {
		entry, _ := r.entries.Get(base)

		o := s.Object()
		o.Name("Kind").String(entryKind(entry))
		entry.record().printParameters(&o)
		o.End()
	}
}
