// Package tilersim is an in-process stand-in for the TILER block-storage driver. It hands out
// system-space addresses from the same disjoint containers as the hardware and backs every mapped
// buffer with anonymous memory, so the memory manager can be exercised without /dev/tiler.
package tilersim

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/tilerkit/memmgr/memutils"
	"github.com/tilerkit/memmgr/tiler"
	"golang.org/x/exp/slog"
)

// Operation names one driver entry point, for fault injection and call counting
type Operation int

const (
	OpOpen Operation = iota
	OpClose
	OpAlloc
	OpFree
	OpMap
	OpUnMap
	OpQueryBlock
	OpRegisterBuffer
	OpUnregisterBuffer
	OpQueryBuffer
	OpMapBuffer
	OpUnmapBuffer

	operationCount
)

var operationMapping = make(map[Operation]string)

func (o Operation) String() string {
	return operationMapping[o]
}

func init() {
	operationMapping[OpOpen] = "OpOpen"
	operationMapping[OpClose] = "OpClose"
	operationMapping[OpAlloc] = "OpAlloc"
	operationMapping[OpFree] = "OpFree"
	operationMapping[OpMap] = "OpMap"
	operationMapping[OpUnMap] = "OpUnMap"
	operationMapping[OpQueryBlock] = "OpQueryBlock"
	operationMapping[OpRegisterBuffer] = "OpRegisterBuffer"
	operationMapping[OpUnregisterBuffer] = "OpUnregisterBuffer"
	operationMapping[OpQueryBuffer] = "OpQueryBuffer"
	operationMapping[OpMapBuffer] = "OpMapBuffer"
	operationMapping[OpUnmapBuffer] = "OpUnmapBuffer"
}

// ErrInjected is returned by an operation that was set up to fail with InjectFault and no specific error
var ErrInjected = errors.New("injected driver fault")

const containerBytes = int(tiler.Mem16Bit - tiler.Mem8Bit)

type fault struct {
	skip int
	err  error
}

type simBlock struct {
	// footprint is the geometry as the driver records it: rounded to slots or pages
	footprint  tiler.BlockSpec
	mapped     bool
	// userLength is the length of the caller's memory behind a mapped block
	userLength int
	start      int
	units      int
}

type simRegion struct {
	data    []byte
	// user is set when data is the caller's own memory rather than an anonymous mapping
	user    bool
	id      tiler.BufferID
	blocks  []tiler.BlockSpec
	offsets []int
	size    int
}

type container struct {
	base  tiler.SSPtr
	unit  int
	spans *spanList
}

// Simulator is a software TILER. It is safe for concurrent use.
type Simulator struct {
	logger *slog.Logger
	mutex  sync.Mutex

	openDevices  int
	calls        [operationCount]int
	faults       [operationCount][]fault
	nextBufferID tiler.BufferID

	containers [tiler.FormatPage + 1]*container
	blocks     *swiss.Map[tiler.SSPtr, *simBlock]
	buffers    *swiss.Map[tiler.BufferID, []tiler.BlockSpec]
	regions    *swiss.Map[uintptr, *simRegion]
}

var _ tiler.Driver = &Simulator{}

func New(logger *slog.Logger) *Simulator {
	sim := &Simulator{
		logger:       logger,
		nextBufferID: 1,
		blocks:       swiss.NewMap[tiler.SSPtr, *simBlock](64),
		buffers:      swiss.NewMap[tiler.BufferID, []tiler.BlockSpec](16),
		regions:      swiss.NewMap[uintptr, *simRegion](16),
	}

	for _, format := range []tiler.PixelFormat{tiler.Format8Bit, tiler.Format16Bit, tiler.Format32Bit, tiler.FormatPage} {
		unit := tiler.FixedStride(tiler.ContainerBase(format))
		sim.containers[format] = &container{
			base:  tiler.ContainerBase(format),
			unit:  unit,
			spans: newSpanList(containerBytes / unit),
		}
	}

	return sim
}

// Open opens a new device handle, as opening /dev/tiler would
func (s *Simulator) Open() (tiler.Device, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	err := s.enter(OpOpen)
	if err != nil {
		return nil, err
	}

	s.openDevices++
	s.logger.Debug("Simulator::Open", slog.Int("OpenDevices", s.openDevices))
	return &device{sim: s}, nil
}

// InjectFault makes the call to op after the next skip successful calls fail with err. Several faults
// may be queued for the same operation; they fire in the order they were injected.
func (s *Simulator) InjectFault(op Operation, skip int, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err == nil {
		err = ErrInjected
	}
	s.faults[op] = append(s.faults[op], fault{skip: skip, err: errors.Wrapf(err, "%s", op)})
}

// ClearFaults drops every pending injected fault
func (s *Simulator) ClearFaults() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for op := range s.faults {
		s.faults[op] = nil
	}
}

// Calls returns how many times op has been invoked, including calls that failed
func (s *Simulator) Calls(op Operation) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.calls[op]
}

// OpenDevices returns the number of device handles that have been opened and not closed
func (s *Simulator) OpenDevices() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.openDevices
}

// LiveBlocks returns the number of blocks currently allocated or mapped
func (s *Simulator) LiveBlocks() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.blocks.Count()
}

// LiveBuffers returns the number of registered buffers
func (s *Simulator) LiveBuffers() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.buffers.Count()
}

// LiveRegions returns the number of mapped buffer regions
func (s *Simulator) LiveRegions() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.regions.Count()
}

// FreeBytes returns the unallocated capacity of the container for a format
func (s *Simulator) FreeBytes(format tiler.PixelFormat) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !format.Valid() {
		return 0
	}
	c := s.containers[format]
	return c.spans.freeUnits() * c.unit
}

// enter counts a call and fires a pending fault. Callers hold the mutex.
func (s *Simulator) enter(op Operation) error {
	s.calls[op]++

	pending := s.faults[op]
	if len(pending) == 0 {
		return nil
	}
	if pending[0].skip > 0 {
		pending[0].skip--
		return nil
	}

	err := pending[0].err
	s.faults[op] = pending[1:]
	return err
}

func slotPixels(format tiler.PixelFormat) int {
	// A slot is 64 rows of 128 bytes in the 16- and 32-bit containers and 64 bytes in the 8-bit one
	if format == tiler.Format32Bit {
		return tiler.SlotWidth / 2
	}
	return tiler.SlotWidth
}

func (s *Simulator) allocBlock(block tiler.BlockSpec, mapped bool) (tiler.SSPtr, error) {
	footprint := tiler.BlockSpec{
		Format: block.Format,
		Stride: block.Stride,
	}
	var units int

	switch {
	case block.Format == tiler.FormatPage:
		if block.Length <= 0 || block.Length > tiler.ContainerLength {
			return 0, errors.Newf("page mode length %d is out of range", block.Length)
		}
		footprint.Length = memutils.AlignUp(block.Length, tiler.PageSize)
		units = footprint.Length / tiler.PageSize
		if mapped {
			footprint.VirtualPtr = block.VirtualPtr
		}
	case block.Format.Is2D():
		if mapped {
			return 0, errors.New("only page mode blocks can be mapped from user memory")
		}
		maxWidth := tiler.ContainerWidth * slotPixels(block.Format)
		if block.Width <= 0 || block.Width > maxWidth {
			return 0, errors.Newf("2D width %d is out of range", block.Width)
		}
		footprint.Width = memutils.AlignUp(block.Width, uint(slotPixels(block.Format)))
		footprint.Height = memutils.AlignUp(block.Height, tiler.SlotHeight)
		footprint.Stride = tiler.FixedStride(tiler.ContainerBase(block.Format))
		units = footprint.Height
		if block.Height <= 0 || units > s.containers[block.Format].spans.total {
			return 0, errors.Newf("2D height %d is out of range", block.Height)
		}
	default:
		return 0, errors.Newf("unsupported pixel format %s", block.Format)
	}

	c := s.containers[block.Format]
	start, err := c.spans.take(units)
	if err != nil {
		return 0, err
	}

	ssptr := c.base + tiler.SSPtr(start*c.unit)
	footprint.SystemPtr = ssptr
	userLength := 0
	if mapped {
		userLength = block.Length
	}
	s.blocks.Put(ssptr, &simBlock{
		footprint:  footprint,
		mapped:     mapped,
		userLength: userLength,
		start:      start,
		units:      units,
	})

	return ssptr, nil
}

func (s *Simulator) releaseBlock(ssptr tiler.SSPtr, mapped bool) error {
	block, ok := s.blocks.Get(ssptr)
	if !ok {
		return errors.Newf("no block at system address 0x%x", uintptr(ssptr))
	}
	if block.mapped != mapped {
		if mapped {
			return errors.Newf("block at 0x%x was allocated, not mapped", uintptr(ssptr))
		}
		return errors.Newf("block at 0x%x was mapped, not allocated", uintptr(ssptr))
	}

	s.containers[block.footprint.Format].spans.give(block.start, block.units)
	s.blocks.Delete(ssptr)
	return nil
}

// virtToPhys resolves an address inside a mapped buffer region, then inside user memory mapped into
// page mode
func (s *Simulator) virtToPhys(ptr uintptr) tiler.SSPtr {
	var result tiler.SSPtr

	s.regions.Iter(func(base uintptr, region *simRegion) bool {
		if ptr < base || ptr >= base+uintptr(region.size) {
			return false
		}

		offset := int(ptr - base)
		for i := len(region.offsets) - 1; i >= 0; i-- {
			if offset < region.offsets[i] {
				continue
			}
			block := region.blocks[i]
			inBlock := offset - region.offsets[i]
			if block.Format.Is2D() {
				rowBytes := tiler.DefaultStride(block.Width * tiler.BytesPerPixel(block.Format))
				row, col := inBlock/rowBytes, inBlock%rowBytes
				result = block.SystemPtr + tiler.SSPtr(row*tiler.FixedStride(block.SystemPtr)+col)
			} else {
				result = block.SystemPtr + tiler.SSPtr(inBlock)
			}
			break
		}
		return true
	})
	if result != 0 {
		return result
	}

	s.blocks.Iter(func(ssptr tiler.SSPtr, block *simBlock) bool {
		user := block.footprint.VirtualPtr
		if !block.mapped || ptr < user || ptr >= user+uintptr(block.footprint.Length) {
			return false
		}
		result = ssptr + tiler.SSPtr(ptr-user)
		return true
	})

	return result
}

// userBacking returns the caller's memory when a buffer is one block mapped from user memory, so that
// writes through the buffer mapping land in the caller's pages. Other buffers get nil.
func (s *Simulator) userBacking(recorded []tiler.BlockSpec, size int) []byte {
	if len(recorded) != 1 {
		return nil
	}

	block, ok := s.blocks.Get(recorded[0].SystemPtr)
	if !ok || !block.mapped || size > block.userLength {
		return nil
	}

	user := block.footprint.VirtualPtr
	// One base can only be tracked once; a second mapping of the same pages stays anonymous
	if user == 0 || s.regions.Has(user) {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(user)), size)
}
