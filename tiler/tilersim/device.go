package tilersim

import (
	"github.com/cockroachdb/errors"
	"github.com/tilerkit/memmgr/memutils"
	"github.com/tilerkit/memmgr/tiler"
	"golang.org/x/exp/slog"
	"golang.org/x/sys/unix"
)

var errDeviceClosed = errors.New("device handle is closed")

type device struct {
	sim    *Simulator
	closed bool
}

var _ tiler.Device = &device{}

// begin locks the simulator and fires any fault for op. On success the caller must unlock.
func (d *device) begin(op Operation) error {
	d.sim.mutex.Lock()

	if d.closed {
		d.sim.calls[op]++
		d.sim.mutex.Unlock()
		return errors.Wrapf(errDeviceClosed, "%s", op)
	}

	err := d.sim.enter(op)
	if err != nil {
		d.sim.mutex.Unlock()
		return err
	}
	return nil
}

func (d *device) Close() error {
	err := d.begin(OpClose)
	if errors.Is(err, errDeviceClosed) {
		return err
	}
	if err != nil {
		d.sim.mutex.Lock()
	}
	defer d.sim.mutex.Unlock()

	// A failed close still drops the handle
	d.closed = true
	d.sim.openDevices--
	d.sim.logger.Debug("Simulator::Close", slog.Int("OpenDevices", d.sim.openDevices))
	return err
}

func (d *device) Alloc(block tiler.BlockSpec) (tiler.SSPtr, error) {
	err := d.begin(OpAlloc)
	if err != nil {
		return 0, err
	}
	defer d.sim.mutex.Unlock()

	return d.sim.allocBlock(block, false)
}

func (d *device) Free(ssptr tiler.SSPtr) error {
	err := d.begin(OpFree)
	if err != nil {
		return err
	}
	defer d.sim.mutex.Unlock()

	return d.sim.releaseBlock(ssptr, false)
}

func (d *device) Map(block tiler.BlockSpec) (tiler.SSPtr, error) {
	err := d.begin(OpMap)
	if err != nil {
		return 0, err
	}
	defer d.sim.mutex.Unlock()

	if block.VirtualPtr == 0 || !memutils.IsAligned(block.VirtualPtr, tiler.PageSize) {
		return 0, errors.Newf("user memory at 0x%x is not page aligned", block.VirtualPtr)
	}
	return d.sim.allocBlock(block, true)
}

func (d *device) UnMap(ssptr tiler.SSPtr) error {
	err := d.begin(OpUnMap)
	if err != nil {
		return err
	}
	defer d.sim.mutex.Unlock()

	return d.sim.releaseBlock(ssptr, true)
}

func (d *device) QueryBlock(ssptr tiler.SSPtr) (tiler.BlockSpec, error) {
	err := d.begin(OpQueryBlock)
	if err != nil {
		return tiler.BlockSpec{}, err
	}
	defer d.sim.mutex.Unlock()

	block, ok := d.sim.blocks.Get(ssptr)
	if !ok {
		return tiler.BlockSpec{}, errors.Newf("no block at system address 0x%x", uintptr(ssptr))
	}
	return block.footprint, nil
}

func (d *device) RegisterBuffer(blocks []tiler.BlockSpec) (tiler.BufferID, error) {
	err := d.begin(OpRegisterBuffer)
	if err != nil {
		return 0, err
	}
	defer d.sim.mutex.Unlock()

	if len(blocks) == 0 || len(blocks) > tiler.MaxBlocks {
		return 0, errors.Newf("cannot register a buffer of %d blocks", len(blocks))
	}
	for _, block := range blocks {
		if !d.sim.blocks.Has(block.SystemPtr) {
			return 0, errors.Newf("no block at system address 0x%x", uintptr(block.SystemPtr))
		}
	}

	// Buffer ids are handed out as page-aligned offsets, the way the driver exposes them for mmap
	id := d.sim.nextBufferID * tiler.PageSize
	d.sim.nextBufferID++

	recorded := make([]tiler.BlockSpec, len(blocks))
	copy(recorded, blocks)
	for i := range recorded {
		recorded[i].VirtualPtr = 0
	}
	d.sim.buffers.Put(id, recorded)

	return id, nil
}

func (d *device) UnregisterBuffer(id tiler.BufferID) error {
	err := d.begin(OpUnregisterBuffer)
	if err != nil {
		return err
	}
	defer d.sim.mutex.Unlock()

	if !d.sim.buffers.Delete(id) {
		return errors.Newf("no buffer registered as 0x%x", uint32(id))
	}
	return nil
}

func (d *device) QueryBuffer(id tiler.BufferID) ([]tiler.BlockSpec, error) {
	err := d.begin(OpQueryBuffer)
	if err != nil {
		return nil, err
	}
	defer d.sim.mutex.Unlock()

	recorded, ok := d.sim.buffers.Get(id)
	if !ok {
		return nil, errors.Newf("no buffer registered as 0x%x", uint32(id))
	}

	blocks := make([]tiler.BlockSpec, len(recorded))
	copy(blocks, recorded)
	return blocks, nil
}

func (d *device) MapBuffer(id tiler.BufferID, size int) ([]byte, error) {
	err := d.begin(OpMapBuffer)
	if err != nil {
		return nil, err
	}
	defer d.sim.mutex.Unlock()

	recorded, ok := d.sim.buffers.Get(id)
	if !ok {
		return nil, errors.Newf("no buffer registered as 0x%x", uint32(id))
	}

	offsets, packed := tiler.Layout(recorded)
	if size <= 0 || size > packed {
		return nil, errors.Newf("cannot map %d bytes of a %d byte buffer", size, packed)
	}

	data := d.sim.userBacking(recorded, size)
	user := data != nil
	if !user {
		data, err = unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
		if err != nil {
			return nil, errors.Wrapf(err, "mmap of %d bytes failed", size)
		}
	}

	d.sim.regions.Put(tiler.RegionBase(data), &simRegion{
		data:    data,
		user:    user,
		id:      id,
		blocks:  recorded,
		offsets: offsets,
		size:    size,
	})
	return data, nil
}

func (d *device) UnmapBuffer(region []byte) error {
	err := d.begin(OpUnmapBuffer)
	if err != nil {
		return err
	}
	defer d.sim.mutex.Unlock()

	base := tiler.RegionBase(region)
	mapped, ok := d.sim.regions.Get(base)
	if !ok {
		return errors.Newf("no mapped region at 0x%x", base)
	}

	d.sim.regions.Delete(base)
	if mapped.user {
		return nil
	}
	err = unix.Munmap(mapped.data)
	if err != nil {
		return errors.Wrapf(err, "munmap of region at 0x%x failed", base)
	}
	return nil
}

func (d *device) VirtToPhys(ptr uintptr) tiler.SSPtr {
	d.sim.mutex.Lock()
	defer d.sim.mutex.Unlock()

	if d.closed || ptr == 0 {
		return 0
	}
	return d.sim.virtToPhys(ptr)
}
