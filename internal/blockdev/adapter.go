package blockdev

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/tilerkit/memmgr/tiler"
	"golang.org/x/exp/slog"
)

// Adapter wraps an open tiler.Device. It logs every driver call and keeps counts of the blocks,
// buffers and regions created through it minus those released through it. A count goes negative
// when an object created through another device is released here.
type Adapter struct {
	logger *slog.Logger
	device tiler.Device

	// Number of blocks allocated or mapped through this adapter and not yet released
	blockCount int32
	// Number of buffers registered and not yet unregistered
	bufferCount int32
	// Number of virtual regions mapped and not yet unmapped
	regionCount int32
	// Total size of those regions
	regionBytes int64
}

// Open opens a device from driver and wraps it
func Open(logger *slog.Logger, driver tiler.Driver) (*Adapter, error) {
	device, err := driver.Open()
	if err != nil {
		return nil, err
	}

	return &Adapter{
		logger: logger,
		device: device,
	}, nil
}

// Close closes the underlying device. Mapped regions stay valid after the device is closed.
func (a *Adapter) Close() error {
	a.logger.Debug("Device::Close",
		slog.Int("LiveBlocks", a.LiveBlocks()),
		slog.Int("LiveBuffers", a.LiveBuffers()),
		slog.Int("LiveRegions", a.LiveRegions()),
	)

	err := a.device.Close()
	if err != nil {
		return errors.Wrap(err, "closing the driver device")
	}
	return nil
}

func (a *Adapter) LiveBlocks() int {
	return int(atomic.LoadInt32(&a.blockCount))
}

func (a *Adapter) LiveBuffers() int {
	return int(atomic.LoadInt32(&a.bufferCount))
}

func (a *Adapter) LiveRegions() int {
	return int(atomic.LoadInt32(&a.regionCount))
}

func (a *Adapter) RegionBytes() int {
	return int(atomic.LoadInt64(&a.regionBytes))
}

// AllocBlock allocates backing storage for one block
func (a *Adapter) AllocBlock(block tiler.BlockSpec) (tiler.SSPtr, error) {
	ssptr, err := a.device.Alloc(block)
	if err != nil {
		return 0, errors.Wrapf(err, "allocating %s block", block.Format)
	}

	atomic.AddInt32(&a.blockCount, 1)
	a.logger.Debug("Device::AllocBlock", slog.String("Block", block.String()), slog.Uint64("SystemPtr", uint64(ssptr)))
	return ssptr, nil
}

// FreeBlock releases a block from AllocBlock
func (a *Adapter) FreeBlock(ssptr tiler.SSPtr) error {
	a.logger.Debug("Device::FreeBlock", slog.Uint64("SystemPtr", uint64(ssptr)))

	err := a.device.Free(ssptr)
	if err != nil {
		return errors.Wrapf(err, "freeing block at 0x%x", uintptr(ssptr))
	}

	atomic.AddInt32(&a.blockCount, -1)
	return nil
}

// MapBlock associates caller memory with a page-mode block
func (a *Adapter) MapBlock(block tiler.BlockSpec) (tiler.SSPtr, error) {
	ssptr, err := a.device.Map(block)
	if err != nil {
		return 0, errors.Wrapf(err, "mapping user memory at 0x%x", block.VirtualPtr)
	}

	atomic.AddInt32(&a.blockCount, 1)
	a.logger.Debug("Device::MapBlock", slog.String("Block", block.String()), slog.Uint64("SystemPtr", uint64(ssptr)))
	return ssptr, nil
}

// UnMapBlock dissociates a block from MapBlock. The caller memory stays valid.
func (a *Adapter) UnMapBlock(ssptr tiler.SSPtr) error {
	a.logger.Debug("Device::UnMapBlock", slog.Uint64("SystemPtr", uint64(ssptr)))

	err := a.device.UnMap(ssptr)
	if err != nil {
		return errors.Wrapf(err, "unmapping block at 0x%x", uintptr(ssptr))
	}

	atomic.AddInt32(&a.blockCount, -1)
	return nil
}

// QueryBlock returns the footprint the driver recorded for a block
func (a *Adapter) QueryBlock(ssptr tiler.SSPtr) (tiler.BlockSpec, error) {
	block, err := a.device.QueryBlock(ssptr)
	if err != nil {
		return tiler.BlockSpec{}, errors.Wrapf(err, "querying block at 0x%x", uintptr(ssptr))
	}
	return block, nil
}

// Register names blocks as one buffer
func (a *Adapter) Register(blocks []tiler.BlockSpec) (tiler.BufferID, error) {
	id, err := a.device.RegisterBuffer(blocks)
	if err != nil {
		return 0, errors.Wrapf(err, "registering a buffer of %d blocks", len(blocks))
	}

	atomic.AddInt32(&a.bufferCount, 1)
	a.logger.Debug("Device::Register", slog.Int("BlockCount", len(blocks)), slog.Uint64("BufferID", uint64(id)))
	return id, nil
}

// Unregister drops a buffer name. The counters treat the name as gone even when the driver fails,
// since no caller can retry with the same name.
func (a *Adapter) Unregister(id tiler.BufferID) error {
	a.logger.Debug("Device::Unregister", slog.Uint64("BufferID", uint64(id)))

	atomic.AddInt32(&a.bufferCount, -1)
	err := a.device.UnregisterBuffer(id)
	if err != nil {
		return errors.Wrapf(err, "unregistering buffer 0x%x", uint32(id))
	}
	return nil
}

// QueryBuffer returns the block list the driver holds for a buffer
func (a *Adapter) QueryBuffer(id tiler.BufferID) ([]tiler.BlockSpec, error) {
	blocks, err := a.device.QueryBuffer(id)
	if err != nil {
		return nil, errors.Wrapf(err, "querying buffer 0x%x", uint32(id))
	}
	return blocks, nil
}

// MapRegion maps a registered buffer into the process
func (a *Adapter) MapRegion(id tiler.BufferID, size int) ([]byte, error) {
	region, err := a.device.MapBuffer(id, size)
	if err != nil {
		return nil, errors.Wrapf(err, "mapping buffer 0x%x", uint32(id))
	}

	atomic.AddInt32(&a.regionCount, 1)
	atomic.AddInt64(&a.regionBytes, int64(len(region)))
	a.logger.Debug("Device::MapRegion", slog.Uint64("BufferID", uint64(id)), slog.Int("Size", size))
	return region, nil
}

// UnmapRegion removes a mapping from MapRegion
func (a *Adapter) UnmapRegion(region []byte) error {
	a.logger.Debug("Device::UnmapRegion", slog.Uint64("Base", uint64(tiler.RegionBase(region))))

	err := a.device.UnmapBuffer(region)
	if err != nil {
		return errors.Wrapf(err, "unmapping region at 0x%x", tiler.RegionBase(region))
	}

	atomic.AddInt32(&a.regionCount, -1)
	atomic.AddInt64(&a.regionBytes, -int64(len(region)))
	return nil
}

// VirtToPhys translates a process address to system space, returning 0 when the driver does not
// know the address
func (a *Adapter) VirtToPhys(ptr uintptr) tiler.SSPtr {
	if ptr == 0 {
		return 0
	}
	return a.device.VirtToPhys(ptr)
}
