// Package memmgr packs TILER blocks into contiguous, process-mapped buffers and keeps track of them
// until they are released. An Allocator owns the reference-counted driver session and the registry
// of live buffers; both change together under one mutex.
package memmgr

import (
	"github.com/cockroachdb/errors"
	"github.com/tilerkit/memmgr/internal/blockdev"
	"github.com/tilerkit/memmgr/internal/utils"
	"github.com/tilerkit/memmgr/memutils"
	"github.com/tilerkit/memmgr/tiler"
	"golang.org/x/exp/slog"
)

// bookkeeping is the state every public call must leave consistent: one registry entry per session
// reference
type bookkeeping struct {
	session  session
	registry registry
}

func (b *bookkeeping) Validate() error {
	err := b.session.Validate()
	if err != nil {
		return err
	}

	if b.registry.count() != b.session.refCount {
		return errors.Newf("registry holds %d buffers but the session reference count is %d",
			b.registry.count(), b.session.refCount)
	}
	return nil
}

// blockBinding is how one kind of buffer obtains and releases its blocks from the driver
type blockBinding struct {
	bind    func(device *blockdev.Adapter, block tiler.BlockSpec) (tiler.SSPtr, error)
	release func(device *blockdev.Adapter, ssptr tiler.SSPtr) error
	// failure marks a failed bind
	failure error
}

var allocatedBinding = blockBinding{
	bind:    (*blockdev.Adapter).AllocBlock,
	release: (*blockdev.Adapter).FreeBlock,
	failure: memutils.ErrDriverAllocFailed,
}

var mappedBinding = blockBinding{
	bind:    (*blockdev.Adapter).MapBlock,
	release: (*blockdev.Adapter).UnMapBlock,
	failure: memutils.ErrDriverMapFailed,
}

// Allocator creates and releases packed TILER buffers. It is safe for concurrent use unless it was
// created with AllocatorCreateExternallySynchronized.
type Allocator struct {
	logger      *slog.Logger
	mutex       utils.OptionalMutex
	createFlags CreateFlags

	books bookkeeping
}

// CheckConsistency reports an error if the buffer registry and the session reference count have
// diverged. Builds with the debug_mem_utils tag panic on the same condition after every call.
func (a *Allocator) CheckConsistency() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.books.Validate()
}

// PageSize returns the TILER page size, which is the packing and user-memory alignment unit
func (a *Allocator) PageSize() int {
	return tiler.PageSize
}

// Alloc allocates every block in blocks and packs them into one buffer. On success each block's
// VirtualPtr and SystemPtr are filled in, and a 2D block's Stride is set to the default stride. On
// failure nothing is left allocated and blocks are restored to what was passed in.
func (a *Allocator) Alloc(blocks []tiler.BlockSpec) (*tiler.Buffer, error) {
	a.logger.Debug("Allocator::Alloc", slog.Int("BlockCount", len(blocks)))

	err := validateBlocks(blocks)
	if err != nil {
		return nil, err
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()
	defer memutils.DebugValidate(&a.books)

	return a.createBuffer(blocks, allocatedBinding, func(record bufferRecord) registryEntry {
		return &allocatedEntry{bufferRecord: record}
	})
}

// Map associates page-aligned caller memory with the page-mode container and maps it as a buffer.
// blocks must hold exactly one FormatPage block whose VirtualPtr is the caller memory. On success
// VirtualPtr is replaced by the address of the new mapping and SystemPtr is filled in. The caller
// memory must stay valid until UnMap.
func (a *Allocator) Map(blocks []tiler.BlockSpec) (*tiler.Buffer, error) {
	a.logger.Debug("Allocator::Map", slog.Int("BlockCount", len(blocks)))

	err := validateUserBlocks(blocks)
	if err != nil {
		return nil, err
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()
	defer memutils.DebugValidate(&a.books)

	return a.createBuffer(blocks, mappedBinding, func(record bufferRecord) registryEntry {
		return &mappedEntry{bufferRecord: record}
	})
}

// MapBytes maps data, which must start and end on a page boundary, as a single page-mode block with
// the given stride. data must stay reachable until UnMap.
func (a *Allocator) MapBytes(data []byte, stride int) (*tiler.Buffer, error) {
	blocks := []tiler.BlockSpec{
		{
			Format:     tiler.FormatPage,
			Length:     len(data),
			Stride:     stride,
			VirtualPtr: tiler.RegionBase(data),
		},
	}
	return a.Map(blocks)
}

func (a *Allocator) createBuffer(
	blocks []tiler.BlockSpec,
	binding blockBinding,
	newEntry func(record bufferRecord) registryEntry,
) (buffer *tiler.Buffer, err error) {
	inputs := make([]tiler.BlockSpec, len(blocks))
	copy(inputs, blocks)

	err = a.books.session.acquire()
	if err != nil {
		copy(blocks, inputs)
		return nil, err
	}
	device := a.books.session.device

	var undo []func() error
	defer func() {
		if err == nil {
			return
		}

		for i := len(undo) - 1; i >= 0; i-- {
			undoErr := undo[i]()
			if undoErr != nil {
				a.logger.Error("Allocator::createBuffer rollback step failed", slog.Any("error", undoErr))
			}
		}
		copy(blocks, inputs)

		releaseErr := a.books.session.release()
		if releaseErr != nil {
			err = errors.WithSecondaryError(err, releaseErr)
		}
	}()

	for i := range blocks {
		if blocks[i].Format.Is2D() && blocks[i].Stride == 0 {
			blocks[i].Stride = tiler.DefaultStride(blocks[i].Width * tiler.BytesPerPixel(blocks[i].Format))
		}

		ssptr, bindErr := binding.bind(device, blocks[i])
		if bindErr != nil {
			return nil, errors.Mark(errors.Wrapf(bindErr, "block %d", i), binding.failure)
		}

		blocks[i].SystemPtr = ssptr
		undo = append(undo, func() error {
			return binding.release(device, ssptr)
		})
	}

	id, err := device.Register(blocks)
	if err != nil {
		return nil, errors.Mark(err, memutils.ErrDriverMapFailed)
	}
	undo = append(undo, func() error {
		return device.Unregister(id)
	})

	_, size := tiler.Layout(blocks)
	region, err := device.MapRegion(id, size)
	if err != nil {
		return nil, errors.Mark(err, memutils.ErrDriverMapFailed)
	}
	undo = append(undo, func() error {
		return device.UnmapRegion(region)
	})

	buffer, err = tiler.NewBuffer(region, blocks)
	if err != nil {
		return nil, errors.Mark(err, memutils.ErrDriverMapFailed)
	}

	a.books.registry.insert(buffer.Base(), newEntry(bufferRecord{id: id, buffer: buffer}))
	a.logger.Debug("Allocator::createBuffer", slog.String("Buffer", buffer.String()))
	return buffer, nil
}

// Free releases a buffer returned by Alloc. Every teardown step is attempted even if an earlier one
// fails; the first failure is returned. The buffer is no longer tracked afterwards, whatever the
// outcome.
func (a *Allocator) Free(ptr uintptr) error {
	a.logger.Debug("Allocator::Free", slog.Uint64("Ptr", uint64(ptr)))

	a.mutex.Lock()
	defer a.mutex.Unlock()
	defer memutils.DebugValidate(&a.books)

	entry, ok := takeEntry[*allocatedEntry](&a.books.registry, ptr)
	if !ok {
		return errors.Wrapf(memutils.ErrBufferNotFound, "no allocated buffer at 0x%x", ptr)
	}

	return a.destroyBuffer(entry.record(), allocatedBinding)
}

// UnMap releases a buffer returned by Map. The caller memory is not touched. Teardown follows the
// same rules as Free.
func (a *Allocator) UnMap(ptr uintptr) error {
	a.logger.Debug("Allocator::UnMap", slog.Uint64("Ptr", uint64(ptr)))

	a.mutex.Lock()
	defer a.mutex.Unlock()
	defer memutils.DebugValidate(&a.books)

	entry, ok := takeEntry[*mappedEntry](&a.books.registry, ptr)
	if !ok {
		return errors.Wrapf(memutils.ErrBufferNotFound, "no mapped buffer at 0x%x", ptr)
	}

	return a.destroyBuffer(entry.record(), mappedBinding)
}

func (a *Allocator) destroyBuffer(record *bufferRecord, binding blockBinding) error {
	device := a.books.session.device

	blocks, err := device.QueryBuffer(record.id)
	if err != nil {
		a.logger.Error("Allocator::destroyBuffer could not query the driver, using the recorded block list",
			slog.Any("error", err))
		blocks = record.buffer.Blocks()
	}

	unregisterErr := device.Unregister(record.id)
	if unregisterErr != nil {
		err = errors.CombineErrors(err, unregisterErr)
	}

	partial := false
	for _, block := range blocks {
		releaseErr := binding.release(device, block.SystemPtr)
		if releaseErr != nil {
			partial = true
			err = errors.CombineErrors(err, releaseErr)
		}
	}

	unmapErr := device.UnmapRegion(record.buffer.Region())
	if unmapErr != nil {
		err = errors.CombineErrors(err, unmapErr)
	}

	sessionErr := a.books.session.release()
	if sessionErr != nil {
		err = errors.CombineErrors(err, sessionErr)
	}

	// Later failures ride along as secondary errors, so the kinds of failure are marked on the result
	if partial {
		err = errors.Mark(err, memutils.ErrPartialTeardownFailure)
	}
	if sessionErr != nil && !errors.Is(err, memutils.ErrSessionError) {
		err = errors.Mark(err, memutils.ErrSessionError)
	}
	return err
}
