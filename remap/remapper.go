// Package remap re-exposes blocks that another processor already owns in the TILER as one contiguous
// buffer in this process. Remapped buffers are never freed here, only demapped: the blocks stay with
// the processor that allocated them.
package remap

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/tilerkit/memmgr/internal/blockdev"
	"github.com/tilerkit/memmgr/internal/utils"
	"github.com/tilerkit/memmgr/memutils"
	"github.com/tilerkit/memmgr/tiler"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific remapper behaviors to activate or deactivate
type CreateFlags int32

const (
	// RemapperCreateExternallySynchronized ensures that the remap table will not be synchronized
	// internally. The consumer must guarantee the remapper is used from only one goroutine at a time.
	RemapperCreateExternallySynchronized CreateFlags = 1 << iota
)

// CreateOptions contains optional settings when creating a remapper
type CreateOptions struct {
	Flags CreateFlags
}

type remapEntry struct {
	id     tiler.BufferID
	buffer *tiler.Buffer
}

// Remapper owns the table of remapped buffers. It is separate from any memmgr.Allocator and opens
// its own driver device for each call.
type Remapper struct {
	logger     *slog.Logger
	mutex      utils.OptionalMutex
	driver     tiler.Driver
	translator tiler.Translator

	table *swiss.Map[uintptr, remapEntry]
}

// New creates a Remapper
//
// translator - Resolves addresses handed over by the other processor
func New(logger *slog.Logger, driver tiler.Driver, translator tiler.Translator, options CreateOptions) (*Remapper, error) {
	if driver == nil {
		return nil, errors.New("attempted to create a remapper with a nil driver")
	}
	if translator == nil {
		return nil, errors.New("attempted to create a remapper with a nil translator")
	}

	return &Remapper{
		logger:     logger,
		mutex:      utils.OptionalMutex{UseMutex: options.Flags&RemapperCreateExternallySynchronized == 0},
		driver:     driver,
		translator: translator,
		table:      swiss.NewMap[uintptr, remapEntry](16),
	}, nil
}

// Count returns the number of buffers currently remapped
func (r *Remapper) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.table.Count()
}

func (r *Remapper) openDevice() (*blockdev.Adapter, error) {
	device, err := blockdev.Open(r.logger, r.driver)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "opening the driver"), memutils.ErrSessionError)
	}
	return device, nil
}

func (r *Remapper) closeDevice(device *blockdev.Adapter, err error) error {
	closeErr := device.Close()
	if closeErr == nil {
		return err
	}
	if err == nil {
		return errors.Mark(closeErr, memutils.ErrSessionError)
	}
	return errors.CombineErrors(err, closeErr)
}

// resolveBlocks translates every foreign address and rebuilds its block descriptor
func (r *Remapper) resolveBlocks(device *blockdev.Adapter, addresses []uintptr, lengths []int) ([]tiler.BlockSpec, error) {
	blocks := make([]tiler.BlockSpec, len(addresses))

	for i, foreign := range addresses {
		ssptr, err := r.translator.ToSystem(foreign)
		if err == nil && ssptr == 0 {
			err = errors.New("translated to a nil system address")
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "block %d at 0x%x", i, foreign), memutils.ErrTranslationFailed)
		}

		stored, err := device.QueryBlock(ssptr)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "block %d", i), memutils.ErrDriverMapFailed)
		}
		if stored.Format != tiler.Classify(ssptr) {
			return nil, errors.Wrapf(memutils.ErrDriverMapFailed, "block %d at 0x%x is recorded as %s",
				i, uintptr(ssptr), stored.Format)
		}

		block, ambiguous, err := inferBlock(stored, ssptr, lengths[i])
		if err != nil {
			return nil, errors.Wrapf(err, "block %d", i)
		}
		if ambiguous {
			r.logger.Warn("Remapper::RemapIn block height may not match the original allocation",
				slog.Int("Index", i),
				slog.String("Block", block.String()),
			)
		}

		blocks[i] = block
	}

	return blocks, nil
}

// RemapIn maps blocks another processor addresses at addresses into this process as one buffer.
// lengths holds the number of bytes wanted from each block; each must be a positive page multiple.
// A 2D length must be a whole number of rows at the block's default stride. Nothing is registered with
// the driver unless every block resolves, and a failure after registering undoes the registration and
// the mapping.
func (r *Remapper) RemapIn(addresses []uintptr, lengths []int) (buffer *tiler.Buffer, err error) {
	r.logger.Debug("Remapper::RemapIn", slog.Int("BlockCount", len(addresses)))

	if len(addresses) < 1 || len(addresses) > tiler.MaxBlocks {
		return nil, errors.Wrapf(memutils.ErrInvalidBlockCount, "%d blocks requested, must be between 1 and %d",
			len(addresses), tiler.MaxBlocks)
	}
	if len(lengths) != len(addresses) {
		return nil, errors.Wrapf(memutils.ErrInvalidBlockCount, "%d addresses but %d lengths",
			len(addresses), len(lengths))
	}
	for i, length := range lengths {
		if length <= 0 || !memutils.IsAligned(length, tiler.PageSize) {
			return nil, errors.Wrapf(memutils.ErrInvalidPageGeometry, "block %d length %d is not a positive page multiple",
				i, length)
		}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	device, err := r.openDevice()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = r.closeDevice(device, err)
			return
		}

		// The buffer is already recorded and the region outlives the device
		closeErr := device.Close()
		if closeErr != nil {
			r.logger.Error("Remapper::RemapIn could not close the driver", slog.Any("error", closeErr))
		}
	}()

	blocks, err := r.resolveBlocks(device, addresses, lengths)
	if err != nil {
		return nil, err
	}

	id, err := device.Register(blocks)
	if err != nil {
		return nil, errors.Mark(err, memutils.ErrDriverMapFailed)
	}
	defer func() {
		if err == nil {
			return
		}
		unregisterErr := device.Unregister(id)
		if unregisterErr != nil {
			r.logger.Error("Remapper::RemapIn could not unregister after a failure", slog.Any("error", unregisterErr))
		}
	}()

	_, size := tiler.Layout(blocks)
	region, err := device.MapRegion(id, size)
	if err != nil {
		return nil, errors.Mark(err, memutils.ErrDriverMapFailed)
	}
	// Runs before the unregister above
	defer func() {
		if err == nil {
			return
		}
		unmapErr := device.UnmapRegion(region)
		if unmapErr != nil {
			r.logger.Error("Remapper::RemapIn could not unmap after a failure", slog.Any("error", unmapErr))
		}
	}()

	buffer, err = tiler.NewBuffer(region, blocks)
	if err != nil {
		return nil, errors.Mark(err, memutils.ErrDriverMapFailed)
	}

	r.table.Put(buffer.Base(), remapEntry{id: id, buffer: buffer})
	r.logger.Debug("Remapper::RemapIn", slog.String("Buffer", buffer.String()))
	return buffer, nil
}

// RemapOut removes a buffer returned by RemapIn from this process. The blocks stay allocated for the
// processor that owns them. Every step is attempted and the first failure is returned; the buffer is
// forgotten either way.
func (r *Remapper) RemapOut(ptr uintptr) (err error) {
	r.logger.Debug("Remapper::RemapOut", slog.Uint64("Ptr", uint64(ptr)))

	r.mutex.Lock()
	defer r.mutex.Unlock()

	entry, ok := r.table.Get(ptr)
	if !ok {
		return errors.Wrapf(memutils.ErrBufferNotFound, "no remapped buffer at 0x%x", ptr)
	}

	// Without a device nothing can be torn down, so the entry stays for a later attempt
	device, err := r.openDevice()
	if err != nil {
		return err
	}
	defer func() {
		err = r.closeDevice(device, err)
	}()
	r.table.Delete(ptr)

	blocks, err := device.QueryBuffer(entry.id)
	if err == nil {
		r.logger.Debug("Remapper::RemapOut", slog.Uint64("BufferID", uint64(entry.id)), slog.Int("BlockCount", len(blocks)))
	}

	unregisterErr := device.Unregister(entry.id)
	if unregisterErr != nil {
		err = errors.CombineErrors(err, unregisterErr)
	}

	unmapErr := device.UnmapRegion(entry.buffer.Region())
	if unmapErr != nil {
		err = errors.CombineErrors(err, unmapErr)
	}

	return err
}
