package memmgr

import (
	"github.com/tilerkit/memmgr/internal/blockdev"
	"github.com/tilerkit/memmgr/tiler"
	"golang.org/x/exp/slog"
)

// virtToPhys asks the driver through the session device, or through a device opened for this one
// call when no session is active. It returns 0 when the driver cannot be reached.
func (a *Allocator) virtToPhys(ptr uintptr) tiler.SSPtr {
	if ptr == 0 {
		return 0
	}

	if a.books.session.active() {
		return a.books.session.device.VirtToPhys(ptr)
	}

	device, err := blockdev.Open(a.logger, a.books.session.driver)
	if err != nil {
		a.logger.Debug("Allocator::virtToPhys could not open the driver", slog.Any("error", err))
		return 0
	}
	defer func() {
		closeErr := device.Close()
		if closeErr != nil {
			a.logger.Error("Allocator::virtToPhys could not close the driver", slog.Any("error", closeErr))
		}
	}()

	return device.VirtToPhys(ptr)
}

// VirtToPhys returns the system-space address behind a process address, or 0 for a nil or
// unmapped address
func (a *Allocator) VirtToPhys(ptr uintptr) tiler.SSPtr {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.virtToPhys(ptr)
}

// Is1DBlock reports whether ptr lies in a page-mode block
func (a *Allocator) Is1DBlock(ptr uintptr) bool {
	return tiler.Classify(a.VirtToPhys(ptr)) == tiler.FormatPage
}

// Is2DBlock reports whether ptr lies in an 8-, 16- or 32-bit block
func (a *Allocator) Is2DBlock(ptr uintptr) bool {
	return tiler.Classify(a.VirtToPhys(ptr)).Is2D()
}

// IsMapped reports whether ptr lies in any TILER block
func (a *Allocator) IsMapped(ptr uintptr) bool {
	return tiler.Classify(a.VirtToPhys(ptr)).Valid()
}

// GetStride returns the row stride at ptr. 2D blocks report the fixed stride of their container.
// Page-mode blocks report the stride they were created with if this allocator tracks them, which may
// be 0, and the page size otherwise. Unmapped addresses report 0, so use IsMapped to tell the two
// zero cases apart.
func (a *Allocator) GetStride(ptr uintptr) int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	ssptr := a.virtToPhys(ptr)
	format := tiler.Classify(ssptr)

	switch {
	case format.Is2D():
		return tiler.FixedStride(ssptr)
	case format == tiler.FormatPage:
		entry := a.books.registry.find(ptr)
		if entry != nil {
			block, ok := entry.record().blockAt(ptr)
			if ok {
				return block.Stride
			}
		}
		return tiler.PageSize
	}

	return 0
}
