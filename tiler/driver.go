package tiler

//go:generate mockgen -source driver.go -destination mocks/mock_driver.go -package mocks

// Driver is the privileged block-storage driver. Opening it performs driver initialization for the
// calling process.
type Driver interface {
	Open() (Device, error)
}

// Device is an open connection to the block-storage driver
type Device interface {
	// Close deinitializes and closes the connection
	Close() error

	// Alloc allocates backing storage for one 1D or 2D block and returns its system-space address.
	// Only the format and geometry of block are read.
	Alloc(block BlockSpec) (SSPtr, error)
	// Free releases a block previously returned by Alloc
	Free(ssptr SSPtr) error
	// Map associates the caller memory at block.VirtualPtr with the page-mode container and returns
	// the resulting system-space address
	Map(block BlockSpec) (SSPtr, error)
	// UnMap dissociates a block previously returned by Map. The caller memory is untouched.
	UnMap(ssptr SSPtr) error
	// QueryBlock returns the geometry the driver recorded for a block. The driver only tracks the
	// allocated footprint, so 2D dimensions are rounded up to the slot grid and 1D lengths to pages.
	QueryBlock(ssptr SSPtr) (BlockSpec, error)

	// RegisterBuffer names a list of blocks as one buffer
	RegisterBuffer(blocks []BlockSpec) (BufferID, error)
	// UnregisterBuffer drops a buffer name. The blocks themselves stay allocated.
	UnregisterBuffer(id BufferID) error
	// QueryBuffer returns the blocks registered under a buffer name
	QueryBuffer(id BufferID) ([]BlockSpec, error)
	// MapBuffer maps a registered buffer contiguously into the calling process
	MapBuffer(id BufferID, size int) ([]byte, error)
	// UnmapBuffer removes a mapping returned by MapBuffer
	UnmapBuffer(region []byte) error

	// VirtToPhys translates a process virtual address to a system-space address. It returns 0 for
	// addresses the driver does not know.
	VirtToPhys(ptr uintptr) SSPtr
}

// Translator is the cross-processor translation service: it resolves an address valid in another
// processor's page tables to a system-space address
type Translator interface {
	ToSystem(foreign uintptr) (SSPtr, error)
}
