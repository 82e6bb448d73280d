package memutils

import "github.com/cockroachdb/errors"

// OverflowError is the error returned from CheckedMul and CheckedAdd when a result does not fit in 32 bits
var OverflowError error = errors.New("geometry value overflows 32 bits")

var (
	// ErrInvalidBlockCount is returned when a block list is empty or holds more than tiler.MaxBlocks entries
	ErrInvalidBlockCount = errors.New("invalid block count")
	// ErrInvalidFormat is returned when a block's pixel format is outside the supported range
	ErrInvalidFormat = errors.New("invalid pixel format")
	// ErrInvalidPageGeometry is returned for a 1D block with a zero length or a length that is not a
	// multiple of its stride
	ErrInvalidPageGeometry = errors.New("invalid 1D block geometry")
	// ErrInvalid2DGeometry is returned for a 2D block with a zero dimension or a stride other than the
	// default stride for its width
	ErrInvalid2DGeometry = errors.New("invalid 2D block geometry")
	// ErrUnalignedPacking is returned when a block other than the last one in a buffer does not end on a
	// page boundary
	ErrUnalignedPacking = errors.New("block size is not a page multiple and is not the last block")
	// ErrReusedBlockSpec is returned when a block's output fields are already populated
	ErrReusedBlockSpec = errors.New("block spec output fields are already set")
	// ErrUnalignedUserBuffer is returned when user memory handed to Map is not page-aligned
	ErrUnalignedUserBuffer = errors.New("user buffer is not page-aligned")
	// ErrSessionError is returned when opening, initializing or closing the driver fails
	ErrSessionError = errors.New("tiler driver session failure")
	// ErrSessionNotActive is returned when a session is released more times than it was acquired
	ErrSessionNotActive = errors.New("tiler driver session is not active")
	// ErrDriverAllocFailed is returned when the driver fails to allocate or map a block
	ErrDriverAllocFailed = errors.New("tiler driver block allocation failed")
	// ErrDriverMapFailed is returned when the driver fails to register or map a buffer
	ErrDriverMapFailed = errors.New("tiler driver buffer mapping failed")
	// ErrBufferNotFound is returned when freeing or unmapping a pointer that is not tracked with the
	// requested ownership
	ErrBufferNotFound = errors.New("buffer not found")
	// ErrTranslationFailed is returned when another processor's address cannot be translated to system space
	ErrTranslationFailed = errors.New("cross-processor address translation failed")
	// ErrPartialTeardownFailure is returned when one or more blocks failed to be released during teardown
	ErrPartialTeardownFailure = errors.New("one or more blocks failed to be released")
)
