package tiler

import (
	"fmt"

	"github.com/tilerkit/memmgr/memutils"
)

// BlockSpec describes one block to allocate or map. VirtualPtr and SystemPtr are filled in by the
// allocator and must be zero when a spec is handed to an allocation call.
type BlockSpec struct {
	Format PixelFormat
	// Width and Height are the dimensions of a 2D block in pixels
	Width  int
	Height int
	// Length is the size of a 1D block in bytes
	Length int
	// Stride is the distance between rows in bytes. Zero selects the default.
	Stride int

	VirtualPtr uintptr
	SystemPtr  SSPtr
}

func (b BlockSpec) String() string {
	switch {
	case b.Format == FormatPage:
		return fmt.Sprintf("[p=0x%x(0x%x),l=0x%x,s=%d]", b.VirtualPtr, uintptr(b.SystemPtr), b.Length, b.Stride)
	case b.Format.Is2D():
		return fmt.Sprintf("[p=0x%x(0x%x),%d*%d*%d,s=%d]", b.VirtualPtr, uintptr(b.SystemPtr),
			b.Width, b.Height, BytesPerPixel(b.Format)*8, b.Stride)
	}
	return fmt.Sprintf("*[p=0x%x(0x%x),l=0x%x,s=%d,fmt=%s]", b.VirtualPtr, uintptr(b.SystemPtr), b.Length, b.Stride, b.Format)
}

// ClearOutputs zeroes the fields the allocator fills in
func (b *BlockSpec) ClearOutputs() {
	b.VirtualPtr = 0
	b.SystemPtr = 0
}

// BytesPerPixel returns the pixel size of a 2D format, and 0 for any other format
func BytesPerPixel(format PixelFormat) int {
	switch format {
	case Format8Bit:
		return 1
	case Format16Bit:
		return 2
	case Format32Bit:
		return 4
	}
	return 0
}

// DefaultStride returns the smallest page multiple that holds byteWidth bytes
func DefaultStride(byteWidth int) int {
	return memutils.AlignUp(byteWidth, PageSize)
}

// BlockSize returns the number of bytes a block occupies in a packed buffer: the length of a 1D block,
// or height rows of the default stride for a 2D block
func BlockSize(spec BlockSpec) int {
	if spec.Format == FormatPage {
		return spec.Length
	}
	return spec.Height * DefaultStride(spec.Width*BytesPerPixel(spec.Format))
}

// CheckedBlockSize computes BlockSize but fails instead of producing a value that does not fit in the
// driver's 32-bit geometry fields
func CheckedBlockSize(spec BlockSpec) (int, error) {
	if spec.Format == FormatPage {
		return memutils.CheckedAdd(spec.Length, 0)
	}

	byteWidth, err := memutils.CheckedMul(spec.Width, BytesPerPixel(spec.Format))
	if err != nil {
		return 0, err
	}
	stride, err := memutils.CheckedAdd(byteWidth, PageSize-1)
	if err != nil {
		return 0, err
	}
	stride = memutils.AlignDown(stride, PageSize)
	return memutils.CheckedMul(spec.Height, stride)
}
