package remap

import (
	"github.com/cockroachdb/errors"
	"github.com/tilerkit/memmgr/memutils"
	"github.com/tilerkit/memmgr/tiler"
)

// Aspect ratios, in thousandths, beyond which a block's footprint no longer pins down its height
const (
	ambiguousRatio16Bit = 73148
	ambiguousRatio32Bit = 36574
)

// inferBlock rebuilds the local descriptor of a remote block from the footprint the driver recorded
// for it and the number of bytes the caller wants to see. The driver only keeps the slot-rounded
// allocation, so a 2D block keeps the stored width and takes its height from length. ambiguous is set
// for the aspect ratios where that rule cannot recover the original height.
func inferBlock(stored tiler.BlockSpec, ssptr tiler.SSPtr, length int) (block tiler.BlockSpec, ambiguous bool, err error) {
	if !stored.Format.Valid() {
		return tiler.BlockSpec{}, false, errors.Wrapf(memutils.ErrInvalidFormat,
			"block at 0x%x has format %s", uintptr(ssptr), stored.Format)
	}

	if stored.Format == tiler.FormatPage {
		if length > stored.Length {
			return tiler.BlockSpec{}, false, errors.Wrapf(memutils.ErrInvalidPageGeometry,
				"%d bytes requested from a %d byte block at 0x%x", length, stored.Length, uintptr(ssptr))
		}
		return tiler.BlockSpec{
			Format:    tiler.FormatPage,
			Length:    length,
			SystemPtr: ssptr,
		}, false, nil
	}

	byteWidth, err := memutils.CheckedMul(stored.Width, tiler.BytesPerPixel(stored.Format))
	if err != nil || byteWidth == 0 {
		return tiler.BlockSpec{}, false, errors.Wrapf(memutils.ErrInvalid2DGeometry,
			"block at 0x%x is recorded as %dx%d", uintptr(ssptr), stored.Width, stored.Height)
	}

	stride := tiler.DefaultStride(byteWidth)
	if length%stride != 0 {
		return tiler.BlockSpec{}, false, errors.Wrapf(memutils.ErrInvalid2DGeometry,
			"%d bytes is not a whole number of %d byte rows at 0x%x", length, stride, uintptr(ssptr))
	}
	height := length / stride
	if height < 1 || height > stored.Height {
		return tiler.BlockSpec{}, false, errors.Wrapf(memutils.ErrInvalid2DGeometry,
			"%d bytes at stride %d is %d rows of a %d row block at 0x%x",
			length, stride, height, stored.Height, uintptr(ssptr))
	}

	block = tiler.BlockSpec{
		Format:    stored.Format,
		Width:     stored.Width,
		Height:    height,
		Stride:    stride,
		SystemPtr: ssptr,
	}

	switch stored.Format {
	case tiler.Format16Bit:
		ambiguous = block.Width*1000 > ambiguousRatio16Bit*block.Height
	case tiler.Format32Bit:
		ambiguous = block.Width*1000 > ambiguousRatio32Bit*block.Height
	}
	return block, ambiguous, nil
}
