package memmgr

import (
	"github.com/cockroachdb/errors"
	"github.com/tilerkit/memmgr/memutils"
	"github.com/tilerkit/memmgr/tiler"
)

func validatePageGeometry(index int, block tiler.BlockSpec) error {
	if block.Length <= 0 {
		return errors.Wrapf(memutils.ErrInvalidPageGeometry, "block %d has length %d", index, block.Length)
	}
	if block.Stride < 0 || (block.Stride != 0 && block.Length%block.Stride != 0) {
		return errors.Wrapf(memutils.ErrInvalidPageGeometry, "block %d length %d is not a multiple of stride %d",
			index, block.Length, block.Stride)
	}
	return nil
}

func validate2DGeometry(index int, block tiler.BlockSpec) error {
	if block.Width <= 0 || block.Height <= 0 {
		return errors.Wrapf(memutils.ErrInvalid2DGeometry, "block %d is %dx%d", index, block.Width, block.Height)
	}

	byteWidth, err := memutils.CheckedMul(block.Width, tiler.BytesPerPixel(block.Format))
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "block %d width", index), memutils.ErrInvalid2DGeometry)
	}

	if block.Stride != 0 && block.Stride != tiler.DefaultStride(byteWidth) {
		return errors.Wrapf(memutils.ErrInvalid2DGeometry, "block %d stride %d does not match the default stride %d",
			index, block.Stride, tiler.DefaultStride(byteWidth))
	}
	return nil
}

func validateGeometry(index int, block tiler.BlockSpec) error {
	if !block.Format.Valid() {
		return errors.Wrapf(memutils.ErrInvalidFormat, "block %d has format %s", index, block.Format)
	}

	if block.Format == tiler.FormatPage {
		return validatePageGeometry(index, block)
	}
	return validate2DGeometry(index, block)
}

// checkedSize returns the packed size of a block, marking overflow with the geometry error of its
// format
func checkedSize(index int, block tiler.BlockSpec) (int, error) {
	size, err := tiler.CheckedBlockSize(block)
	if err == nil {
		return size, nil
	}

	kind := memutils.ErrInvalid2DGeometry
	if block.Format == tiler.FormatPage {
		kind = memutils.ErrInvalidPageGeometry
	}
	return 0, errors.Mark(errors.Wrapf(err, "block %d size", index), kind)
}

// validateBlocks checks a block list handed to Alloc. It reads nothing but the list.
func validateBlocks(blocks []tiler.BlockSpec) error {
	if len(blocks) < 1 || len(blocks) > tiler.MaxBlocks {
		return errors.Wrapf(memutils.ErrInvalidBlockCount, "%d blocks requested, must be between 1 and %d",
			len(blocks), tiler.MaxBlocks)
	}

	total := 0
	for i, block := range blocks {
		err := validateGeometry(i, block)
		if err != nil {
			return err
		}

		if block.VirtualPtr != 0 || block.SystemPtr != 0 {
			return errors.Wrapf(memutils.ErrReusedBlockSpec, "block %d", i)
		}

		size, err := checkedSize(i, block)
		if err != nil {
			return err
		}

		if i+1 < len(blocks) && !memutils.IsAligned(size, tiler.PageSize) {
			return errors.Wrapf(memutils.ErrUnalignedPacking, "block %d is %d bytes", i, size)
		}

		total, err = memutils.CheckedAdd(total, size)
		if err != nil {
			kind := memutils.ErrInvalid2DGeometry
			if block.Format == tiler.FormatPage {
				kind = memutils.ErrInvalidPageGeometry
			}
			return errors.Mark(errors.Wrap(err, "total buffer size"), kind)
		}
	}

	return nil
}

// validateUserBlocks checks a block list handed to Map: one page-mode block over page-aligned caller
// memory
func validateUserBlocks(blocks []tiler.BlockSpec) error {
	if len(blocks) != 1 {
		return errors.Wrapf(memutils.ErrInvalidBlockCount, "%d blocks requested, user memory maps exactly one", len(blocks))
	}

	block := blocks[0]
	if block.Format != tiler.FormatPage {
		return errors.Wrapf(memutils.ErrInvalidFormat, "user memory must be mapped in %s, not %s", tiler.FormatPage, block.Format)
	}

	err := validatePageGeometry(0, block)
	if err != nil {
		return err
	}

	if block.SystemPtr != 0 {
		return errors.Wrap(memutils.ErrReusedBlockSpec, "block 0")
	}

	if block.VirtualPtr == 0 || !memutils.IsAligned(block.VirtualPtr, tiler.PageSize) ||
		!memutils.IsAligned(block.Length, tiler.PageSize) {
		return errors.Wrapf(memutils.ErrUnalignedUserBuffer, "user memory at 0x%x with length %d",
			block.VirtualPtr, block.Length)
	}

	_, err = checkedSize(0, block)
	return err
}
