package memmgr

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/tilerkit/memmgr/memutils"
	"github.com/tilerkit/memmgr/tiler"
)

func TestValidateBlocks(t *testing.T) {
	testCases := map[string]struct {
		blocks      []tiler.BlockSpec
		expectedErr error
	}{
		"SinglePage": {
			blocks: []tiler.BlockSpec{{Format: tiler.FormatPage, Length: 1}},
		},
		"NV12": {
			blocks: []tiler.BlockSpec{
				{Format: tiler.Format8Bit, Width: 1920, Height: 1080},
				{Format: tiler.Format16Bit, Width: 960, Height: 540},
			},
		},
		"ExplicitDefaultStride": {
			blocks: []tiler.BlockSpec{{Format: tiler.Format32Bit, Width: 1025, Height: 1, Stride: 2 * tiler.PageSize}},
		},
		"PageStrideDividesLength": {
			blocks: []tiler.BlockSpec{{Format: tiler.FormatPage, Length: 3 * 640, Stride: 640}},
		},
		"Empty": {
			blocks:      []tiler.BlockSpec{},
			expectedErr: memutils.ErrInvalidBlockCount,
		},
		"InvalidFormat": {
			blocks:      []tiler.BlockSpec{{Format: tiler.FormatNone, Length: tiler.PageSize}},
			expectedErr: memutils.ErrInvalidFormat,
		},
		"FormatOutOfRange": {
			blocks:      []tiler.BlockSpec{{Format: 7, Length: tiler.PageSize}},
			expectedErr: memutils.ErrInvalidFormat,
		},
		"ZeroLength": {
			blocks:      []tiler.BlockSpec{{Format: tiler.FormatPage}},
			expectedErr: memutils.ErrInvalidPageGeometry,
		},
		"StrideDoesNotDivideLength": {
			blocks:      []tiler.BlockSpec{{Format: tiler.FormatPage, Length: 1000, Stride: 300}},
			expectedErr: memutils.ErrInvalidPageGeometry,
		},
		"ZeroHeight": {
			blocks:      []tiler.BlockSpec{{Format: tiler.Format8Bit, Width: 64}},
			expectedErr: memutils.ErrInvalid2DGeometry,
		},
		"NegativeWidth": {
			blocks:      []tiler.BlockSpec{{Format: tiler.Format16Bit, Width: -4, Height: 4}},
			expectedErr: memutils.ErrInvalid2DGeometry,
		},
		"WrongStride": {
			blocks:      []tiler.BlockSpec{{Format: tiler.Format8Bit, Width: 64, Height: 64, Stride: 64}},
			expectedErr: memutils.ErrInvalid2DGeometry,
		},
		"Overflowing2D": {
			blocks:      []tiler.BlockSpec{{Format: tiler.Format32Bit, Width: 1 << 20, Height: 1 << 20}},
			expectedErr: memutils.ErrInvalid2DGeometry,
		},
		"OverflowingTotal": {
			blocks: []tiler.BlockSpec{
				{Format: tiler.FormatPage, Length: 1 << 31},
				{Format: tiler.FormatPage, Length: 1 << 31},
			},
			expectedErr: memutils.ErrInvalidPageGeometry,
		},
		"UnalignedMiddleBlock": {
			blocks: []tiler.BlockSpec{
				{Format: tiler.FormatPage, Length: 100},
				{Format: tiler.FormatPage, Length: tiler.PageSize},
			},
			expectedErr: memutils.ErrUnalignedPacking,
		},
		"VirtualPtrSet": {
			blocks:      []tiler.BlockSpec{{Format: tiler.FormatPage, Length: tiler.PageSize, VirtualPtr: 0x1000}},
			expectedErr: memutils.ErrReusedBlockSpec,
		},
		"SystemPtrSet": {
			blocks:      []tiler.BlockSpec{{Format: tiler.Format8Bit, Width: 1, Height: 1, SystemPtr: tiler.Mem8Bit}},
			expectedErr: memutils.ErrReusedBlockSpec,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			err := validateBlocks(testCase.blocks)
			if testCase.expectedErr == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, testCase.expectedErr), "expected %v, got %v", testCase.expectedErr, err)
		})
	}
}

func TestValidateUserBlocks(t *testing.T) {
	testCases := map[string]struct {
		blocks      []tiler.BlockSpec
		expectedErr error
	}{
		"Aligned": {
			blocks: []tiler.BlockSpec{{Format: tiler.FormatPage, Length: 2 * tiler.PageSize, VirtualPtr: 0x10000}},
		},
		"TwoBlocks": {
			blocks: []tiler.BlockSpec{
				{Format: tiler.FormatPage, Length: tiler.PageSize, VirtualPtr: 0x10000},
				{Format: tiler.FormatPage, Length: tiler.PageSize, VirtualPtr: 0x20000},
			},
			expectedErr: memutils.ErrInvalidBlockCount,
		},
		"TwoDimensional": {
			blocks:      []tiler.BlockSpec{{Format: tiler.Format8Bit, Width: 64, Height: 64, VirtualPtr: 0x10000}},
			expectedErr: memutils.ErrInvalidFormat,
		},
		"NilPointer": {
			blocks:      []tiler.BlockSpec{{Format: tiler.FormatPage, Length: tiler.PageSize}},
			expectedErr: memutils.ErrUnalignedUserBuffer,
		},
		"UnalignedPointer": {
			blocks:      []tiler.BlockSpec{{Format: tiler.FormatPage, Length: tiler.PageSize, VirtualPtr: 0x10010}},
			expectedErr: memutils.ErrUnalignedUserBuffer,
		},
		"UnalignedLength": {
			blocks:      []tiler.BlockSpec{{Format: tiler.FormatPage, Length: tiler.PageSize + 1, VirtualPtr: 0x10000}},
			expectedErr: memutils.ErrUnalignedUserBuffer,
		},
		"SystemPtrSet": {
			blocks: []tiler.BlockSpec{
				{Format: tiler.FormatPage, Length: tiler.PageSize, VirtualPtr: 0x10000, SystemPtr: tiler.MemPaged},
			},
			expectedErr: memutils.ErrReusedBlockSpec,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			err := validateUserBlocks(testCase.blocks)
			if testCase.expectedErr == nil {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, testCase.expectedErr), "expected %v, got %v", testCase.expectedErr, err)
		})
	}
}
