package tiler

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/tilerkit/memmgr/memutils"
)

func TestDefaultStride(t *testing.T) {
	require.Equal(t, 0, DefaultStride(0))
	require.Equal(t, PageSize, DefaultStride(1))
	require.Equal(t, PageSize, DefaultStride(4096))
	require.Equal(t, 2*PageSize, DefaultStride(4097))
	require.Equal(t, 2*PageSize, DefaultStride(1920*4))
}

func TestBytesPerPixel(t *testing.T) {
	require.Equal(t, 1, BytesPerPixel(Format8Bit))
	require.Equal(t, 2, BytesPerPixel(Format16Bit))
	require.Equal(t, 4, BytesPerPixel(Format32Bit))
	require.Equal(t, 0, BytesPerPixel(FormatPage))
	require.Equal(t, 0, BytesPerPixel(FormatInvalid))
}

func TestBlockSize(t *testing.T) {
	testCases := map[string]struct {
		block    BlockSpec
		expected int
	}{
		"Page":        {block: BlockSpec{Format: FormatPage, Length: 5000}, expected: 5000},
		"NV12Y":       {block: BlockSpec{Format: Format8Bit, Width: 176, Height: 144}, expected: 144 * PageSize},
		"NV12UV":      {block: BlockSpec{Format: Format16Bit, Width: 88, Height: 72}, expected: 72 * PageSize},
		"Wide32Bit":   {block: BlockSpec{Format: Format32Bit, Width: 1920, Height: 1080}, expected: 1080 * 2 * PageSize},
		"ExactlyPage": {block: BlockSpec{Format: Format16Bit, Width: 2048, Height: 3}, expected: 3 * PageSize},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.expected, BlockSize(tc.block))

			size, err := CheckedBlockSize(tc.block)
			require.NoError(t, err)
			require.Equal(t, tc.expected, size)
		})
	}
}

func TestCheckedBlockSizeOverflow(t *testing.T) {
	_, err := CheckedBlockSize(BlockSpec{Format: Format32Bit, Width: 1 << 30, Height: 1})
	require.True(t, errors.Is(err, memutils.OverflowError))

	_, err = CheckedBlockSize(BlockSpec{Format: Format8Bit, Width: 100, Height: 1 << 20})
	require.True(t, errors.Is(err, memutils.OverflowError))

	size, err := CheckedBlockSize(BlockSpec{Format: Format8Bit, Width: 100, Height: 1<<20 - 1})
	require.NoError(t, err)
	require.Equal(t, (1<<20-1)*PageSize, size)

	_, err = CheckedBlockSize(BlockSpec{Format: FormatPage, Length: -1})
	require.True(t, errors.Is(err, memutils.OverflowError))
}

func TestBlockSpecString(t *testing.T) {
	plane := BlockSpec{Format: Format8Bit, Width: 176, Height: 144, Stride: 4096, VirtualPtr: 0x1000, SystemPtr: Mem8Bit}
	require.Equal(t, "[p=0x1000(0x60000000),176*144*8,s=4096]", plane.String())

	page := BlockSpec{Format: FormatPage, Length: 0x2000, VirtualPtr: 0x2000, SystemPtr: MemPaged}
	require.Equal(t, "[p=0x2000(0x78000000),l=0x2000,s=0]", page.String())

	bad := BlockSpec{Format: PixelFormat(7)}
	require.Equal(t, "*[p=0x0(0x0),l=0x0,s=0,fmt=FormatUnknown]", bad.String())

	plane.ClearOutputs()
	require.Zero(t, plane.VirtualPtr)
	require.Zero(t, plane.SystemPtr)
	require.Equal(t, 176, plane.Width)
}
