package tilerdev

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"github.com/tilerkit/memmgr/tiler"
)

func TestStructLayout(t *testing.T) {
	word := unsafe.Sizeof(uintptr(0))

	var block blockInfo
	require.Equal(t, 5*word, unsafe.Sizeof(block))
	require.Equal(t, word, unsafe.Offsetof(block.dim))
	require.Equal(t, 4*word, unsafe.Offsetof(block.ssptr))

	var buf bufInfo
	require.Equal(t, word, unsafe.Offsetof(buf.blocks))
	require.Equal(t, 81*word, unsafe.Offsetof(buf.offset))
	require.Equal(t, 82*word, unsafe.Sizeof(buf))
}

func TestRequestNumbers(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("request numbers below are for 64-bit targets")
	}

	require.Equal(t, uintptr(0xc0087a64), ioctlOpen)
	require.Equal(t, uintptr(0xc0087a65), ioctlAlloc)
	require.Equal(t, uintptr(0xc0087a6d), ioctlRegister)
	require.Equal(t, uintptr(0xc0087a6f), ioctlQueryBlock)
	require.Equal(t, "TILIOC_URBUF", ioctlNames[ioctlUnregister])
}

func TestBlockInfoConversion(t *testing.T) {
	area := tiler.BlockSpec{
		Format:    tiler.Format16Bit,
		Width:     1920,
		Height:    1080,
		Stride:    tiler.Stride16Bit,
		SystemPtr: tiler.Mem16Bit + 0x8000,
	}

	info := toBlockInfo(area)
	require.Equal(t, int32(2), info.format)
	require.Equal(t, uintptr(1920|1080<<16), info.dim)
	require.Equal(t, area, fromBlockInfo(info))

	page := tiler.BlockSpec{
		Format:     tiler.FormatPage,
		Length:     3 * tiler.PageSize,
		VirtualPtr: 0x10000,
	}
	require.Equal(t, page, fromBlockInfo(toBlockInfo(page)))
}

func TestBufInfoConversion(t *testing.T) {
	blocks := []tiler.BlockSpec{
		{Format: tiler.Format8Bit, Width: 640, Height: 480, SystemPtr: tiler.Mem8Bit},
		{Format: tiler.Format16Bit, Width: 320, Height: 240, SystemPtr: tiler.Mem16Bit},
	}

	info, err := toBufInfo(blocks)
	require.NoError(t, err)
	require.Equal(t, int32(2), info.numBlocks)

	decoded, err := fromBufInfo(info)
	require.NoError(t, err)
	require.Equal(t, blocks, decoded)

	_, err = toBufInfo(nil)
	require.Error(t, err)
	_, err = toBufInfo(make([]tiler.BlockSpec, tiler.MaxBlocks+1))
	require.Error(t, err)
	_, err = fromBufInfo(bufInfo{})
	require.Error(t, err)
}

func TestCheckDim(t *testing.T) {
	require.NoError(t, checkDim(tiler.BlockSpec{Format: tiler.Format8Bit, Width: 0xffff, Height: 0xffff}))
	require.Error(t, checkDim(tiler.BlockSpec{Format: tiler.Format8Bit, Width: 0x10000, Height: 1}))
	require.Error(t, checkDim(tiler.BlockSpec{Format: tiler.Format32Bit, Width: 1, Height: 0x10000}))
	require.NoError(t, checkDim(tiler.BlockSpec{Format: tiler.FormatPage, Length: 0x100000}))
}
