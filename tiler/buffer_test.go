package tiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func nv12(width, height int) []BlockSpec {
	return []BlockSpec{
		{Format: Format8Bit, Width: width, Height: height},
		{Format: Format16Bit, Width: width / 2, Height: height / 2},
	}
}

func TestLayout(t *testing.T) {
	offsets, size := Layout(nv12(176, 144))
	require.Equal(t, []int{0, 144 * PageSize}, offsets)
	require.Equal(t, (144+72)*PageSize, size)

	offsets, size = Layout([]BlockSpec{
		{Format: FormatPage, Length: 2 * PageSize},
		{Format: FormatPage, Length: 100},
	})
	require.Equal(t, []int{0, 2 * PageSize}, offsets)
	require.Equal(t, 2*PageSize+100, size)
}

func TestNewBuffer(t *testing.T) {
	blocks := nv12(176, 144)
	region := make([]byte, 220*PageSize)

	buffer, err := NewBuffer(region, blocks)
	require.NoError(t, err)

	base := RegionBase(region)
	require.Equal(t, base, buffer.Base())
	require.Equal(t, base, blocks[0].VirtualPtr)
	require.Equal(t, base+144*PageSize, blocks[1].VirtualPtr)

	require.Equal(t, 2, buffer.BlockCount())
	require.Equal(t, (144+72)*PageSize, buffer.Size())
	require.Len(t, buffer.Bytes(), buffer.Size())
	require.Len(t, buffer.Region(), 220*PageSize)
	require.Equal(t, 144*PageSize, buffer.Offset(1))
	require.Len(t, buffer.BlockBytes(1), 72*PageSize)
	require.Equal(t, blocks[1], buffer.Block(1))

	require.True(t, buffer.Contains(base))
	require.True(t, buffer.Contains(base+uintptr(buffer.Size())-1))
	require.False(t, buffer.Contains(base+uintptr(buffer.Size())))
	require.False(t, buffer.Contains(base-1))

	// the buffer keeps its own copy of the descriptors
	copied := buffer.Blocks()
	copied[0].Width = 1
	blocks[0].Width = 2
	require.Equal(t, 176, buffer.Block(0).Width)
}

func TestNewBufferRejects(t *testing.T) {
	_, err := NewBuffer(make([]byte, PageSize), nil)
	require.Error(t, err)

	_, err = NewBuffer(make([]byte, PageSize), nv12(64, 64))
	require.Error(t, err)
}

func TestRegionBase(t *testing.T) {
	require.Equal(t, uintptr(0), RegionBase(nil))
	require.NotZero(t, RegionBase(make([]byte, 1)))
}

func TestBufferString(t *testing.T) {
	region := make([]byte, 2*PageSize)
	buffer, err := NewBuffer(region, []BlockSpec{
		{Format: FormatPage, Length: PageSize},
		{Format: FormatPage, Length: PageSize},
	})
	require.NoError(t, err)

	base := RegionBase(region)
	expected := "buf={n=2," +
		BlockSpec{Format: FormatPage, Length: PageSize, VirtualPtr: base}.String() +
		BlockSpec{Format: FormatPage, Length: PageSize, VirtualPtr: base + PageSize}.String() + "}"
	require.Equal(t, expected, buffer.String())
}
