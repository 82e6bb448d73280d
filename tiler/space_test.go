package tiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	testCases := map[string]struct {
		ssptr    SSPtr
		expected PixelFormat
	}{
		"Zero":          {ssptr: 0, expected: FormatInvalid},
		"BelowTiler":    {ssptr: 0x5fffffff, expected: FormatNone},
		"8BitStart":     {ssptr: Mem8Bit, expected: Format8Bit},
		"8BitEnd":       {ssptr: Mem16Bit - 1, expected: Format8Bit},
		"16BitStart":    {ssptr: Mem16Bit, expected: Format16Bit},
		"32BitInterior": {ssptr: Mem32Bit + 0x12345, expected: Format32Bit},
		"PageStart":     {ssptr: MemPaged, expected: FormatPage},
		"PageEnd":       {ssptr: MemEnd - 1, expected: FormatPage},
		"AboveTiler":    {ssptr: MemEnd, expected: FormatNone},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.expected, Classify(tc.ssptr))
		})
	}
}

func TestFixedStride(t *testing.T) {
	require.Equal(t, 0, FixedStride(0))
	require.Equal(t, 0, FixedStride(0x1000))
	require.Equal(t, Stride8Bit, FixedStride(Mem8Bit+0x4000))
	require.Equal(t, 16384, FixedStride(Mem8Bit))
	require.Equal(t, 32768, FixedStride(Mem16Bit))
	require.Equal(t, 32768, FixedStride(Mem32Bit))
	require.Equal(t, PageSize, FixedStride(MemPaged+PageSize))
	require.Equal(t, 0, FixedStride(MemEnd))
}

func TestContainerBase(t *testing.T) {
	require.Equal(t, Mem8Bit, ContainerBase(Format8Bit))
	require.Equal(t, Mem16Bit, ContainerBase(Format16Bit))
	require.Equal(t, Mem32Bit, ContainerBase(Format32Bit))
	require.Equal(t, MemPaged, ContainerBase(FormatPage))
	require.Equal(t, SSPtr(0), ContainerBase(FormatNone))

	for format := Format8Bit; format <= FormatPage; format++ {
		require.Equal(t, format, Classify(ContainerBase(format)))
	}
}

func TestPixelFormat(t *testing.T) {
	require.False(t, FormatInvalid.Valid())
	require.False(t, FormatNone.Valid())
	require.True(t, Format8Bit.Valid())
	require.True(t, FormatPage.Valid())
	require.False(t, PixelFormat(5).Valid())

	require.True(t, Format16Bit.Is2D())
	require.False(t, FormatPage.Is2D())

	require.Equal(t, "Format32Bit", Format32Bit.String())
	require.Equal(t, "FormatUnknown", PixelFormat(9).String())
}
