package tiler

// PixelFormat identifies the container a block lives in. The numeric values match the driver ABI.
type PixelFormat int32

const (
	// FormatInvalid is the classification of the zero system-space address
	FormatInvalid PixelFormat = -1
	// FormatNone is the classification of a system-space address outside every TILER container
	FormatNone PixelFormat = 0
	// Format8Bit is the 2D container with one byte per pixel
	Format8Bit PixelFormat = 1
	// Format16Bit is the 2D container with two bytes per pixel
	Format16Bit PixelFormat = 2
	// Format32Bit is the 2D container with four bytes per pixel
	Format32Bit PixelFormat = 3
	// FormatPage is the 1D (page mode) container
	FormatPage PixelFormat = 4

	formatMin = Format8Bit
	formatMax = FormatPage
)

var pixelFormatMapping = make(map[PixelFormat]string)

func (f PixelFormat) String() string {
	str, ok := pixelFormatMapping[f]
	if !ok {
		return "FormatUnknown"
	}
	return str
}

func init() {
	pixelFormatMapping[FormatInvalid] = "FormatInvalid"
	pixelFormatMapping[FormatNone] = "FormatNone"
	pixelFormatMapping[Format8Bit] = "Format8Bit"
	pixelFormatMapping[Format16Bit] = "Format16Bit"
	pixelFormatMapping[Format32Bit] = "Format32Bit"
	pixelFormatMapping[FormatPage] = "FormatPage"
}

// Valid reports whether blocks can be allocated in this format
func (f PixelFormat) Valid() bool {
	return f >= formatMin && f <= formatMax
}

// Is2D reports whether this is one of the 2D container formats
func (f PixelFormat) Is2D() bool {
	return f == Format8Bit || f == Format16Bit || f == Format32Bit
}
