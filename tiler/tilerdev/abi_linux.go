package tilerdev

import (
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/tilerkit/memmgr/tiler"
	"golang.org/x/sys/unix"
)

// blockInfo mirrors struct tiler_block_info. Every unsigned long field is a uintptr so the layout
// matches the kernel on both 32- and 64-bit targets.
type blockInfo struct {
	format int32
	// dim holds either the page-mode length or a packed 16-bit width/height pair
	dim    uintptr
	stride uintptr
	ptr    uintptr
	ssptr  uintptr
}

// bufInfo mirrors struct tiler_buf_info
type bufInfo struct {
	numBlocks int32
	blocks    [tiler.MaxBlocks]blockInfo
	offset    int32
}

const (
	iocWrite     = 1
	iocRead      = 2
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocMagic = 'z'
)

// iowr builds an _IOWR('z', nr, unsigned long) request number
func iowr(nr uintptr) uintptr {
	size := unsafe.Sizeof(uintptr(0))
	return (iocRead|iocWrite)<<iocDirShift | size<<iocSizeShift | iocMagic<<iocTypeShift | nr<<iocNRShift
}

var (
	ioctlOpen       = iowr(100)
	ioctlAlloc      = iowr(101)
	ioctlFree       = iowr(102)
	ioctlClose      = iowr(103)
	ioctlVirtToPhys = iowr(104)
	ioctlMapUser    = iowr(105)
	ioctlQueryBuf   = iowr(106)
	ioctlRegister   = iowr(109)
	ioctlUnregister = iowr(110)
	ioctlQueryBlock = iowr(111)
)

var ioctlNames = map[uintptr]string{
	ioctlOpen:       "TILIOC_OPEN",
	ioctlAlloc:      "TILIOC_GBUF",
	ioctlFree:       "TILIOC_FBUF",
	ioctlClose:      "TILIOC_CLOSE",
	ioctlVirtToPhys: "TILIOC_GSSP",
	ioctlMapUser:    "TILIOC_MBUF",
	ioctlQueryBuf:   "TILIOC_QBUF",
	ioctlRegister:   "TILIOC_RBUF",
	ioctlUnregister: "TILIOC_URBUF",
	ioctlQueryBlock: "TILIOC_QUERY_BLK",
}

func ioctl(fd int, request uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), request, uintptr(arg))
	if errno != 0 {
		return errors.Wrapf(errno, "%s", ioctlNames[request])
	}
	return nil
}

// checkDim fails for 2D dimensions that do not fit the driver's 16-bit area fields
func checkDim(block tiler.BlockSpec) error {
	if block.Format.Is2D() && (block.Width > math.MaxUint16 || block.Height > math.MaxUint16) {
		return errors.Newf("%dx%d does not fit the driver's block area", block.Width, block.Height)
	}
	return nil
}

func packDim(block tiler.BlockSpec) uintptr {
	if block.Format == tiler.FormatPage {
		return uintptr(block.Length)
	}
	// struct area is two u16 fields, width first, on a little-endian target
	return uintptr(uint16(block.Width)) | uintptr(uint16(block.Height))<<16
}

func toBlockInfo(block tiler.BlockSpec) blockInfo {
	return blockInfo{
		format: int32(block.Format),
		dim:    packDim(block),
		stride: uintptr(block.Stride),
		ptr:    block.VirtualPtr,
		ssptr:  uintptr(block.SystemPtr),
	}
}

func fromBlockInfo(info blockInfo) tiler.BlockSpec {
	block := tiler.BlockSpec{
		Format:     tiler.PixelFormat(info.format),
		Stride:     int(info.stride),
		VirtualPtr: info.ptr,
		SystemPtr:  tiler.SSPtr(info.ssptr),
	}

	if block.Format == tiler.FormatPage {
		block.Length = int(info.dim)
	} else {
		block.Width = int(uint16(info.dim))
		block.Height = int(uint16(info.dim >> 16))
	}
	return block
}

func toBufInfo(blocks []tiler.BlockSpec) (bufInfo, error) {
	var info bufInfo
	if len(blocks) == 0 || len(blocks) > tiler.MaxBlocks {
		return info, errors.Newf("cannot describe a buffer of %d blocks", len(blocks))
	}

	info.numBlocks = int32(len(blocks))
	for i := range blocks {
		info.blocks[i] = toBlockInfo(blocks[i])
	}
	return info, nil
}

func fromBufInfo(info bufInfo) ([]tiler.BlockSpec, error) {
	if info.numBlocks <= 0 || info.numBlocks > tiler.MaxBlocks {
		return nil, errors.Newf("driver reported a buffer of %d blocks", info.numBlocks)
	}

	blocks := make([]tiler.BlockSpec, info.numBlocks)
	for i := range blocks {
		blocks[i] = fromBlockInfo(info.blocks[i])
	}
	return blocks, nil
}
