package tilerdev

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/tilerkit/memmgr/tiler"
	"golang.org/x/exp/slog"
	"golang.org/x/sys/unix"
)

// Driver opens the TILER device node. Each Open performs driver initialization for the process.
type Driver struct {
	logger *slog.Logger
	path   string
}

var _ tiler.Driver = &Driver{}

// New creates a Driver for the device node at path, or DefaultPath if path is empty
func New(logger *slog.Logger, path string) *Driver {
	if path == "" {
		path = DefaultPath
	}
	return &Driver{logger: logger, path: path}
}

func (d *Driver) Open() (tiler.Device, error) {
	d.logger.Debug("Driver::Open", slog.String("Path", d.path))

	fd, err := unix.Open(d.path, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", d.path)
	}

	var info blockInfo
	err = ioctl(fd, ioctlOpen, unsafe.Pointer(&info))
	if err != nil {
		return nil, closeAfterFailure(fd, err)
	}

	return &device{logger: d.logger, fd: fd}, nil
}

// closeAfterFailure closes a descriptor whose setup failed, keeping err primary
func closeAfterFailure(fd int, err error) error {
	closeErr := unix.Close(fd)
	if closeErr != nil {
		err = errors.CombineErrors(err, errors.Wrap(closeErr, "could not close the device node"))
	}
	return err
}

type device struct {
	logger *slog.Logger
	fd     int
}

var _ tiler.Device = &device{}

func (d *device) Close() error {
	var info blockInfo
	err := ioctl(d.fd, ioctlClose, unsafe.Pointer(&info))

	closeErr := unix.Close(d.fd)
	if closeErr != nil {
		err = errors.CombineErrors(err, errors.Wrap(closeErr, "could not close the device node"))
	}
	return err
}

func (d *device) Alloc(block tiler.BlockSpec) (tiler.SSPtr, error) {
	err := checkDim(block)
	if err != nil {
		return 0, err
	}

	info := toBlockInfo(block)
	info.ptr = 0
	info.ssptr = 0

	err = ioctl(d.fd, ioctlAlloc, unsafe.Pointer(&info))
	if err != nil {
		return 0, err
	}
	if info.ssptr == 0 {
		return 0, errors.Newf("driver returned no system address for %s", block)
	}
	return tiler.SSPtr(info.ssptr), nil
}

func (d *device) Free(ssptr tiler.SSPtr) error {
	info := blockInfo{ssptr: uintptr(ssptr)}
	return ioctl(d.fd, ioctlFree, unsafe.Pointer(&info))
}

// Map passes the user memory in ptr to TILIOC_MBUF, which associates it with page mode and
// returns the system address
func (d *device) Map(block tiler.BlockSpec) (tiler.SSPtr, error) {
	err := checkDim(block)
	if err != nil {
		return 0, err
	}

	info := toBlockInfo(block)
	info.ssptr = 0

	err = ioctl(d.fd, ioctlMapUser, unsafe.Pointer(&info))
	if err != nil {
		return 0, err
	}
	if info.ssptr == 0 {
		return 0, errors.Newf("driver returned no system address for %s", block)
	}
	return tiler.SSPtr(info.ssptr), nil
}

// UnMap releases a user-memory association. The driver releases mapped and allocated blocks through
// the same request; only the backing store differs.
func (d *device) UnMap(ssptr tiler.SSPtr) error {
	info := blockInfo{ssptr: uintptr(ssptr)}
	return ioctl(d.fd, ioctlFree, unsafe.Pointer(&info))
}

func (d *device) QueryBlock(ssptr tiler.SSPtr) (tiler.BlockSpec, error) {
	info := blockInfo{ssptr: uintptr(ssptr)}

	err := ioctl(d.fd, ioctlQueryBlock, unsafe.Pointer(&info))
	if err != nil {
		return tiler.BlockSpec{}, err
	}

	block := fromBlockInfo(info)
	if !block.Format.Valid() {
		return tiler.BlockSpec{}, errors.Newf("driver reported format %s for 0x%x", block.Format, uintptr(ssptr))
	}
	return block, nil
}

func (d *device) RegisterBuffer(blocks []tiler.BlockSpec) (tiler.BufferID, error) {
	info, err := toBufInfo(blocks)
	if err != nil {
		return 0, err
	}

	err = ioctl(d.fd, ioctlRegister, unsafe.Pointer(&info))
	if err != nil {
		return 0, err
	}
	if info.offset == 0 {
		return 0, errors.New("driver registered the buffer at offset 0")
	}
	return tiler.BufferID(info.offset), nil
}

func (d *device) UnregisterBuffer(id tiler.BufferID) error {
	info := bufInfo{offset: int32(id)}
	return ioctl(d.fd, ioctlUnregister, unsafe.Pointer(&info))
}

func (d *device) QueryBuffer(id tiler.BufferID) ([]tiler.BlockSpec, error) {
	info := bufInfo{offset: int32(id)}

	err := ioctl(d.fd, ioctlQueryBuf, unsafe.Pointer(&info))
	if err != nil {
		return nil, err
	}
	return fromBufInfo(info)
}

func (d *device) MapBuffer(id tiler.BufferID, size int) ([]byte, error) {
	data, err := unix.Mmap(d.fd, int64(id), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap of buffer 0x%x (%d bytes) failed", uint32(id), size)
	}
	return data, nil
}

func (d *device) UnmapBuffer(region []byte) error {
	err := unix.Munmap(region)
	if err != nil {
		return errors.Wrapf(err, "munmap of region at 0x%x failed", tiler.RegionBase(region))
	}
	return nil
}

func (d *device) VirtToPhys(ptr uintptr) tiler.SSPtr {
	if ptr == 0 {
		return 0
	}

	info := blockInfo{ptr: ptr}
	err := ioctl(d.fd, ioctlVirtToPhys, unsafe.Pointer(&info))
	if err != nil {
		d.logger.Debug("Device::VirtToPhys", slog.Any("error", err))
		return 0
	}
	return tiler.SSPtr(info.ssptr)
}
