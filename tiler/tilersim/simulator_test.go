package tilersim_test

import (
	"io"
	"runtime"
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/tilerkit/memmgr/memutils"
	"github.com/tilerkit/memmgr/tiler"
	"github.com/tilerkit/memmgr/tiler/tilersim"
	"golang.org/x/exp/slog"
)

func openSim(t *testing.T) (*tilersim.Simulator, tiler.Device) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	sim := tilersim.New(logger)

	device, err := sim.Open()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = device.Close()
	})

	return sim, device
}

func TestPageAllocFree(t *testing.T) {
	sim, device := openSim(t)

	ssptr, err := device.Alloc(tiler.BlockSpec{Format: tiler.FormatPage, Length: 5000})
	require.NoError(t, err)
	require.Equal(t, tiler.MemPaged, ssptr)
	require.Equal(t, tiler.FormatPage, tiler.Classify(ssptr))

	footprint, err := device.QueryBlock(ssptr)
	require.NoError(t, err)
	require.Equal(t, 2*tiler.PageSize, footprint.Length)
	require.Equal(t, ssptr, footprint.SystemPtr)

	next, err := device.Alloc(tiler.BlockSpec{Format: tiler.FormatPage, Length: tiler.PageSize})
	require.NoError(t, err)
	require.Equal(t, tiler.MemPaged+2*tiler.PageSize, next)
	require.Equal(t, 2, sim.LiveBlocks())

	require.NoError(t, device.Free(ssptr))
	require.NoError(t, device.Free(next))
	require.Error(t, device.Free(ssptr))
	require.Equal(t, 0, sim.LiveBlocks())
	require.Equal(t, tiler.ContainerLength, sim.FreeBytes(tiler.FormatPage))
}

func Test2DFootprint(t *testing.T) {
	_, device := openSim(t)

	first, err := device.Alloc(tiler.BlockSpec{Format: tiler.Format8Bit, Width: 176, Height: 144})
	require.NoError(t, err)
	require.Equal(t, tiler.Mem8Bit, first)

	footprint, err := device.QueryBlock(first)
	require.NoError(t, err)
	require.Equal(t, 192, footprint.Width)
	require.Equal(t, 192, footprint.Height)
	require.Equal(t, tiler.Stride8Bit, footprint.Stride)

	second, err := device.Alloc(tiler.BlockSpec{Format: tiler.Format8Bit, Width: 64, Height: 64})
	require.NoError(t, err)
	require.Equal(t, tiler.Mem8Bit+192*tiler.Stride8Bit, second)

	wide, err := device.Alloc(tiler.BlockSpec{Format: tiler.Format32Bit, Width: 100, Height: 10})
	require.NoError(t, err)
	require.Equal(t, tiler.Format32Bit, tiler.Classify(wide))

	footprint, err = device.QueryBlock(wide)
	require.NoError(t, err)
	require.Equal(t, 128, footprint.Width)
	require.Equal(t, 64, footprint.Height)
	require.Equal(t, tiler.Stride32Bit, footprint.Stride)

	_, err = device.Alloc(tiler.BlockSpec{Format: tiler.Format16Bit, Width: 0, Height: 10})
	require.Error(t, err)
	_, err = device.Alloc(tiler.BlockSpec{Format: tiler.FormatNone, Length: 10})
	require.Error(t, err)
}

func TestRegisterMapAndTranslate(t *testing.T) {
	sim, device := openSim(t)

	blocks := []tiler.BlockSpec{
		{Format: tiler.FormatPage, Length: 2 * tiler.PageSize},
		{Format: tiler.Format8Bit, Width: 64, Height: 64},
	}
	for i := range blocks {
		ssptr, err := device.Alloc(blocks[i])
		require.NoError(t, err)
		blocks[i].SystemPtr = ssptr
	}

	id, err := device.RegisterBuffer(blocks)
	require.NoError(t, err)

	registered, err := device.QueryBuffer(id)
	require.NoError(t, err)
	require.Equal(t, blocks, registered)

	_, size := tiler.Layout(blocks)
	require.Equal(t, 2*tiler.PageSize+64*tiler.PageSize, size)

	region, err := device.MapBuffer(id, size)
	require.NoError(t, err)
	require.Len(t, region, size)
	require.Equal(t, 1, sim.LiveRegions())

	base := tiler.RegionBase(region)
	require.Equal(t, blocks[0].SystemPtr, device.VirtToPhys(base))
	require.Equal(t, blocks[0].SystemPtr+100, device.VirtToPhys(base+100))
	require.Equal(t, blocks[1].SystemPtr, device.VirtToPhys(base+2*tiler.PageSize))
	require.Equal(t, blocks[1].SystemPtr+tiler.Stride8Bit+5, device.VirtToPhys(base+3*tiler.PageSize+5))

	var local int
	require.Equal(t, tiler.SSPtr(0), device.VirtToPhys(uintptr(unsafe.Pointer(&local))))
	require.Equal(t, tiler.SSPtr(0), device.VirtToPhys(0))

	region[0] = 0xaa
	region[size-1] = 0x55

	require.NoError(t, device.UnmapBuffer(region))
	require.Error(t, device.UnmapBuffer(region))
	require.Equal(t, tiler.SSPtr(0), device.VirtToPhys(base))

	require.NoError(t, device.UnregisterBuffer(id))
	_, err = device.QueryBuffer(id)
	require.Error(t, err)
	require.Equal(t, 2, sim.LiveBlocks())
}

func TestMapBufferRejectsOversize(t *testing.T) {
	_, device := openSim(t)

	block := tiler.BlockSpec{Format: tiler.FormatPage, Length: tiler.PageSize}
	ssptr, err := device.Alloc(block)
	require.NoError(t, err)
	block.SystemPtr = ssptr

	id, err := device.RegisterBuffer([]tiler.BlockSpec{block})
	require.NoError(t, err)

	_, err = device.MapBuffer(id, 2*tiler.PageSize)
	require.Error(t, err)
	_, err = device.MapBuffer(id+tiler.PageSize, tiler.PageSize)
	require.Error(t, err)
}

func TestMapUserMemory(t *testing.T) {
	_, device := openSim(t)

	backing := make([]byte, 3*tiler.PageSize)
	user := uintptr(memutils.AlignUp(int(uintptr(unsafe.Pointer(&backing[0]))), tiler.PageSize))

	ssptr, err := device.Map(tiler.BlockSpec{Format: tiler.FormatPage, Length: tiler.PageSize, VirtualPtr: user})
	require.NoError(t, err)
	require.Equal(t, tiler.FormatPage, tiler.Classify(ssptr))
	require.Equal(t, ssptr+10, device.VirtToPhys(user+10))

	require.Error(t, device.Free(ssptr))
	require.NoError(t, device.UnMap(ssptr))
	require.Equal(t, tiler.SSPtr(0), device.VirtToPhys(user+10))

	_, err = device.Map(tiler.BlockSpec{Format: tiler.FormatPage, Length: tiler.PageSize, VirtualPtr: user + 1})
	require.Error(t, err)

	runtime.KeepAlive(backing)
}

func TestMapUserMemoryBuffer(t *testing.T) {
	sim, device := openSim(t)

	backing := make([]byte, 3*tiler.PageSize)
	offset := memutils.AlignUp(int(uintptr(unsafe.Pointer(&backing[0]))), tiler.PageSize) - int(uintptr(unsafe.Pointer(&backing[0])))
	userBytes := backing[offset : offset+2*tiler.PageSize]
	user := uintptr(unsafe.Pointer(&userBytes[0]))

	block := tiler.BlockSpec{Format: tiler.FormatPage, Length: 2 * tiler.PageSize, VirtualPtr: user}
	ssptr, err := device.Map(block)
	require.NoError(t, err)
	block.SystemPtr = ssptr

	id, err := device.RegisterBuffer([]tiler.BlockSpec{block})
	require.NoError(t, err)

	region, err := device.MapBuffer(id, 2*tiler.PageSize)
	require.NoError(t, err)
	require.Equal(t, user, tiler.RegionBase(region))

	region[5] = 0x5a
	require.Equal(t, byte(0x5a), userBytes[5])
	userBytes[tiler.PageSize] = 0xa5
	require.Equal(t, byte(0xa5), region[tiler.PageSize])

	// a second mapping of the same pages cannot share the base, so it gets its own memory
	second, err := device.MapBuffer(id, tiler.PageSize)
	require.NoError(t, err)
	require.NotEqual(t, user, tiler.RegionBase(second))
	require.NoError(t, device.UnmapBuffer(second))

	require.NoError(t, device.UnmapBuffer(region))
	require.Equal(t, 0, sim.LiveRegions())
	require.Equal(t, byte(0x5a), userBytes[5])

	require.NoError(t, device.UnregisterBuffer(id))
	require.NoError(t, device.UnMap(ssptr))

	runtime.KeepAlive(backing)
}

func TestContainerExhaustion(t *testing.T) {
	sim, device := openSim(t)

	whole, err := device.Alloc(tiler.BlockSpec{Format: tiler.FormatPage, Length: tiler.ContainerLength})
	require.NoError(t, err)
	require.Equal(t, 0, sim.FreeBytes(tiler.FormatPage))

	_, err = device.Alloc(tiler.BlockSpec{Format: tiler.FormatPage, Length: tiler.PageSize})
	require.Error(t, err)

	require.NoError(t, device.Free(whole))
	require.Equal(t, tiler.ContainerLength, sim.FreeBytes(tiler.FormatPage))
}

func TestInjectFault(t *testing.T) {
	sim, device := openSim(t)

	sim.InjectFault(tilersim.OpAlloc, 1, nil)

	_, err := device.Alloc(tiler.BlockSpec{Format: tiler.FormatPage, Length: tiler.PageSize})
	require.NoError(t, err)

	_, err = device.Alloc(tiler.BlockSpec{Format: tiler.FormatPage, Length: tiler.PageSize})
	require.True(t, errors.Is(err, tilersim.ErrInjected))

	_, err = device.Alloc(tiler.BlockSpec{Format: tiler.FormatPage, Length: tiler.PageSize})
	require.NoError(t, err)

	require.Equal(t, 3, sim.Calls(tilersim.OpAlloc))
	require.Equal(t, 2, sim.LiveBlocks())

	custom := errors.New("bus error")
	sim.InjectFault(tilersim.OpOpen, 0, custom)
	_, err = sim.Open()
	require.True(t, errors.Is(err, custom))
	require.Equal(t, 1, sim.OpenDevices())

	sim.InjectFault(tilersim.OpFree, 0, nil)
	sim.ClearFaults()
	require.NoError(t, device.Free(tiler.MemPaged))
}

func TestClosedDevice(t *testing.T) {
	sim, device := openSim(t)
	require.Equal(t, 1, sim.OpenDevices())

	require.NoError(t, device.Close())
	require.Equal(t, 0, sim.OpenDevices())

	_, err := device.Alloc(tiler.BlockSpec{Format: tiler.FormatPage, Length: tiler.PageSize})
	require.Error(t, err)
	require.Error(t, device.Close())
	require.Equal(t, 0, sim.OpenDevices())
}

func TestRemoteTranslation(t *testing.T) {
	remote := tilersim.NewRemote()

	foreign := remote.Expose(tiler.Mem16Bit + 0x8000)
	other := remote.Expose(tiler.MemPaged)
	require.NotEqual(t, foreign, other)

	ssptr, err := remote.ToSystem(foreign)
	require.NoError(t, err)
	require.Equal(t, tiler.Mem16Bit+0x8000, ssptr)

	ssptr, err = remote.ToSystem(other + 0x10)
	require.NoError(t, err)
	require.Equal(t, tiler.MemPaged+0x10, ssptr)

	remote.Revoke(foreign)
	_, err = remote.ToSystem(foreign)
	require.Error(t, err)

	_, err = remote.ToSystem(0x1234)
	require.Error(t, err)
}
