package main

import (
	"fmt"
	"math/rand"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/tilerkit/memmgr/memmgr"
	"github.com/tilerkit/memmgr/memutils"
	"github.com/tilerkit/memmgr/remap"
	"github.com/tilerkit/memmgr/tiler"
	"github.com/tilerkit/memmgr/tiler/tilersim"
	"golang.org/x/exp/slog"
)

// maxAllocs bounds the max-allocation tests so they finish on a roomy container
const maxAllocs = 10

type resolution struct {
	width, height int
}

var defaultResolutions = []resolution{
	{64, 64},
	{176, 144},
	{640, 480},
	{848, 480},
	{1280, 720},
	{1920, 1080},
}

type testEnv struct {
	logger    *slog.Logger
	allocator *memmgr.Allocator
	random    *rand.Rand
	// sim is set when the tests run against the simulator
	sim *tilersim.Simulator
}

type testCase struct {
	name string
	run  func(env *testEnv) error
	// simOnly tests need the simulated remote processor
	simOnly bool
}

func pageBlocks(length int) []tiler.BlockSpec {
	return []tiler.BlockSpec{{Format: tiler.FormatPage, Length: length}}
}

func planeBlocks(width, height int, format tiler.PixelFormat) []tiler.BlockSpec {
	return []tiler.BlockSpec{{Format: format, Width: width, Height: height}}
}

func nv12Blocks(width, height int) []tiler.BlockSpec {
	return []tiler.BlockSpec{
		{Format: tiler.Format8Bit, Width: width, Height: height},
		{Format: tiler.Format16Bit, Width: width / 2, Height: height / 2},
	}
}

func describe(blocks []tiler.BlockSpec) string {
	if len(blocks) == 2 {
		return fmt.Sprintf("%dx%d NV12", blocks[0].Width, blocks[0].Height)
	}
	if blocks[0].Format == tiler.FormatPage {
		return fmt.Sprintf("%db 1D", blocks[0].Length)
	}
	return fmt.Sprintf("%dx%dx%db 2D", blocks[0].Width, blocks[0].Height, tiler.BytesPerPixel(blocks[0].Format))
}

// checkQueries verifies what the allocator reports about each block of a fresh buffer
func checkQueries(allocator *memmgr.Allocator, buffer *tiler.Buffer) error {
	for i := 0; i < buffer.BlockCount(); i++ {
		block := buffer.Block(i)
		ptr := block.VirtualPtr

		if !allocator.IsMapped(ptr) {
			return errors.Newf("block %d at 0x%x is not mapped", i, ptr)
		}
		if allocator.Is1DBlock(ptr) != (block.Format == tiler.FormatPage) {
			return errors.Newf("block %d at 0x%x has the wrong 1D classification", i, ptr)
		}
		if allocator.Is2DBlock(ptr) != block.Format.Is2D() {
			return errors.Newf("block %d at 0x%x has the wrong 2D classification", i, ptr)
		}

		ssptr := allocator.VirtToPhys(ptr)
		if ssptr != block.SystemPtr {
			return errors.Newf("block %d at 0x%x translates to 0x%x, not 0x%x", i, ptr, uintptr(ssptr), uintptr(block.SystemPtr))
		}

		expectedStride := block.Stride
		if block.Format.Is2D() {
			expectedStride = tiler.FixedStride(ssptr)
		}
		if stride := allocator.GetStride(ptr); stride != expectedStride {
			return errors.Newf("block %d at 0x%x reports stride %d, not %d", i, ptr, stride, expectedStride)
		}
	}

	if len(buffer.Blocks()) == 2 {
		luma, chroma := buffer.Block(0), buffer.Block(1)
		if chroma.VirtualPtr != luma.VirtualPtr+uintptr(luma.Stride*luma.Height) {
			return errors.Newf("chroma plane at 0x%x does not follow the luma plane at 0x%x", chroma.VirtualPtr, luma.VirtualPtr)
		}
	}
	return nil
}

func allocAndFill(env *testEnv, blocks []tiler.BlockSpec, start uint16) (*tiler.Buffer, error) {
	buffer, err := env.allocator.Alloc(blocks)
	if err != nil {
		return nil, err
	}

	err = checkQueries(env.allocator, buffer)
	if err != nil {
		return nil, errors.CombineErrors(err, env.allocator.Free(buffer.Base()))
	}

	fillBuffer(buffer, start)
	return buffer, nil
}

func checkAndFree(env *testEnv, buffer *tiler.Buffer, start uint16) error {
	checkErr := checkBuffer(buffer, start)
	freeErr := env.allocator.Free(buffer.Base())
	if checkErr != nil {
		return errors.CombineErrors(checkErr, freeErr)
	}
	return freeErr
}

func allocTest(blocks []tiler.BlockSpec) testCase {
	return testCase{
		name: "Allocate & Free " + describe(blocks),
		run: func(env *testEnv) error {
			start := uint16(env.random.Intn(1 << 16))
			buffer, err := allocAndFill(env, cloneBlocks(blocks), start)
			if err != nil {
				return err
			}
			return checkAndFree(env, buffer, start)
		},
	}
}

func maxAllocTest(blocks []tiler.BlockSpec) testCase {
	return testCase{
		name: "Allocate & Free max # of " + describe(blocks),
		run: func(env *testEnv) error {
			type allocation struct {
				buffer *tiler.Buffer
				start  uint16
			}

			var live []allocation
			for len(live) < maxAllocs {
				start := uint16(env.random.Intn(1 << 16))
				buffer, err := allocAndFill(env, cloneBlocks(blocks), start)
				if err != nil {
					env.logger.Info("Allocation stopped", slog.Int("Allocated", len(live)), slog.Any("error", err))
					break
				}
				live = append(live, allocation{buffer: buffer, start: start})
			}

			if len(live) == 0 {
				return errors.New("not even one buffer could be allocated")
			}

			var err error
			for _, a := range live {
				err = errors.CombineErrors(err, checkAndFree(env, a.buffer, a.start))
			}
			return err
		},
	}
}

func cloneBlocks(blocks []tiler.BlockSpec) []tiler.BlockSpec {
	clone := make([]tiler.BlockSpec, len(blocks))
	copy(clone, blocks)
	return clone
}

func expectFailure(err error, kind error, what string) error {
	if err == nil {
		return errors.Newf("%s succeeded", what)
	}
	if !errors.Is(err, kind) {
		return errors.Wrapf(err, "%s failed with the wrong error", what)
	}
	return nil
}

func negativeAllocTest(env *testEnv) error {
	var failures error

	for count := 1; count <= 2; count++ {
		blocks := make([]tiler.BlockSpec, count)
		for i := range blocks {
			blocks[i] = tiler.BlockSpec{Format: tiler.Format8Bit, Width: 16, Height: 16}
		}
		block := &blocks[count-1]

		attempt := func(kind error, what string) {
			_, err := env.allocator.Alloc(blocks)
			failures = errors.CombineErrors(failures, expectFailure(err, kind, fmt.Sprintf("%s in block %d of %d", what, count, count)))
		}

		*block = tiler.BlockSpec{Format: tiler.FormatNone, Length: tiler.PageSize}
		attempt(memutils.ErrInvalidFormat, "format below the valid range")
		block.Format = tiler.FormatPage + 1
		attempt(memutils.ErrInvalidFormat, "format above the valid range")

		block.Format = tiler.FormatPage
		block.Stride = tiler.PageSize - 1
		attempt(memutils.ErrInvalidPageGeometry, "1D stride that does not divide the length")

		block.Length, block.Stride = 0, 0
		attempt(memutils.ErrInvalidPageGeometry, "zero 1D length")

		*block = tiler.BlockSpec{Format: tiler.Format8Bit, Width: tiler.PageSize - 1, Height: 16, Stride: tiler.PageSize - 1}
		attempt(memutils.ErrInvalid2DGeometry, "2D stride other than the default")

		block.Width, block.Stride = 0, 0
		attempt(memutils.ErrInvalid2DGeometry, "zero 2D width")

		block.Width, block.Height = 16, 0
		attempt(memutils.ErrInvalid2DGeometry, "zero 2D height")
	}

	_, err := env.allocator.Alloc(nil)
	failures = errors.CombineErrors(failures, expectFailure(err, memutils.ErrInvalidBlockCount, "allocating no blocks"))

	return failures
}

func negativeFreeTest(env *testEnv) error {
	buffer, err := env.allocator.Alloc(pageBlocks(tiler.PageSize))
	if err != nil {
		return err
	}
	err = env.allocator.Free(buffer.Base())
	if err != nil {
		return err
	}

	var failures error
	for _, ptr := range []uintptr{buffer.Base(), 0, 0x12345678} {
		failures = errors.CombineErrors(failures,
			expectFailure(env.allocator.Free(ptr), memutils.ErrBufferNotFound, fmt.Sprintf("freeing 0x%x", ptr)))
	}
	return failures
}

func negativeCheckTest(env *testEnv) error {
	heap := make([]byte, 32)
	heapPtr := uintptr(unsafe.Pointer(&heap[0]))

	var failures error
	for _, ptr := range []uintptr{0, 0x12345678, heapPtr} {
		if env.allocator.Is1DBlock(ptr) || env.allocator.Is2DBlock(ptr) || env.allocator.IsMapped(ptr) {
			failures = errors.CombineErrors(failures, errors.Newf("0x%x classifies as a TILER block", ptr))
		}
		if stride := env.allocator.GetStride(ptr); stride != 0 {
			failures = errors.CombineErrors(failures, errors.Newf("0x%x reports stride %d", ptr, stride))
		}
		if ssptr := env.allocator.VirtToPhys(ptr); ssptr != 0 {
			failures = errors.CombineErrors(failures, errors.Newf("0x%x translates to 0x%x", ptr, uintptr(ssptr)))
		}
		if stride := tiler.FixedStride(env.allocator.VirtToPhys(ptr)); stride != 0 {
			failures = errors.CombineErrors(failures, errors.Newf("0x%x has container stride %d", ptr, stride))
		}
	}

	heap[0] = 1
	return failures
}

// remapTest exposes an NV12 buffer on the simulated remote processor and maps it back in
func remapTest(width, height int) testCase {
	return testCase{
		name:    fmt.Sprintf("Remap %dx%d NV12 from the remote processor", width, height),
		simOnly: true,
		run: func(env *testEnv) error {
			remote := tilersim.NewRemote()
			remapper, err := remap.New(env.logger, env.sim, remote, remap.CreateOptions{})
			if err != nil {
				return err
			}

			owned, err := env.allocator.Alloc(nv12Blocks(width, height))
			if err != nil {
				return err
			}
			defer func() {
				freeErr := env.allocator.Free(owned.Base())
				if freeErr != nil {
					env.logger.Error("Free after remap failed", slog.Any("error", freeErr))
				}
			}()

			addresses := make([]uintptr, owned.BlockCount())
			lengths := make([]int, owned.BlockCount())
			for i := range addresses {
				block := owned.Block(i)
				addresses[i] = remote.Expose(block.SystemPtr)
				lengths[i] = tiler.BlockSize(block)
			}

			remapped, err := remapper.RemapIn(addresses, lengths)
			if err != nil {
				return err
			}

			var failures error
			for i := 0; i < remapped.BlockCount(); i++ {
				if remapped.Block(i).SystemPtr != owned.Block(i).SystemPtr {
					failures = errors.CombineErrors(failures, errors.Newf("remapped block %d has a different system address", i))
				}
				if env.allocator.VirtToPhys(remapped.Block(i).VirtualPtr) != owned.Block(i).SystemPtr {
					failures = errors.CombineErrors(failures, errors.Newf("remapped block %d translates to the wrong block", i))
				}
			}

			start := uint16(env.random.Intn(1 << 16))
			fillBuffer(remapped, start)
			failures = errors.CombineErrors(failures, checkBuffer(remapped, start))

			return errors.CombineErrors(failures, remapper.RemapOut(remapped.Base()))
		},
	}
}

// buildMatrix lists the tests in the order they are numbered
func buildMatrix(resolutions []resolution) []testCase {
	var tests []testCase

	tests = append(tests, allocTest(pageBlocks(tiler.PageSize)))
	for _, res := range resolutions {
		if res.width != 64 || res.height != 64 {
			tests = append(tests, allocTest(pageBlocks(res.width*res.height*2)))
		}
		for _, format := range []tiler.PixelFormat{tiler.Format8Bit, tiler.Format16Bit, tiler.Format32Bit} {
			tests = append(tests, allocTest(planeBlocks(res.width, res.height, format)))
		}
		tests = append(tests, allocTest(nv12Blocks(res.width, res.height)))
	}

	tests = append(tests,
		testCase{name: "Negative Alloc tests", run: negativeAllocTest},
		testCase{name: "Negative Free tests", run: negativeFreeTest},
		testCase{name: "Negative Is... tests", run: negativeCheckTest},
	)

	tests = append(tests, maxAllocTest(pageBlocks(tiler.PageSize)))
	for _, res := range resolutions {
		if res.width != 64 || res.height != 64 {
			tests = append(tests, maxAllocTest(pageBlocks(res.width*res.height*2)))
		}
		for _, format := range []tiler.PixelFormat{tiler.Format8Bit, tiler.Format16Bit, tiler.Format32Bit} {
			tests = append(tests, maxAllocTest(planeBlocks(res.width, res.height, format)))
		}
		tests = append(tests, maxAllocTest(nv12Blocks(res.width, res.height)))
	}

	for _, res := range resolutions {
		tests = append(tests, remapTest(res.width, res.height))
	}

	return tests
}
