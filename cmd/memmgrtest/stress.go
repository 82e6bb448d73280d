package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/tilerkit/memmgr/memmgr"
	"github.com/tilerkit/memmgr/tiler"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

var (
	stressWorkers    int
	stressIterations int
)

func init() {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Allocate, fill, check and free buffers from many goroutines at once",
		Long: `The stress command shares one allocator between several workers. Each worker
allocates buffers of random shapes, fills them, checks them and frees them. The first
failure stops every worker.

Example:
  memmgrtest stress --sim --workers 16 --iterations 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&stressWorkers, "workers", 4, "Number of concurrent workers")
	cmd.Flags().IntVar(&stressIterations, "iterations", 100, "Buffers each worker allocates")
	rootCmd.AddCommand(cmd)
}

// randomBlocks picks a 1D, 2D or NV12 buffer of modest size
func randomBlocks(random *rand.Rand) []tiler.BlockSpec {
	width := 16 * (1 + random.Intn(40))
	height := 16 * (1 + random.Intn(30))

	switch random.Intn(3) {
	case 0:
		return pageBlocks(width * height * 2)
	case 1:
		format := tiler.PixelFormat(int(tiler.Format8Bit) + random.Intn(3))
		return planeBlocks(width, height, format)
	}
	return nv12Blocks(width, height)
}

func stressWorker(ctx context.Context, allocator *memmgr.Allocator, seed int64, iterations int, completed *int64) error {
	random := rand.New(rand.NewSource(seed))
	env := &testEnv{allocator: allocator, random: random}

	for i := 0; i < iterations; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		start := uint16(random.Intn(1 << 16))
		buffer, err := allocAndFill(env, randomBlocks(random), start)
		if err != nil {
			return errors.Wrapf(err, "iteration %d", i)
		}

		err = checkAndFree(env, buffer, start)
		if err != nil {
			return errors.Wrapf(err, "iteration %d", i)
		}
		atomic.AddInt64(completed, 1)
	}
	return nil
}

func runStress(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if stressWorkers < 1 || stressIterations < 1 {
		return errors.Newf("workers and iterations must be positive, got %d and %d", stressWorkers, stressIterations)
	}

	logger := newLogger()
	driver, _ := newDriver(logger)

	allocator, err := memmgr.New(logger, driver, memmgr.CreateOptions{})
	if err != nil {
		return err
	}

	var completed int64
	began := time.Now()
	group, groupCtx := errgroup.WithContext(ctx)
	for worker := 0; worker < stressWorkers; worker++ {
		seed := began.UnixNano() + int64(worker)
		group.Go(func() error {
			return stressWorker(groupCtx, allocator, seed, stressIterations, &completed)
		})
	}

	err = group.Wait()
	consistencyErr := allocator.CheckConsistency()
	if consistencyErr != nil {
		err = errors.CombineErrors(err, consistencyErr)
	}

	logger.Info("Stress run finished",
		slog.Int64("Buffers", atomic.LoadInt64(&completed)),
		slog.Duration("Elapsed", time.Since(began)),
	)
	fmt.Fprintf(out, "%d buffers allocated, checked and freed by %d workers in %s\n",
		atomic.LoadInt64(&completed), stressWorkers, time.Since(began).Round(time.Millisecond))

	return err
}
