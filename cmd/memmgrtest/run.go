package main

import (
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"
	"github.com/tilerkit/memmgr/memmgr"
	"golang.org/x/exp/slog"
)

var (
	runSeed  int64
	runStats bool
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run [test numbers...]",
		Short: "Run the test matrix",
		Long: `The run command runs every test in the matrix, or only the numbered tests given as
arguments. Use the list command to see the numbers.

Example:
  memmgrtest run --sim
  memmgrtest run 5 12 --device /dev/tiler`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd.OutOrStdout(), args)
		},
	}
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "Seed for the fill patterns, 0 picks one from the clock")
	runCmd.Flags().BoolVar(&runStats, "stats", false, "Print the allocator state after the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the tests in the matrix",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for i, test := range buildMatrix(defaultResolutions) {
				fmt.Fprintf(cmd.OutOrStdout(), "%3d - %s\n", i+1, test.name)
			}
		},
	}

	rootCmd.AddCommand(runCmd, listCmd)
}

type testResult struct {
	id      int
	name    string
	skipped bool
	err     error
}

// selectTests returns the 1-based test numbers named in args, or every test
func selectTests(args []string, count int) ([]int, error) {
	if len(args) == 0 {
		ids := make([]int, count)
		for i := range ids {
			ids[i] = i + 1
		}
		return ids, nil
	}

	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "test number %q", arg)
		}
		if id < 1 || id > count {
			return nil, errors.Newf("test number %d is out of range 1..%d", id, count)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runMatrix(env *testEnv, tests []testCase, ids []int) []testResult {
	results := make([]testResult, 0, len(ids))
	for _, id := range ids {
		test := tests[id-1]
		result := testResult{id: id, name: test.name}

		if test.simOnly && env.sim == nil {
			result.skipped = true
		} else {
			result.err = test.run(env)
		}

		consistencyErr := env.allocator.CheckConsistency()
		if consistencyErr != nil {
			result.err = errors.CombineErrors(result.err, consistencyErr)
		}

		results = append(results, result)
	}
	return results
}

func runTests(out io.Writer, args []string) error {
	logger := newLogger()
	driver, sim := newDriver(logger)

	allocator, err := memmgr.New(logger, driver, memmgr.CreateOptions{})
	if err != nil {
		return err
	}

	seed := runSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	tests := buildMatrix(defaultResolutions)
	ids, err := selectTests(args, len(tests))
	if err != nil {
		return err
	}

	env := &testEnv{
		logger:    logger,
		allocator: allocator,
		random:    rand.New(rand.NewSource(seed)),
		sim:       sim,
	}
	logger.Info("Running tests", slog.Int("Count", len(ids)), slog.Int64("Seed", seed))

	results := runMatrix(env, tests, ids)

	failed := 0
	for _, result := range results {
		if result.err != nil {
			failed++
		}
	}

	if jsonOut {
		writeResultsJSON(out, results, allocator)
	} else {
		writeResultsText(out, results)
		if runStats {
			fmt.Fprintln(out, allocator.BuildStatsString(true))
		}
	}

	if failed > 0 {
		return errors.Newf("%d of %d tests failed", failed, len(results))
	}
	return nil
}

func writeResultsText(out io.Writer, results []testResult) {
	passed, skipped := 0, 0
	for _, result := range results {
		fmt.Fprintf(out, "TEST %d - %s ", result.id, result.name)
		switch {
		case result.skipped:
			skipped++
			fmt.Fprintln(out, "==> SKIPPED")
		case result.err != nil:
			fmt.Fprintf(out, "==> FAIL(%v)\n", result.err)
		default:
			passed++
			fmt.Fprintln(out, "==> OK")
		}
	}
	fmt.Fprintf(out, "%d tests passed, %d failed, %d skipped\n", passed, len(results)-passed-skipped, skipped)
}

func writeResultsJSON(out io.Writer, results []testResult, allocator *memmgr.Allocator) {
	writer := jwriter.NewWriter()
	root := writer.Object()

	passed, failed, skipped := 0, 0, 0
	tests := root.Name("Tests").Array()
	for _, result := range results {
		o := tests.Object()
		o.Name("ID").Int(result.id)
		o.Name("Name").String(result.name)
		switch {
		case result.skipped:
			skipped++
			o.Name("Result").String("Skipped")
		case result.err != nil:
			failed++
			o.Name("Result").String("Fail")
			o.Name("Error").String(result.err.Error())
		default:
			passed++
			o.Name("Result").String("OK")
		}
		o.End()
	}
	tests.End()

	root.Name("Passed").Int(passed)
	root.Name("Failed").Int(failed)
	root.Name("Skipped").Int(skipped)
	if runStats {
		root.Name("AllocatorState").String(allocator.BuildStatsString(false))
	}
	root.End()

	_, _ = out.Write(writer.Bytes())
	fmt.Fprintln(out)
}
