package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tilerkit/memmgr/tiler"
	"github.com/tilerkit/memmgr/tiler/tilerdev"
	"github.com/tilerkit/memmgr/tiler/tilersim"
	"golang.org/x/exp/slog"
)

var (
	// Global flags
	devicePath string
	useSim     bool
	verbose    bool
	jsonOut    bool
)

var rootCmd = &cobra.Command{
	Use:   "memmgrtest",
	Short: "Exercise the TILER memory manager",
	Long: `memmgrtest runs the memory manager test matrix against /dev/tiler or against the
in-process TILER simulator. Every buffer is filled with a 16-bit pattern across all of
its rows and checked before it is freed.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&devicePath, "device", tilerdev.DefaultPath, "TILER device node")
	rootCmd.PersistentFlags().BoolVar(&useSim, "sim", false, "Use the in-process TILER simulator instead of the device")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every driver call")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output results in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newDriver returns the driver selected by the global flags. The simulator is returned separately so
// tests that need a remote processor can use it.
func newDriver(logger *slog.Logger) (tiler.Driver, *tilersim.Simulator) {
	if useSim {
		sim := tilersim.New(logger)
		return sim, sim
	}
	return tilerdev.New(logger, devicePath), nil
}
