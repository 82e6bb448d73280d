//go:build !linux

package tilerdev

import (
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/tilerkit/memmgr/tiler"
	"golang.org/x/exp/slog"
)

// Driver reports that the TILER driver is unavailable on this platform
type Driver struct {
	logger *slog.Logger
	path   string
}

var _ tiler.Driver = &Driver{}

func New(logger *slog.Logger, path string) *Driver {
	if path == "" {
		path = DefaultPath
	}
	return &Driver{logger: logger, path: path}
}

func (d *Driver) Open() (tiler.Device, error) {
	return nil, errors.Newf("%s: the TILER driver is not available on %s", d.path, runtime.GOOS)
}
