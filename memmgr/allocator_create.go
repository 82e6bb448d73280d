package memmgr

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tilerkit/memmgr/internal/utils"
	"github.com/tilerkit/memmgr/tiler"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

var allocatorCreateFlagsMapping = make(map[CreateFlags]string)

func (f CreateFlags) Register(str string) {
	allocatorCreateFlagsMapping[f] = str
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for bit := CreateFlags(1); bit != 0 && bit <= f; bit <<= 1 {
		if f&bit == 0 {
			continue
		}
		name, ok := allocatorCreateFlagsMapping[bit]
		if !ok {
			name = "UnknownFlag"
		}
		names = append(names, name)
	}
	return strings.Join(names, "|")
}

const (
	// AllocatorCreateExternallySynchronized ensures that this allocator will not be synchronized
	// internally. The consumer must guarantee it is used from only one goroutine at a time or is
	// synchronized by some other mechanism.
	AllocatorCreateExternallySynchronized CreateFlags = 1 << iota
)

func init() {
	AllocatorCreateExternallySynchronized.Register("AllocatorCreateExternallySynchronized")
}

// CreateOptions contains optional settings when creating an allocator
type CreateOptions struct {
	// Flags indicates specific allocator behaviors to activate or deactivate
	Flags CreateFlags
}

// New creates a new Allocator
//
// driver - The block-storage driver. It is opened when the first buffer is created and closed when
// the last one is released.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, driver tiler.Driver, options CreateOptions) (*Allocator, error) {
	if driver == nil {
		return nil, errors.New("attempted to create an allocator with a nil driver")
	}

	useMutex := options.Flags&AllocatorCreateExternallySynchronized == 0

	allocator := &Allocator{
		logger:      logger,
		mutex:       utils.OptionalMutex{UseMutex: useMutex},
		createFlags: options.Flags,
		books: bookkeeping{
			session: session{
				logger: logger,
				driver: driver,
			},
			registry: newRegistry(),
		},
	}

	logger.Debug("Allocator::New", slog.String("Flags", options.Flags.String()))
	return allocator, nil
}
