package tilersim

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/tilerkit/memmgr/tiler"
)

const (
	remoteWindowBase = 0x40000000
	remoteWindowSize = 0x01000000
)

// Remote plays the part of another processor's MMU. Blocks are exposed at foreign addresses, which
// ToSystem resolves back to system space until they are revoked.
type Remote struct {
	mutex   sync.Mutex
	next    uintptr
	windows *swiss.Map[uintptr, tiler.SSPtr]
}

var _ tiler.Translator = &Remote{}

func NewRemote() *Remote {
	return &Remote{
		next:    remoteWindowBase,
		windows: swiss.NewMap[uintptr, tiler.SSPtr](16),
	}
}

// Expose maps a system-space address into the remote address space and returns the foreign address
func (r *Remote) Expose(ssptr tiler.SSPtr) uintptr {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	foreign := r.next
	r.next += remoteWindowSize
	r.windows.Put(foreign, ssptr)
	return foreign
}

// Revoke removes a foreign address from the remote page tables
func (r *Remote) Revoke(foreign uintptr) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.windows.Delete(foreign)
}

func (r *Remote) ToSystem(foreign uintptr) (tiler.SSPtr, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var ssptr tiler.SSPtr
	var found bool
	r.windows.Iter(func(base uintptr, target tiler.SSPtr) bool {
		if foreign >= base && foreign < base+remoteWindowSize {
			ssptr = target + tiler.SSPtr(foreign-base)
			found = true
		}
		return found
	})

	if !found {
		return 0, errors.Newf("0x%x is not mapped on the remote processor", foreign)
	}
	return ssptr, nil
}
