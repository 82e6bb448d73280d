package memmgr

import (
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/tilerkit/memmgr/memutils"
	"github.com/tilerkit/memmgr/tiler/tilersim"
	"golang.org/x/exp/slog"
)

func readySession() (*tilersim.Simulator, *session) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	sim := tilersim.New(logger)
	return sim, &session{logger: logger, driver: sim}
}

func TestSessionOpensOnce(t *testing.T) {
	sim, s := readySession()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.acquire())
	}
	require.Equal(t, 3, s.refCount)
	require.Equal(t, 1, sim.Calls(tilersim.OpOpen))
	require.Equal(t, 1, sim.OpenDevices())
	require.NoError(t, s.Validate())

	require.NoError(t, s.release())
	require.NoError(t, s.release())
	require.Equal(t, 1, sim.OpenDevices())

	require.NoError(t, s.release())
	require.Equal(t, 0, sim.OpenDevices())
	require.Equal(t, 1, sim.Calls(tilersim.OpClose))
	require.False(t, s.active())
	require.NoError(t, s.Validate())
}

func TestSessionReleaseWithoutAcquire(t *testing.T) {
	sim, s := readySession()

	err := s.release()
	require.True(t, errors.Is(err, memutils.ErrSessionNotActive))
	require.Equal(t, 0, s.refCount)
	require.Equal(t, 0, sim.Calls(tilersim.OpClose))
}

func TestSessionOpenFailure(t *testing.T) {
	sim, s := readySession()
	sim.InjectFault(tilersim.OpOpen, 0, nil)

	err := s.acquire()
	require.True(t, errors.Is(err, memutils.ErrSessionError))
	require.True(t, errors.Is(err, tilersim.ErrInjected))
	require.Equal(t, 0, s.refCount)
	require.Nil(t, s.device)

	require.NoError(t, s.acquire())
	require.Equal(t, 1, s.refCount)
	require.NoError(t, s.release())
}

func TestSessionCloseFailure(t *testing.T) {
	sim, s := readySession()
	sim.InjectFault(tilersim.OpClose, 0, nil)

	require.NoError(t, s.acquire())

	err := s.release()
	require.True(t, errors.Is(err, memutils.ErrSessionError))
	require.Equal(t, 0, s.refCount)
	require.Nil(t, s.device)
	require.Equal(t, 0, sim.OpenDevices())
}

func TestSessionValidate(t *testing.T) {
	_, s := readySession()

	s.refCount = 1
	require.Error(t, s.Validate())

	s.refCount = -1
	require.Error(t, s.Validate())
}
