package memmgr

import (
	"github.com/cockroachdb/errors"
	"github.com/tilerkit/memmgr/internal/blockdev"
	"github.com/tilerkit/memmgr/memutils"
	"github.com/tilerkit/memmgr/tiler"
	"golang.org/x/exp/slog"
)

// session is the reference-counted connection to the driver. The device is open exactly while
// refCount is positive.
type session struct {
	logger *slog.Logger
	driver tiler.Driver

	device   *blockdev.Adapter
	refCount int
}

func (s *session) acquire() error {
	s.refCount++
	if s.refCount > 1 {
		return nil
	}

	device, err := blockdev.Open(s.logger, s.driver)
	if err != nil {
		s.refCount = 0
		return errors.Mark(errors.Wrap(err, "opening the driver"), memutils.ErrSessionError)
	}

	s.device = device
	s.logger.Debug("Session::Open")
	return nil
}

func (s *session) release() error {
	if s.refCount == 0 {
		return errors.WithStack(memutils.ErrSessionNotActive)
	}

	s.refCount--
	if s.refCount > 0 {
		return nil
	}

	device := s.device
	s.device = nil

	if device.LiveBlocks() > 0 || device.LiveBuffers() > 0 || device.LiveRegions() > 0 {
		s.logger.Error("Session::Close with driver objects still live",
			slog.Int("LiveBlocks", device.LiveBlocks()),
			slog.Int("LiveBuffers", device.LiveBuffers()),
			slog.Int("LiveRegions", device.LiveRegions()),
		)
	}

	err := device.Close()
	if err != nil {
		return errors.Mark(err, memutils.ErrSessionError)
	}

	s.logger.Debug("Session::Close")
	return nil
}

func (s *session) active() bool {
	return s.refCount > 0
}

func (s *session) Validate() error {
	if s.refCount < 0 {
		return errors.Newf("session reference count is negative: %d", s.refCount)
	}
	if s.active() != (s.device != nil) {
		return errors.Newf("session has reference count %d but device open is %t", s.refCount, s.device != nil)
	}
	return nil
}
