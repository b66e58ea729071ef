package host

import (
	"go.uber.org/zap"

	"github.com/wippyai/lasr/process"
)

// Session is the per-cycle attachment state shared by the capabilities.
type Session struct {
	proc    process.Process
	name    string
	maps    []process.Region
	base    uint64
	cached  bool
	ttl     int
	ttlLeft int
}

func newSession() *Session {
	return &Session{ttl: 1, ttlLeft: 1}
}

// Attached reports whether a live process is held.
func (s *Session) Attached() bool {
	return s.proc != nil && s.proc.IsOpen()
}

// attach replaces the held process, closing any previous one.
func (s *Session) attach(p process.Process, name string, base uint64) {
	if s.proc != nil && s.proc != p {
		s.proc.Close()
	}
	s.proc = p
	s.name = name
	s.base = base
	s.invalidate()
	s.ttlLeft = s.ttl
}

// setCacheTTL sets how many ticks a region snapshot lives. Values below one
// mean every tick.
func (s *Session) setCacheTTL(n int) {
	s.ttl = max(n, 1)
	s.ttlLeft = s.ttl
}

// regions returns the cached region snapshot, taking a new one when the
// cache is empty.
func (s *Session) regions() ([]process.Region, error) {
	if s.cached {
		return s.maps, nil
	}
	regions, err := s.proc.Regions()
	if err != nil {
		return nil, err
	}
	s.maps = regions
	s.cached = true
	return regions, nil
}

// endTick ages the region cache by one tick.
func (s *Session) endTick() {
	s.ttlLeft--
	if s.ttlLeft <= 0 {
		s.invalidate()
		s.ttlLeft = s.ttl
	}
}

func (s *Session) invalidate() {
	s.maps = nil
	s.cached = false
}

func (s *Session) close() {
	if s.proc == nil {
		return
	}
	if err := s.proc.Close(); err != nil {
		Logger().Debug("close process", zap.String("name", s.name), zap.Error(err))
	}
	s.proc = nil
	s.invalidate()
}
