package capture

import (
	"errors"
	"sync"
)

// ErrBusy is returned by Run when another loop still holds the camera for this state.
var ErrBusy = errors.New("camera is still held by a previous capture")

var errNotRunning = errors.New("capture not started")

// State is the Running/Stopped flag of one capture session. The zero value is Stopped.
//
// A Running period lasts from Start until the loop that served it has released the camera,
// so a Stop followed by Start can not overlap two loops on one device.
type State struct {
	mu        sync.RWMutex
	requested bool
	held      bool
}

// Start moves Stopped to Running. It reports false while a capture is running or still
// releasing the camera.
func (s *State) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.requested || s.held {
		return false
	}
	s.requested = true
	return true
}

// Stop asks the running loop to finish after the frame in flight. It reports false when the
// session was not running or a stop is already pending.
func (s *State) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.requested {
		return false
	}
	s.requested = false
	return true
}

// Running reports whether the session is capturing or has not yet released the camera.
func (s *State) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requested || s.held
}

func (s *State) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held {
		return ErrBusy
	}
	if !s.requested {
		return errNotRunning
	}
	s.held = true
	return nil
}

func (s *State) continuing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requested
}

func (s *State) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requested = false
	s.held = false
}
