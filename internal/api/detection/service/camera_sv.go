package detectionService

import (
	"context"

	"FaceLens/internal/api/detection"
	"FaceLens/pkg/capture"
)

func (s *detectionService) StartCamera(sessionID string) bool {
	return s.states.State(sessionID).Start()
}

func (s *detectionService) StopCamera(sessionID string) bool {
	state, ok := s.states.Peek(sessionID)
	if !ok {
		return false
	}
	return state.Stop()
}

func (s *detectionService) CameraRunning(sessionID string) bool {
	state, ok := s.states.Peek(sessionID)
	return ok && state.Running()
}

// RunCamera blocks for one Running period of the session's capture state. The state stays
// registered for as long as the loop holds the camera.
func (s *detectionService) RunCamera(ctx context.Context, sessionID string, sink func(*detection.FrameResponse) error) error {
	state, unpin := s.states.Pin(sessionID)
	defer unpin()

	return s.loop.Run(ctx, state, func(frame capture.Frame) error {
		resp, err := s.EncodeFrame(frame)
		if err != nil {
			return err
		}
		return sink(resp)
	})
}
