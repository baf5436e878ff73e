package playback

import (
	"fmt"
	"time"
)

const (
	swapDrainTimeout = 2 * time.Second
	swapPollInterval = 20 * time.Millisecond
	// swapVerifyDuration is how much silence is written to verify a new device.
	swapVerifyDuration = 10 * time.Millisecond
)

// SwapDevice replaces the output device while the sink keeps running.
//
// The swap drains the queue (bounded by a timeout, leftovers are flushed),
// opens next and verifies it with a short burst of silence. If any step
// fails next is closed and the previous device stays in place.
func (s *Sink) SwapDevice(next Device) error {
	candidate, err := newDevice(next)
	if err != nil {
		return err
	}

	s.awaitDrained(swapDrainTimeout)
	if s.Pending() > 0 {
		logger.Warn("output queue not drained before device swap, flushing", "pending", s.Pending())
		s.ClearAndStop()
	}

	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	if s.State() == StateStopped {
		s.device.Store(candidate)
		return nil
	}

	if err := candidate.Open(); err != nil {
		return fmt.Errorf("failed to open replacement output device: %w", err)
	}
	if err := candidate.Write(s.silence(swapVerifyDuration)); err != nil {
		_ = candidate.Close()
		return fmt.Errorf("replacement output device failed verification: %w", err)
	}

	previous := s.device.Swap(candidate)
	if err := previous.Close(); err != nil {
		logger.Warn("failed to close previous output device", "error", err)
	}

	logger.Info("output device swapped")
	return nil
}

func (s *Sink) awaitDrained(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for s.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(swapPollInterval)
	}
}

func (s *Sink) silence(duration time.Duration) []byte {
	frames := int(duration * time.Duration(s.encodingInfo.SampleRate) / time.Second)
	return make([]byte, max(frames, 1)*max(s.encodingInfo.BytesPerFrame(), 1))
}
