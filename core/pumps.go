package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-realtime/core/realtime"
)

// pumpMicrophone forwards microphone audio through the event loop until ctx
// is done or the connection drops. Reads are paced by the mic interval so an
// input without audio does not spin.
func (o *Orchestrator) pumpMicrophone(ctx context.Context, s *session, mic *audioInput, onInputAudio func([]byte)) {
	if !mic.isConfigured() {
		logger.Info("no audio input configured, not streaming microphone")
	}

	ticker := time.NewTicker(o.micInterval)
	defer ticker.Stop()

	for {
		if !s.channel.IsConnected() {
			logger.Debug("microphone pump stopping, channel disconnected")
			return
		}

		if chunk := mic.read(); len(chunk) > 0 && o.listening.Load() {
			if onInputAudio != nil {
				onInputAudio(chunk)
			}
			if err := s.loop.Post(ctx, func() { s.channel.SendBinary(chunk, realtime.EncodingBase64) }); err != nil {
				logger.Debug("microphone pump stopping", "error", err)
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pumpEvents reads frames and hands each one to the event loop in arrival
// order.
func pumpEvents(ctx context.Context, s *session, router *realtime.Router) {
	s.channel.ReceiveLoop(ctx, func(data []byte) {
		if err := s.loop.Post(ctx, func() { router.HandleMessage(ctx, data) }); err != nil {
			logger.Debug("dropping inbound frame", "error", err)
		}
	}, func() bool { return ctx.Err() == nil })
}
