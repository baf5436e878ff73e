package miniaudio

import (
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-realtime/core/audio"
)

// Client owns the malgo context shared by every device it creates.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	encodingInfo audio.EncodingInfo
}

func NewClient(info audio.EncodingInfo) (*Client, error) {
	if info.IsZero() {
		info = audio.GetDefaultEncodingInfo()
	}

	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("malgo InitContext failed: %w", err)
	}

	return &Client{audioContext: audioCtx, encodingInfo: info}, nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo { return c.encodingInfo }

// Playback returns a speaker device. It is not opened until the sink opens it.
func (c *Client) Playback() *Playback {
	return newPlayback(c.audioContext, c.encodingInfo)
}

// Capture returns a microphone that delivers chunkFrames frames per period.
func (c *Client) Capture(chunkFrames int) *Capture {
	if chunkFrames <= 0 {
		chunkFrames = audio.DefaultChunkFrames
	}
	return newCapture(c.audioContext, c.encodingInfo, chunkFrames)
}

func (c *Client) SoundPlayer() *SoundPlayer {
	return &SoundPlayer{audioContext: c.audioContext}
}

func (c *Client) Close() {
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}
