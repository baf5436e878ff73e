package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-realtime/core/audio"
)

// captureQueueSize bounds how many periods are held when nobody reads.
const captureQueueSize = 32

// Capture is a callback driven microphone. ReadChunk never blocks, it returns
// nil when no period has been captured since the last read.
type Capture struct {
	audioContext *malgo.AllocatedContext
	encodingInfo audio.EncodingInfo
	chunkFrames  int

	device *malgo.Device
	chunks chan []byte

	mu sync.Mutex
}

func newCapture(audioContext *malgo.AllocatedContext, info audio.EncodingInfo, chunkFrames int) *Capture {
	return &Capture{
		audioContext: audioContext,
		encodingInfo: info,
		chunkFrames:  chunkFrames,
		chunks:       make(chan []byte, captureQueueSize),
	}
}

func (c *Capture) EncodingInfo() audio.EncodingInfo { return c.encodingInfo }

func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil && c.device.IsStarted() {
		return nil
	}

	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(c.encodingInfo.SampleRate)
	config.Capture.Format = format
	config.Capture.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = uint32(c.chunkFrames)
	config.Periods = 3

	device, err := malgo.InitDevice(c.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			c.push(append([]byte(nil), pInput[:n]...))
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	c.device = device
	return nil
}

// push runs on the audio thread and drops the oldest period when full.
func (c *Capture) push(chunk []byte) {
	for {
		select {
		case c.chunks <- chunk:
			return
		default:
		}

		select {
		case <-c.chunks:
		default:
		}
	}
}

func (c *Capture) ReadChunk() []byte {
	select {
	case chunk := <-c.chunks:
		return chunk
	default:
		return nil
	}
}

func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil
	}

	err := c.device.Stop()
	c.device.Uninit()
	c.device = nil

	for {
		select {
		case <-c.chunks:
			continue
		default:
		}
		break
	}

	if err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}
