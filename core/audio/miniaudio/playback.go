package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-realtime/core/audio"
)

// Playback is a callback driven speaker. Write queues pcm for the audio
// thread and blocks until it has been played, was interrupted, or the device
// closed.
type Playback struct {
	audioContext *malgo.AllocatedContext
	encodingInfo audio.EncodingInfo

	device *malgo.Device

	leftoverAudio []byte
	// generation changes on every Pause so blocked writers return.
	generation uint64
	closed     bool

	mu      sync.Mutex
	audioMu sync.Mutex
	drained *sync.Cond
}

func newPlayback(audioContext *malgo.AllocatedContext, info audio.EncodingInfo) *Playback {
	p := &Playback{audioContext: audioContext, encodingInfo: info}
	p.drained = sync.NewCond(&p.audioMu)
	return p
}

func (p *Playback) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device != nil {
		return nil
	}

	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels
	sampleRate := uint32(p.encodingInfo.SampleRate)

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = sampleRate
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = sampleRate / 50 // ~20ms of audio
	config.Periods = 4

	device, err := malgo.InitDevice(
		p.audioContext.Context,
		config,
		malgo.DeviceCallbacks{Data: p.processAudio(bytesPerFrame)},
	)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	p.audioMu.Lock()
	p.closed = false
	p.leftoverAudio = nil
	p.audioMu.Unlock()

	p.device = device
	return nil
}

func (p *Playback) Write(pcm []byte) error {
	p.audioMu.Lock()
	defer p.audioMu.Unlock()
	if p.closed {
		return fmt.Errorf("device closed")
	}

	generation := p.generation
	p.leftoverAudio = append(p.leftoverAudio, pcm...)
	for len(p.leftoverAudio) > 0 && generation == p.generation && !p.closed {
		p.drained.Wait()
	}
	return nil
}

// Pause drops buffered audio. The device keeps running and plays silence.
func (p *Playback) Pause() error {
	p.audioMu.Lock()
	defer p.audioMu.Unlock()
	p.leftoverAudio = nil
	p.generation++
	p.drained.Broadcast()
	return nil
}

func (p *Playback) Resume() error { return nil }

func (p *Playback) Close() error {
	p.audioMu.Lock()
	p.closed = true
	p.leftoverAudio = nil
	p.drained.Broadcast()
	p.audioMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		return nil
	}

	err := p.device.Stop()
	p.device.Uninit()
	p.device = nil
	if err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	return nil
}

func (p *Playback) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		p.audioMu.Lock()
		defer p.audioMu.Unlock()
		if len(p.leftoverAudio) == 0 {
			return
		}

		n := copy(pOutput[:min(need, len(pOutput))], p.leftoverAudio)
		p.leftoverAudio = p.leftoverAudio[n:]
		if len(p.leftoverAudio) == 0 {
			p.leftoverAudio = nil
			p.drained.Broadcast()
		}
	}
}
