package miniaudio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/hajimehoshi/go-mp3"
	"github.com/koscakluka/ema-realtime/core/audio"
)

// SoundPlayer plays mp3 cues on their own playback device. Each cue gets a
// fresh device that is torn down once the file has been played out.
type SoundPlayer struct {
	audioContext *malgo.AllocatedContext
}

// PlayFile decodes path up front and returns once playback has started.
func (s *SoundPlayer) PlayFile(path string, volume float64) error {
	pcm, sampleRate, err := decodeMP3(path)
	if err != nil {
		return err
	}
	pcm = audio.ScaleLinear16(pcm, volume)

	// go-mp3 always decodes to 16 bit stereo
	const channels = 2
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(sampleRate)
	config.Playback.Format = format
	config.Playback.Channels = channels
	config.Alsa.NoMMap = 1

	reader := bytes.NewReader(pcm)
	done := make(chan struct{})
	var once sync.Once
	device, err := malgo.InitDevice(s.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			need := int(frameCount) * bytesPerFrame
			if _, err := io.ReadFull(reader, pOutput[:min(need, len(pOutput))]); err != nil {
				once.Do(func() { close(done) })
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sound device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start sound device: %w", err)
	}

	go func() {
		<-done
		// the device cannot be stopped from inside its own callback
		_ = device.Stop()
		device.Uninit()
	}()
	return nil
}

func decodeMP3(path string) ([]byte, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open sound: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return pcm, decoder.SampleRate(), nil
}
