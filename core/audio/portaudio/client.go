package portaudio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-realtime/core/audio"
)

// Speaker is a blocking output device. Write returns once the samples were
// handed to PortAudio, which paces the sink consumer at playback speed.
type Speaker struct {
	info       audio.EncodingInfo
	bufferSize int

	mu            sync.Mutex
	stream        *portaudio.Stream
	out           []int16
	leftoverAudio []byte
	// generation changes on Pause so an in-flight Write stops early.
	generation uint64
}

func NewSpeaker(info audio.EncodingInfo, bufferSize int) *Speaker {
	if info.IsZero() {
		info = audio.GetDefaultEncodingInfo()
	}
	if bufferSize <= 0 {
		bufferSize = audio.DefaultChunkFrames
	}
	return &Speaker{info: info, bufferSize: bufferSize}
}

func (s *Speaker) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	s.out = make([]int16, s.bufferSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(s.info.SampleRate), s.bufferSize, s.out)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open PortAudio output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start PortAudio output stream: %w", err)
	}

	s.stream = stream
	s.leftoverAudio = nil
	return nil
}

// Write plays pcm in buffer sized pieces. A trailing partial buffer is kept
// and played with the next write. The lock is released between buffers so
// Pause does not wait for the whole chunk.
func (s *Speaker) Write(pcm []byte) error {
	s.mu.Lock()
	if s.stream == nil {
		s.mu.Unlock()
		return fmt.Errorf("output stream not open")
	}
	generation := s.generation
	pending := append(s.leftoverAudio, pcm...)
	s.leftoverAudio = nil
	s.mu.Unlock()

	bufferBytes := s.bufferSize * 2
	for {
		s.mu.Lock()
		if s.stream == nil || generation != s.generation {
			s.mu.Unlock()
			return nil
		}
		if len(pending) < bufferBytes {
			s.leftoverAudio = append([]byte(nil), pending...)
			s.mu.Unlock()
			return nil
		}

		if err := binary.Read(bytes.NewReader(pending[:bufferBytes]), binary.LittleEndian, s.out); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to decode samples: %w", err)
		}
		err := s.stream.Write()
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("failed to write to PortAudio stream: %w", err)
		}
		pending = pending[bufferBytes:]
	}
}

// Pause drops whatever PortAudio still holds.
func (s *Speaker) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return fmt.Errorf("output stream not open")
	}

	s.leftoverAudio = nil
	s.generation++
	if err := s.stream.Abort(); err != nil {
		return fmt.Errorf("failed to abort PortAudio stream: %w", err)
	}
	return nil
}

func (s *Speaker) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return fmt.Errorf("output stream not open")
	}

	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("failed to restart PortAudio stream: %w", err)
	}
	return nil
}

func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}

	err := s.stream.Close()
	s.stream = nil
	s.leftoverAudio = nil
	portaudio.Terminate()
	if err != nil {
		return fmt.Errorf("failed to close PortAudio stream: %w", err)
	}
	return nil
}

// Microphone reads fixed size frames from the default input device.
type Microphone struct {
	info       audio.EncodingInfo
	bufferSize int

	mu     sync.Mutex
	stream *portaudio.Stream
	in     []int16
}

func NewMicrophone(info audio.EncodingInfo, bufferSize int) *Microphone {
	if info.IsZero() {
		info = audio.GetDefaultEncodingInfo()
	}
	if bufferSize <= 0 {
		bufferSize = audio.DefaultChunkFrames
	}
	return &Microphone{info: info, bufferSize: bufferSize}
}

func (m *Microphone) EncodingInfo() audio.EncodingInfo { return m.info }

func (m *Microphone) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	m.in = make([]int16, m.bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.info.SampleRate), m.bufferSize, m.in)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open PortAudio input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start PortAudio input stream: %w", err)
	}

	m.stream = stream
	logger.Info("microphone capture started")
	return nil
}

// ReadChunk blocks for at most one buffer of audio. It returns nil when the
// microphone is not started or the read failed.
func (m *Microphone) ReadChunk() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return nil
	}

	if err := m.stream.Read(); err != nil {
		// input overflow still delivers the buffer
		if err != portaudio.InputOverflowed {
			logger.Warn("failed to read from PortAudio stream", "error", err)
			return nil
		}
	}

	audioBuffer := bytes.Buffer{}
	if err := binary.Write(&audioBuffer, binary.LittleEndian, m.in); err != nil {
		logger.Warn("failed to encode samples", "error", err)
		return nil
	}
	return audioBuffer.Bytes()
}

func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return nil
	}

	err := m.stream.Close()
	m.stream = nil
	portaudio.Terminate()
	if err != nil {
		return fmt.Errorf("failed to close PortAudio stream: %w", err)
	}
	logger.Info("microphone capture stopped")
	return nil
}
