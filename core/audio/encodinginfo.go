package audio

import "time"

const (
	// DefaultSampleRate is the rate the realtime API expects for pcm16 audio.
	DefaultSampleRate = 24000
	DefaultFormat     = "linear16"
	// DefaultChunkFrames is the number of frames read from the microphone per
	// chunk.
	DefaultChunkFrames = 1024
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat), Channels: 1}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
	Channels   int
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) channels() int {
	if e.Channels <= 0 {
		return 1
	}
	return e.Channels
}

// BytesPerFrame is the size of one frame across all channels.
func (e EncodingInfo) BytesPerFrame() int {
	return e.Format.ByteSize() * e.channels()
}

// Duration reports how long n bytes of audio play for.
func (e EncodingInfo) Duration(n int) time.Duration {
	bytesPerFrame := e.BytesPerFrame()
	if e.SampleRate <= 0 || bytesPerFrame <= 0 {
		return 0
	}

	frames := n / bytesPerFrame
	return time.Duration(frames) * time.Second / time.Duration(e.SampleRate)
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case encodingFormat("mulaw"), encodingFormat("alaw"):
		return 1
	case encodingFormat("linear16"):
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
