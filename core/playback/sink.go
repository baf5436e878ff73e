package playback

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-realtime/core/audio"
	"github.com/koscakluka/ema-realtime/core/events"
)

const (
	defaultStopTimeout       = 2 * time.Second
	defaultMaxReopenAttempts = 3
	defaultReopenBackoff     = 50 * time.Millisecond
)

// State is the lifecycle state of a Sink.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateBusy
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateBusy:
		return "busy"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Sink plays a stream of small PCM chunks in order on a background consumer
// and can be flushed mid-utterance without releasing the output device.
//
// Event handlers are called synchronously from the goroutine causing the
// transition and must not call back into the Sink.
type Sink struct {
	// mu guards queue, state and stop/done.
	mu    sync.Mutex
	queue *queue
	state State
	stop  chan struct{}
	done  chan struct{}

	// transitionMu serializes busy/idle transitions together with their
	// events so handlers never observe an ended before its started.
	transitionMu sync.Mutex

	// deviceMu serializes writes, reopens and hot-swap. Interrupts go to the
	// device without it so they can cut off a write in progress.
	deviceMu sync.Mutex
	device   atomic.Pointer[device]

	volume atomic.Uint64

	encodingInfo      audio.EncodingInfo
	sounds            audio.SoundLibrary
	soundPlayer       SoundPlayer
	emit              events.Handler
	stopTimeout       time.Duration
	maxReopenAttempts int
	reopenBackoff     time.Duration
	drainGrace        time.Duration
}

type SinkOption func(*Sink)

// WithEventHandler sets the handler receiving playback started/ended events.
func WithEventHandler(handler events.Handler) SinkOption {
	return func(s *Sink) {
		if handler != nil {
			s.emit = handler
		}
	}
}

// WithSounds enables PlayNamedSound with files from library played by player.
func WithSounds(library audio.SoundLibrary, player SoundPlayer) SinkOption {
	return func(s *Sink) {
		s.sounds = library
		s.soundPlayer = player
	}
}

func WithEncodingInfo(info audio.EncodingInfo) SinkOption {
	return func(s *Sink) { s.encodingInfo = info }
}

// WithStopTimeout bounds how long Stop waits for the consumer to exit.
func WithStopTimeout(timeout time.Duration) SinkOption {
	return func(s *Sink) { s.stopTimeout = timeout }
}

// WithReopenPolicy bounds the self-healing reopen after device failures.
func WithReopenPolicy(attempts int, backoff time.Duration) SinkOption {
	return func(s *Sink) {
		s.maxReopenAttempts = max(attempts, 1)
		s.reopenBackoff = backoff
	}
}

// WithDrainGrace keeps the sink busy for up to grace after the queue empties,
// so network jitter between chunks does not split one utterance into several
// busy periods.
func WithDrainGrace(grace time.Duration) SinkOption {
	return func(s *Sink) { s.drainGrace = grace }
}

// NewSink creates a stopped sink writing to output. A nil output falls back
// to Discard.
func NewSink(output Device, opts ...SinkOption) *Sink {
	dev, err := newDevice(output)
	if err != nil {
		dev, _ = newDevice(Discard{})
	}

	s := &Sink{
		queue:             newQueue(),
		encodingInfo:      audio.GetDefaultEncodingInfo(),
		emit:              func(events.Event) {},
		stopTimeout:       defaultStopTimeout,
		maxReopenAttempts: defaultMaxReopenAttempts,
		reopenBackoff:     defaultReopenBackoff,
	}
	s.device.Store(dev)
	s.volume.Store(math.Float64bits(1))

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports the current lifecycle state.
func (s *Sink) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending reports the number of chunks waiting to be played.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

func (s *Sink) EncodingInfo() audio.EncodingInfo { return s.encodingInfo }

// Start opens the output device and launches the consumer. Starting a sink
// that is not stopped is a no-op.
func (s *Sink) Start() error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStarting
	s.mu.Unlock()

	s.deviceMu.Lock()
	err := s.device.Load().Open()
	s.deviceMu.Unlock()
	if err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		return fmt.Errorf("failed to open output device: %w", err)
	}

	s.mu.Lock()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.state = StateRunning
	go s.consume(s.stop, s.done)
	s.mu.Unlock()

	logger.Info("audio output started")
	return nil
}

// Stop halts the consumer, waiting at most the stop timeout for it, and
// releases the device. Queued audio is dropped.
func (s *Sink) Stop() {
	s.mu.Lock()
	if s.state == StateStopped || s.stop == nil {
		s.mu.Unlock()
		return
	}
	wasBusy := s.state == StateBusy
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	dropped := s.queue.clear()
	s.state = StateStopped
	close(stop)
	s.mu.Unlock()

	if dropped > 0 {
		chunksDropped.Add(context.Background(), int64(dropped))
	}

	select {
	case <-done:
		s.deviceMu.Lock()
		s.closeDevice()
		s.deviceMu.Unlock()
	case <-time.After(s.stopTimeout):
		// The consumer is stuck in a device write and holds deviceMu. Closing
		// the device is what releases it.
		logger.Warn("audio output consumer did not stop in time", "timeout", s.stopTimeout)
		s.closeDevice()
	}

	if wasBusy {
		s.transitionMu.Lock()
		s.emit(events.NewAssistantPlaybackEnded(true))
		s.transitionMu.Unlock()
	}
	logger.Info("audio output stopped")
}

// reopenInBackground reopens the device once the consumer releases it and
// waits for that at most the stop timeout.
func (s *Sink) reopenInBackground() {
	reopened := make(chan struct{})
	go func() {
		defer close(reopened)
		s.deviceMu.Lock()
		defer s.deviceMu.Unlock()
		s.reopenLocked()
	}()

	select {
	case <-reopened:
	case <-time.After(s.stopTimeout):
		logger.Warn("output device reopen still pending", "timeout", s.stopTimeout)
	}
}

func (s *Sink) closeDevice() {
	if err := s.device.Load().Close(); err != nil {
		logger.Error("failed to close output device", "error", err)
	}
}

// AddChunk decodes a base64 chunk and appends it to the queue. It never
// blocks on playback; malformed input is logged and dropped.
func (s *Sink) AddChunk(encoded string) {
	pcm, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		chunksDropped.Add(context.Background(), 1)
		logger.Warn("failed to decode audio chunk", "error", err)
		return
	}
	s.AddPCM(pcm)
}

// AddPCM appends raw linear16 audio to the queue.
func (s *Sink) AddPCM(pcm []byte) {
	if len(pcm) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		logger.Debug("dropping audio chunk, output is stopped")
		chunksDropped.Add(context.Background(), 1)
		return
	}
	s.queue.push(pcm)
}

// ClearAndStop flushes the queue and audio held by the device while keeping
// the device open. If playback was in progress the ended event is emitted,
// even when the device fails to re-arm.
//
// The interrupt does not wait for a write in progress; devices implementing
// Interrupter abort it. A reopen after a failed interrupt is waited for at
// most the stop timeout.
func (s *Sink) ClearAndStop() {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	s.mu.Lock()
	dropped := s.queue.clear()
	wasBusy := s.state == StateBusy
	if wasBusy {
		s.state = StateRunning
	}
	running := s.state == StateRunning
	s.mu.Unlock()

	if dropped > 0 {
		chunksDropped.Add(context.Background(), int64(dropped))
	}

	if running {
		if err := s.device.Load().interrupt(); err != nil {
			logger.Warn("output device failed during interrupt, reopening", "error", err)
			s.reopenInBackground()
		}
	}

	if wasBusy {
		logger.Debug("playback interrupted", "dropped_chunks", dropped)
		s.emit(events.NewAssistantPlaybackEnded(true))
	}
}

// SetVolume clamps level to [0, 1], applies it to subsequently played chunks
// and returns the stored value.
func (s *Sink) SetVolume(level float64) float64 {
	level = audio.ClampVolume(level)
	s.volume.Store(math.Float64bits(level))
	return level
}

func (s *Sink) Volume() float64 {
	return math.Float64frombits(s.volume.Load())
}

// PlayNamedSound plays a short sound cue from the sound library outside of
// the queue. Failures are logged and reported as false.
func (s *Sink) PlayNamedSound(id string) bool {
	if s.soundPlayer == nil {
		logger.Warn("no sound player configured", "sound", id)
		return false
	}

	path, err := s.sounds.Resolve(id)
	if err != nil {
		logger.Warn("failed to resolve sound", "sound", id, "error", err)
		return false
	}

	if err := s.soundPlayer.PlayFile(path, s.Volume()); err != nil {
		logger.Warn("failed to play sound", "sound", id, "error", err)
		return false
	}
	return true
}

func (s *Sink) consume(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		chunk, generation, ok := s.next(stop)
		if !ok {
			return
		}

		s.play(chunk, generation)
		if stopped(stop) {
			return
		}

		if !s.awaitMore(stop) {
			s.finishBusyPeriod(stop)
		}
	}
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// next blocks until a chunk is available or stop is closed. Dequeuing moves
// the sink into the busy state and emits started on the transition.
//
// stop belongs to this consumer only. A consumer left behind by a timed out
// Stop sees its own stop closed even after a restart and never pops.
func (s *Sink) next(stop <-chan struct{}) ([]byte, uint64, bool) {
	for {
		s.transitionMu.Lock()
		s.mu.Lock()
		if s.state == StateStopped || stopped(stop) {
			s.mu.Unlock()
			s.transitionMu.Unlock()
			return nil, 0, false
		}

		chunk, ok := s.queue.pop()
		if ok {
			generation := s.queue.generation
			started := s.state == StateRunning
			if started {
				s.state = StateBusy
			}
			s.mu.Unlock()
			if started {
				s.emit(events.NewAssistantPlaybackStarted())
			}
			s.transitionMu.Unlock()
			return chunk, generation, true
		}
		s.mu.Unlock()
		s.transitionMu.Unlock()

		select {
		case <-stop:
			return nil, 0, false
		case <-s.queue.updateSignal:
		}
	}
}

func (s *Sink) play(chunk []byte, generation uint64) {
	pcm := audio.ScaleLinear16(chunk, s.Volume())

	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	s.mu.Lock()
	flushed := s.queue.generation != generation || s.state == StateStopped
	s.mu.Unlock()
	if flushed {
		chunksDropped.Add(context.Background(), 1)
		return
	}

	err := s.device.Load().Write(pcm)

	s.mu.Lock()
	interrupted := s.queue.generation != generation || s.state == StateStopped
	s.mu.Unlock()

	switch {
	case interrupted:
		// an aborted write may fail, the device is re-armed by the interrupt
		chunksDropped.Add(context.Background(), 1)
	case err != nil:
		logger.Warn("failed to write audio chunk, reopening output device", "error", err)
		chunksDropped.Add(context.Background(), 1)
		s.reopenLocked()
	default:
		chunksPlayed.Add(context.Background(), 1)
	}
}

// awaitMore reports whether more audio is queued, waiting up to the drain
// grace for it to arrive.
func (s *Sink) awaitMore(stop <-chan struct{}) bool {
	if s.Pending() > 0 {
		return true
	} else if s.drainGrace <= 0 {
		return false
	}

	timer := time.NewTimer(s.drainGrace)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return false
		case <-timer.C:
			return s.Pending() > 0
		case <-s.queue.updateSignal:
			if s.Pending() > 0 {
				// next has to see the signal too
				s.mu.Lock()
				s.queue.signalUpdate()
				s.mu.Unlock()
				return true
			}
		}
	}
}

func (s *Sink) finishBusyPeriod(stop <-chan struct{}) {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	s.mu.Lock()
	finished := s.state == StateBusy && s.queue.len() == 0 && !stopped(stop)
	if finished {
		s.state = StateRunning
	}
	s.mu.Unlock()

	if finished {
		s.emit(events.NewAssistantPlaybackEnded(false))
	}
}

// reopenLocked retries opening the device a bounded number of times.
// deviceMu must be held.
func (s *Sink) reopenLocked() bool {
	for attempt := 1; attempt <= s.maxReopenAttempts; attempt++ {
		deviceReopens.Add(context.Background(), 1)
		err := s.device.Load().reopen()
		if err == nil {
			logger.Info("output device reopened", "attempt", attempt)
			return true
		}

		logger.Warn("failed to reopen output device", "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt) * s.reopenBackoff)
	}

	logger.Error("giving up on reopening output device", "attempts", s.maxReopenAttempts)
	return false
}
