package ambient

import (
	"sync"

	"github.com/koscakluka/ema-realtime/core/audio"
	"github.com/koscakluka/ema-realtime/core/events"
)

// Lights is the lighting capability driven by assistant state. Start and Stop
// switch the lights on and off, SetBrightness takes a level in [0, 1].
type Lights interface {
	Start() error
	Stop() error
	SetBrightness(level float64) error
}

type State int

const (
	StateIdle State = iota
	StateListening
	StateResponding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateResponding:
		return "responding"
	default:
		return "unknown"
	}
}

const (
	defaultListeningBrightness  = 1.0
	defaultRespondingBrightness = 0.3
)

type LightController struct {
	lights Lights

	listeningBrightness  float64
	respondingBrightness float64

	state State
	on    bool
	mu    sync.Mutex
}

type LightOption func(*LightController)

// WithBrightness sets the levels used while listening and while the assistant
// is speaking.
func WithBrightness(listening, responding float64) LightOption {
	return func(c *LightController) {
		c.listeningBrightness = audio.ClampVolume(listening)
		c.respondingBrightness = audio.ClampVolume(responding)
	}
}

func NewLightController(lights Lights, opts ...LightOption) *LightController {
	c := &LightController{
		lights:               lights,
		listeningBrightness:  defaultListeningBrightness,
		respondingBrightness: defaultRespondingBrightness,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LightController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Handle is an events.Handler that follows the session and playback signals.
func (c *LightController) Handle(event events.Event) {
	switch event.(type) {
	case events.SessionStarted, events.UserSpeechStarted, events.AssistantPlaybackEnded:
		c.transition(StateListening)
	case events.AssistantPlaybackStarted:
		c.transition(StateResponding)
	case events.SessionEnded:
		c.transition(StateIdle)
	}
}

func (c *LightController) transition(next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == next {
		return
	}

	if err := c.apply(next); err != nil {
		logger.Warn("failed to update lights", "from", c.state.String(), "to", next.String(), "error", err)
		return
	}
	logger.Debug("lights updated", "from", c.state.String(), "to", next.String())
	c.state = next
}

func (c *LightController) apply(next State) error {
	if c.lights == nil {
		return nil
	}

	if next == StateIdle {
		if !c.on {
			return nil
		}
		if err := c.lights.Stop(); err != nil {
			return err
		}
		c.on = false
		return nil
	}

	if !c.on {
		if err := c.lights.Start(); err != nil {
			return err
		}
		c.on = true
	}

	level := c.listeningBrightness
	if next == StateResponding {
		level = c.respondingBrightness
	}
	return c.lights.SetBrightness(level)
}

// LogLights is a Lights that only logs, used when no lighting is attached.
type LogLights struct{}

func (LogLights) Start() error {
	logger.Info("lights on")
	return nil
}

func (LogLights) Stop() error {
	logger.Info("lights off")
	return nil
}

func (LogLights) SetBrightness(level float64) error {
	logger.Info("lights brightness", "level", level)
	return nil
}
