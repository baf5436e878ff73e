package orchestration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	openairt "github.com/WqyJh/go-openai-realtime"
	"github.com/google/uuid"
	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/playback"
	"github.com/koscakluka/ema-realtime/core/realtime"
	"github.com/koscakluka/ema-realtime/core/tools"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultModel    = "gpt-4o-mini-realtime-preview-2024-12-17"
	DefaultEndpoint = "wss://api.openai.com/v1/realtime?model=" + DefaultModel

	defaultTemperature     = 0.8
	defaultMicInterval     = 10 * time.Millisecond
	defaultDeliveryTimeout = 10 * time.Second
	defaultStopGrace       = 10 * time.Second
)

// Orchestrator owns the realtime connection, audio output and tool dispatch
// of a voice assistant and runs one session at a time.
type Orchestrator struct {
	url     string
	header  http.Header
	session realtime.SessionConfig

	registry               *tools.Registry
	pendingTools           []pendingTool
	withOrchestrationTools bool

	outputDevice playback.Device
	sinkOptions  []playback.SinkOption
	sink         *playback.Sink

	eventHandler      events.Handler
	halfDuplex        bool
	halfDuplexDelay   time.Duration
	idleInitial       time.Duration
	idleAfterResponse time.Duration
	micInterval       time.Duration
	deliveryTimeout   time.Duration

	listening atomic.Bool
	live      atomic.Bool

	mu      sync.Mutex
	current *session

	closeOnce sync.Once
}

type pendingTool struct {
	tool tools.Tool
	opts []tools.RegisterOption
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		url:    DefaultEndpoint,
		header: http.Header{},
		session: realtime.SessionConfig{
			TurnDetection:           &realtime.TurnDetection{Type: realtime.TurnDetectionVAD},
			InputAudioFormat:        realtime.FormatPCM16,
			OutputAudioFormat:       realtime.FormatPCM16,
			InputAudioTranscription: &realtime.InputAudioTranscription{Model: openai.Whisper1},
			Voice:                   string(openairt.VoiceAlloy),
			Modalities:              []string{realtime.ModalityText, realtime.ModalityAudio},
			Temperature:             defaultTemperature,
		},
		registry:        tools.NewRegistry(),
		micInterval:     defaultMicInterval,
		deliveryTimeout: defaultDeliveryTimeout,
	}
	o.listening.Store(true)

	for _, opt := range opts {
		opt(o)
	}

	o.sink = playback.NewSink(o.outputDevice, append(o.sinkOptions, playback.WithEventHandler(o.dispatch))...)

	if o.withOrchestrationTools {
		for _, tool := range orchestrationTools(o) {
			o.registerTool(tool)
		}
	}
	for _, pending := range o.pendingTools {
		if err := o.registry.Register(pending.tool, pending.opts...); err != nil {
			logger.Error("failed to register tool", "error", err)
		}
	}
	o.pendingTools = nil

	return o
}

func (o *Orchestrator) registerTool(tool tools.Tool, opts ...tools.RegisterOption) {
	o.pendingTools = append(o.pendingTools, pendingTool{tool: tool, opts: opts})
}

// Sink is the audio output shared by all sessions.
func (o *Orchestrator) Sink() *playback.Sink { return o.sink }

func (o *Orchestrator) Registry() *tools.Registry { return o.registry }

// IsRunning reports whether a session is live.
func (o *Orchestrator) IsRunning() bool { return o.live.Load() }

// SessionID is the id of the live session, or empty.
func (o *Orchestrator) SessionID() string {
	if s := o.currentSession(); s != nil {
		return s.id
	}
	return ""
}

func (o *Orchestrator) IsListening() bool { return o.listening.Load() }

// SetListening mutes or unmutes the microphone without ending the session.
func (o *Orchestrator) SetListening(isListening bool) {
	o.listening.Store(isListening)
	logger.Info("microphone listening changed", "listening", isListening)
}

// InitializeSession sends the session configuration advertising schemas.
// It needs a live connection and reports false without side effects
// otherwise.
func (o *Orchestrator) InitializeSession(schemas []realtime.ToolSchema) bool {
	return o.initializeSession(context.Background(), o.currentSession(), schemas)
}

func (o *Orchestrator) initializeSession(ctx context.Context, s *session, schemas []realtime.ToolSchema) bool {
	_, span := tracer.Start(ctx, "initialize session")
	defer span.End()

	if s == nil || !s.channel.IsConnected() {
		err := errors.New("no realtime connection")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("cannot initialize session", "error", err)
		return false
	}

	config := o.session
	config.Tools = schemas
	span.SetAttributes(attribute.Int("session.tools", len(schemas)))

	if !s.channel.SendJSON(realtime.NewSessionUpdate(config)) {
		err := errors.New("failed to send session update")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false
	}
	return true
}

// Run connects, configures the session and streams mic to the realtime API
// while playing back and acting on everything it sends, until ctx is done,
// the connection drops or the session is stopped. It reports whether the
// session was established. Only one session runs at a time.
func (o *Orchestrator) Run(ctx context.Context, mic AudioInput, opts ...OrchestrateOption) bool {
	if !o.live.CompareAndSwap(false, true) {
		logger.Warn("session already running, ignoring Run")
		return false
	}
	defer o.live.Store(false)

	runOptions := OrchestrateOptions{}
	for _, opt := range opts {
		opt(&runOptions)
	}

	ctx, span := tracer.Start(ctx, "run realtime session")
	defer span.End()

	s := &session{id: uuid.NewString(), control: newControlQueue(), deliveryTimeout: o.deliveryTimeout}
	span.SetAttributes(attribute.String("session.id", s.id))

	channel, err := realtime.Dial(ctx, o.url, o.header)
	if err != nil {
		err = fmt.Errorf("failed to start session: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("failed to start session", "error", err)
		return false
	}
	defer channel.Close()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s.channel = channel
	s.loop = realtime.NewLoop(0)
	s.cancel = cancel
	s.emit = events.Fanout(s.observe, o.eventHandler, newCallbackEventEmitter(runOptions))
	if o.halfDuplex && o.session.TurnDetection != nil {
		s.turnDetection = newTurnDetectionToggle(s.send, o.session.TurnDetection, o.halfDuplexDelay)
		defer s.turnDetection.stop()
	}
	if o.idleInitial > 0 || o.idleAfterResponse > 0 {
		s.idle = newIdleTimer(o.idleInitial, o.idleAfterResponse, func() { cancel(errIdle) })
		defer s.idle.stop()
	}

	o.setCurrent(s)
	defer o.setCurrent(nil)

	if !o.initializeSession(ctx, s, o.registry.Schemas()) {
		err := errors.New("failed to initialize session")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false
	}

	if err := o.sink.Start(); err != nil {
		logger.Error("audio output unavailable, continuing without playback", "error", err)
	}

	microphone := newAudioInput(mic)
	if err := microphone.start(); err != nil {
		logger.Error("failed to start audio input", "error", err)
	}
	defer func() {
		if err := microphone.stop(); err != nil {
			logger.Warn("failed to stop audio input", "error", err)
		}
	}()

	engine := tools.NewEngine(o.registry, channel, s.loop,
		tools.WithEventHandler(s.emit),
		tools.WithDeliveryTimeout(o.deliveryTimeout),
	)
	router := realtime.NewRouter(o.sink, engine, s.emit)

	s.emit(events.NewSessionStarted(s.id))
	logger.Info("session started", "session_id", s.id)
	if s.idle != nil {
		s.idle.start()
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		s.loop.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		s.control.run(groupCtx, s.deliverControl)
		return nil
	})
	group.Go(func() error {
		defer cancel(errDisconnected)
		o.pumpMicrophone(groupCtx, s, microphone, runOptions.onInputAudio)
		return nil
	})
	group.Go(func() error {
		defer cancel(errDisconnected)
		pumpEvents(groupCtx, s, router)
		return nil
	})
	group.Go(func() error {
		// unblocks the receive loop, which does not watch ctx while reading
		<-groupCtx.Done()
		channel.Close()
		return nil
	})
	_ = group.Wait()
	o.sink.ClearAndStop()

	reason := endReason(ctx, runCtx)
	s.emit(events.NewSessionEnded(s.id, reason))
	logger.Info("session ended", "session_id", s.id, "reason", reason)
	return true
}

// Stop ends the live session, if any.
func (o *Orchestrator) Stop() {
	if s := o.currentSession(); s != nil {
		s.cancel(errStopRequested)
	}
}

// StopAfterResponse ends the live session once the assistant finished
// speaking, or after grace at the latest.
func (o *Orchestrator) StopAfterResponse(grace time.Duration) {
	if s := o.currentSession(); s != nil {
		s.requestStop(grace)
	}
}

// Close stops the live session and releases the audio output.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.Stop()
		o.sink.Stop()
	})
}

func (o *Orchestrator) currentSession() *session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *Orchestrator) setCurrent(s *session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = s
}

// dispatch routes events raised outside of a session's own goroutines, like
// playback transitions, to the live session.
func (o *Orchestrator) dispatch(event events.Event) {
	if s := o.currentSession(); s != nil {
		s.emit(event)
		return
	}
	if o.eventHandler != nil {
		o.eventHandler(event)
	}
}
