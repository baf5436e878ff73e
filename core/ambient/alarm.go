package ambient

import (
	"sync"
	"time"

	"github.com/koscakluka/ema-realtime/core/events"
)

const DefaultAlarmSound = "alarm"

// AlarmScheduler is the alarm capability. The bridge only registers a
// callback, scheduling and cancelling stay with the owner.
type AlarmScheduler interface {
	RegisterCallback(callback func(alarmID string))
}

// SoundPlayer is satisfied by *playback.Sink.
type SoundPlayer interface {
	PlayNamedSound(id string) bool
}

type AlarmBridge struct {
	player SoundPlayer
	sound  string
	onFire events.Handler

	mu    sync.Mutex
	fired []string
}

type AlarmOption func(*AlarmBridge)

func WithAlarmSound(sound string) AlarmOption {
	return func(b *AlarmBridge) {
		if sound != "" {
			b.sound = sound
		}
	}
}

// WithAlarmEventHandler receives an AlarmFired event for every alarm.
func WithAlarmEventHandler(handler events.Handler) AlarmOption {
	return func(b *AlarmBridge) { b.onFire = handler }
}

// NewAlarmBridge registers on scheduler and plays the alarm sound through
// player whenever an alarm fires.
func NewAlarmBridge(scheduler AlarmScheduler, player SoundPlayer, opts ...AlarmOption) *AlarmBridge {
	b := &AlarmBridge{player: player, sound: DefaultAlarmSound}
	for _, opt := range opts {
		opt(b)
	}
	if scheduler != nil {
		scheduler.RegisterCallback(b.fire)
	}
	return b
}

func (b *AlarmBridge) fire(alarmID string) {
	b.mu.Lock()
	b.fired = append(b.fired, alarmID)
	b.mu.Unlock()

	played := false
	if b.player != nil {
		played = b.player.PlayNamedSound(b.sound)
	}
	if !played {
		logger.Warn("alarm sound not played", "alarm_id", alarmID, "sound", b.sound)
	} else {
		logger.Info("alarm fired", "alarm_id", alarmID, "sound", b.sound)
	}

	if b.onFire != nil {
		b.onFire(events.NewAlarmFired(alarmID, played))
	}
}

// Fired lists alarm ids in the order they fired.
func (b *AlarmBridge) Fired() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.fired...)
}

// TimerScheduler is an in-process AlarmScheduler backed by time.AfterFunc.
type TimerScheduler struct {
	mu        sync.Mutex
	timers    map[string]*time.Timer
	callbacks []func(string)
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: map[string]*time.Timer{}}
}

func (s *TimerScheduler) RegisterCallback(callback func(alarmID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

// Schedule replaces any alarm already scheduled under id.
func (s *TimerScheduler) Schedule(id string, after time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
	}
	s.timers[id] = time.AfterFunc(after, func() { s.trigger(id) })
}

func (s *TimerScheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer, ok := s.timers[id]
	if !ok {
		return false
	}
	delete(s.timers, id)
	return timer.Stop()
}

func (s *TimerScheduler) trigger(id string) {
	s.mu.Lock()
	delete(s.timers, id)
	callbacks := append([]func(string){}, s.callbacks...)
	s.mu.Unlock()

	for _, callback := range callbacks {
		callback(id)
	}
}
