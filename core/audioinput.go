package orchestration

import "reflect"

// AudioInput is the microphone a session streams from. ReadChunk returns one
// PCM frame, or nil when no audio is available, and must not block for
// longer than one frame.
type AudioInput interface {
	ReadChunk() []byte
}

// AudioInputLifecycle is implemented by inputs that have to be opened for
// the duration of a session.
type AudioInputLifecycle interface {
	Start() error
	Stop() error
}

// audioInput normalizes the configured microphone for the mic pump. Nil and
// typed-nil inputs are treated as silent.
type audioInput struct {
	base      AudioInput
	lifecycle AudioInputLifecycle
}

func newAudioInput(client AudioInput) *audioInput {
	a := &audioInput{}
	if isNilAudioInput(client) {
		return a
	}

	a.base = client
	if lifecycle, ok := client.(AudioInputLifecycle); ok {
		a.lifecycle = lifecycle
	}
	return a
}

func (a *audioInput) isConfigured() bool { return a != nil && a.base != nil }

func (a *audioInput) start() error {
	if a.lifecycle == nil {
		return nil
	}
	return a.lifecycle.Start()
}

func (a *audioInput) stop() error {
	if a.lifecycle == nil {
		return nil
	}
	return a.lifecycle.Stop()
}

// read returns the next chunk, or nil when there is none.
func (a *audioInput) read() []byte {
	if !a.isConfigured() {
		return nil
	}
	return a.base.ReadChunk()
}

func isNilAudioInput(client AudioInput) bool {
	if client == nil {
		return true
	}

	v := reflect.ValueOf(client)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
