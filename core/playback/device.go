package playback

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrDeviceUnavailable is returned when no usable output device is configured.
var ErrDeviceUnavailable = errors.New("output device unavailable")

// Device is a speaker backend. The set of implementations is closed:
// portaudio.Speaker, miniaudio.Playback and Discard.
//
// Write blocks until the device accepted the chunk, which paces the sink's
// consumer at roughly realtime.
type Device interface {
	Open() error
	Write(pcm []byte) error
	Close() error
}

// Interrupter is implemented by devices that can drop audio they already
// accepted. Pause discards the device side buffer, Resume re-arms output.
//
// Both are called concurrently with Write. Pause must make a Write in
// progress return promptly.
type Interrupter interface {
	Pause() error
	Resume() error
}

// SoundPlayer plays short local sound files outside of the sink's queue.
// PlayFile starts playback and returns without waiting for it to finish.
type SoundPlayer interface {
	PlayFile(path string, volume float64) error
}

// device normalizes the optional device capabilities behind one facade so
// the sink does not repeat type assertions per chunk.
type device struct {
	base        Device
	interrupter Interrupter
}

func newDevice(client Device) (*device, error) {
	if isNilDevice(client) {
		return nil, ErrDeviceUnavailable
	}

	d := device{base: client}
	if interrupter, ok := client.(Interrupter); ok {
		d.interrupter = interrupter
	}
	return &d, nil
}

func (d *device) Open() error            { return d.base.Open() }
func (d *device) Write(pcm []byte) error { return d.base.Write(pcm) }
func (d *device) Close() error           { return d.base.Close() }

// interrupt flushes audio the device already holds. Devices without
// Interrupter support only lose what is still queued in the sink.
func (d *device) interrupt() error {
	if d.interrupter == nil {
		return nil
	}

	if err := d.interrupter.Pause(); err != nil {
		return fmt.Errorf("failed to pause output device: %w", err)
	}
	if err := d.interrupter.Resume(); err != nil {
		return fmt.Errorf("failed to resume output device: %w", err)
	}
	return nil
}

// reopen closes and reopens the device. Close errors are ignored since the
// device is already considered broken.
func (d *device) reopen() error {
	_ = d.base.Close()
	return d.base.Open()
}

// isNilDevice detects nil and typed-nil interface values.
func isNilDevice(client Device) bool {
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

// Discard is a Device that accepts and drops all audio. It is used when no
// speaker is configured.
type Discard struct{}

func (Discard) Open() error        { return nil }
func (Discard) Write([]byte) error { return nil }
func (Discard) Close() error       { return nil }
