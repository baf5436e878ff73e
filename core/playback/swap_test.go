package playback

import (
	"errors"
	"testing"
)

func TestSwapDeviceReplacesVerifiedDevice(t *testing.T) {
	previous := &fakeDevice{}
	sink, _ := newStartedSink(t, previous)
	next := &fakeDevice{}

	if err := sink.SwapDevice(next); err != nil {
		t.Fatalf("expected swap to succeed, got %v", err)
	}

	if next.openCount() != 1 {
		t.Fatalf("expected replacement to be opened once, got %d", next.openCount())
	}
	if got := len(next.written()); got != 1 {
		t.Fatalf("expected one verification write, got %d", got)
	}
	previous.mu.Lock()
	closes := previous.closes
	previous.mu.Unlock()
	if closes != 1 {
		t.Fatalf("expected previous device to be closed, got %d closes", closes)
	}

	sink.AddPCM(numberedChunk(7))
	waitFor(t, "chunk on replacement", func() bool { return len(next.written()) == 2 })
}

func TestSwapDeviceRollsBackWhenVerificationFails(t *testing.T) {
	previous := &fakeDevice{}
	sink, _ := newStartedSink(t, previous)
	next := &fakeDevice{writeErrs: []error{errors.New("no route to speaker")}}

	if err := sink.SwapDevice(next); err == nil {
		t.Fatalf("expected swap to fail")
	}

	sink.AddPCM(numberedChunk(3))
	waitFor(t, "chunk on previous device", func() bool { return len(previous.written()) == 1 })
	next.mu.Lock()
	closes := next.closes
	next.mu.Unlock()
	if closes != 1 {
		t.Fatalf("expected failed replacement to be closed, got %d closes", closes)
	}
}

func TestSwapDeviceRollsBackWhenOpenFails(t *testing.T) {
	previous := &fakeDevice{}
	sink, _ := newStartedSink(t, previous)

	if err := sink.SwapDevice(&fakeDevice{openErr: errors.New("busy")}); err == nil {
		t.Fatalf("expected swap to fail")
	}

	sink.AddPCM(numberedChunk(4))
	waitFor(t, "chunk on previous device", func() bool { return len(previous.written()) == 1 })
}

func TestSwapDeviceRejectsNil(t *testing.T) {
	sink := NewSink(&fakeDevice{})

	if err := sink.SwapDevice(nil); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}
