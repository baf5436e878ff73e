package orchestration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-realtime/core/events"
	"github.com/koscakluka/ema-realtime/core/tools"
)

// fakeRealtimeServer accepts one websocket session, records what the client
// sends and writes what the test queues.
type fakeRealtimeServer struct {
	*httptest.Server

	mu       sync.Mutex
	received []map[string]any
	header   http.Header

	outbound chan string
	hangup   chan struct{}
}

func newFakeRealtimeServer(t *testing.T) *fakeRealtimeServer {
	t.Helper()

	srv := &fakeRealtimeServer{outbound: make(chan string, 16), hangup: make(chan struct{})}
	upgrader := websocket.Upgrader{}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.mu.Lock()
		srv.header = r.Header.Clone()
		srv.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for {
				select {
				case frame := <-srv.outbound:
					if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
						return
					}
				case <-srv.hangup:
					_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
					return
				}
			}
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame map[string]any
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}
			srv.mu.Lock()
			srv.received = append(srv.received, frame)
			srv.mu.Unlock()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (s *fakeRealtimeServer) url() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http")
}

func (s *fakeRealtimeServer) frames() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.received...)
}

func (s *fakeRealtimeServer) framesOfType(frameType string) []map[string]any {
	var matching []map[string]any
	for _, frame := range s.frames() {
		if frame["type"] == frameType {
			matching = append(matching, frame)
		}
	}
	return matching
}

type scriptedMic struct {
	mu      sync.Mutex
	chunks  [][]byte
	started int
	stopped int
}

func (m *scriptedMic) ReadChunk() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.chunks) == 0 {
		return nil
	}
	chunk := m.chunks[0]
	m.chunks = m.chunks[1:]
	return chunk
}

func (m *scriptedMic) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
	return nil
}

func (m *scriptedMic) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) handle(event events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) ofKind(kind events.Kind) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var matching []events.Event
	for _, event := range l.events {
		if event.Kind() == kind {
			matching = append(matching, event)
		}
	}
	return matching
}

func waitForCondition(t *testing.T, description string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", description)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// runInBackground starts a session and returns a function waiting for its
// result.
func runInBackground(ctx context.Context, o *Orchestrator, mic AudioInput, opts ...OrchestrateOption) func(t *testing.T) bool {
	result := make(chan bool, 1)
	go func() { result <- o.Run(ctx, mic, opts...) }()

	return func(t *testing.T) bool {
		t.Helper()
		select {
		case ok := <-result:
			return ok
		case <-time.After(3 * time.Second):
			t.Fatal("Run did not return")
			return false
		}
	}
}

func TestRunInitializesSessionAndStreamsMicrophone(t *testing.T) {
	srv := newFakeRealtimeServer(t)
	log := &eventLog{}
	clock := tools.NewFunc("clock", "Current time", nil, func(map[string]any) (any, error) { return "noon", nil })
	o := NewOrchestrator(
		WithEndpoint(srv.url()),
		WithAPIKey("secret"),
		WithVoice("verse"),
		WithInstructions("be brief"),
		WithTools(clock),
		WithEventHandler(log.handle),
	)
	defer o.Close()

	mic := &scriptedMic{chunks: [][]byte{{0x01, 0x02}, {0x03, 0x04}}}
	var forwarded [][]byte
	var forwardedMu sync.Mutex

	ctx, cancel := context.WithCancel(context.Background())
	wait := runInBackground(ctx, o, mic, WithInputAudioCallback(func(audio []byte) {
		forwardedMu.Lock()
		defer forwardedMu.Unlock()
		forwarded = append(forwarded, audio)
	}))

	waitForCondition(t, "audio frames", func() bool { return len(srv.framesOfType("input_audio_buffer.append")) == 2 })
	cancel()
	if !wait(t) {
		t.Fatal("expected Run to report an established session")
	}

	frames := srv.frames()
	if frames[0]["type"] != "session.update" {
		t.Fatalf("expected session.update first, got %v", frames[0]["type"])
	}
	session := frames[0]["session"].(map[string]any)
	if session["voice"] != "verse" || session["instructions"] != "be brief" {
		t.Errorf("unexpected session config %v", session)
	}
	advertised, _ := session["tools"].([]any)
	if len(advertised) != 1 || advertised[0].(map[string]any)["name"] != "clock" {
		t.Errorf("unexpected advertised tools %v", session["tools"])
	}

	appends := srv.framesOfType("input_audio_buffer.append")
	for i, want := range [][]byte{{0x01, 0x02}, {0x03, 0x04}} {
		if appends[i]["audio"] != base64.StdEncoding.EncodeToString(want) {
			t.Errorf("unexpected audio frame %d: %v", i, appends[i]["audio"])
		}
	}
	forwardedMu.Lock()
	if len(forwarded) != 2 {
		t.Errorf("expected the input audio callback twice, got %d", len(forwarded))
	}
	forwardedMu.Unlock()

	srv.mu.Lock()
	authorization := srv.header.Get("Authorization")
	srv.mu.Unlock()
	if authorization != "Bearer secret" {
		t.Errorf("unexpected authorization header %q", authorization)
	}

	if mic.started != 1 || mic.stopped != 1 {
		t.Errorf("expected the mic to be started and stopped once, got %d/%d", mic.started, mic.stopped)
	}
	if len(log.ofKind(events.KindSessionStarted)) != 1 {
		t.Error("expected one session started event")
	}
	ended := log.ofKind(events.KindSessionEnded)
	if len(ended) != 1 || ended[0].(events.SessionEnded).Reason != EndReasonCancelled {
		t.Errorf("expected one cancelled session end, got %v", ended)
	}
	if o.IsRunning() {
		t.Error("orchestrator still reports a running session")
	}
}

func TestRunAnswersToolCalls(t *testing.T) {
	srv := newFakeRealtimeServer(t)
	clock := tools.NewFunc("clock", "Current time", nil, func(map[string]any) (any, error) {
		return map[string]any{"time": "12:00"}, nil
	})
	o := NewOrchestrator(WithEndpoint(srv.url()), WithTools(clock))
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var responses []string
	var responsesMu sync.Mutex
	wait := runInBackground(ctx, o, nil, WithResponseEndCallback(func(transcript string) {
		responsesMu.Lock()
		defer responsesMu.Unlock()
		responses = append(responses, transcript)
	}))

	srv.outbound <- `{"type":"response.done","response":{"output":[{"type":"function_call","name":"clock","call_id":"c1","arguments":"{}"}]}}`
	waitForCondition(t, "tool result", func() bool { return len(srv.framesOfType("response.create")) == 1 })

	outputs := srv.framesOfType("conversation.item.create")
	if len(outputs) != 1 {
		t.Fatalf("expected one tool output, got %d", len(outputs))
	}
	item := outputs[0]["item"].(map[string]any)
	if item["call_id"] != "c1" || item["output"] != `{"time":"12:00"}` {
		t.Errorf("unexpected tool output %v", item)
	}

	cancel()
	wait(t)
	responsesMu.Lock()
	defer responsesMu.Unlock()
	if len(responses) != 1 {
		t.Errorf("expected one response end callback, got %d", len(responses))
	}
}

func TestRunAllowsOneLiveSession(t *testing.T) {
	srv := newFakeRealtimeServer(t)
	o := NewOrchestrator(WithEndpoint(srv.url()))
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	wait := runInBackground(ctx, o, nil)
	waitForCondition(t, "session running", func() bool { return o.SessionID() != "" })

	if o.Run(context.Background(), nil) {
		t.Error("a second concurrent Run must be rejected")
	}

	cancel()
	wait(t)
	if o.SessionID() != "" {
		t.Error("session id should be cleared after the session ended")
	}
}

func TestRunFailsWithoutServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	o := NewOrchestrator(WithEndpoint("ws://" + addr))
	defer o.Close()

	if o.Run(context.Background(), nil) {
		t.Fatal("expected Run to fail without a server")
	}
	if o.IsRunning() {
		t.Error("failed Run left the orchestrator running")
	}
}

func TestInitializeSessionRequiresConnection(t *testing.T) {
	o := NewOrchestrator()
	defer o.Close()

	if o.InitializeSession(nil) {
		t.Fatal("expected InitializeSession to fail without a connection")
	}
}

func TestServerHangupEndsSession(t *testing.T) {
	srv := newFakeRealtimeServer(t)
	log := &eventLog{}
	o := NewOrchestrator(WithEndpoint(srv.url()), WithEventHandler(log.handle))
	defer o.Close()

	wait := runInBackground(context.Background(), o, &scriptedMic{})
	waitForCondition(t, "session update", func() bool { return len(srv.framesOfType("session.update")) == 1 })
	close(srv.hangup)

	if !wait(t) {
		t.Fatal("expected Run to report an established session")
	}
	ended := log.ofKind(events.KindSessionEnded)
	if len(ended) != 1 || ended[0].(events.SessionEnded).Reason != EndReasonDisconnected {
		t.Errorf("expected a disconnected session end, got %v", ended)
	}
}

func TestStopEndsSession(t *testing.T) {
	srv := newFakeRealtimeServer(t)
	log := &eventLog{}
	o := NewOrchestrator(WithEndpoint(srv.url()), WithEventHandler(log.handle))
	defer o.Close()

	wait := runInBackground(context.Background(), o, nil)
	waitForCondition(t, "session running", func() bool { return o.SessionID() != "" })
	o.Stop()
	wait(t)

	ended := log.ofKind(events.KindSessionEnded)
	if len(ended) != 1 || ended[0].(events.SessionEnded).Reason != EndReasonStopped {
		t.Errorf("expected a stopped session end, got %v", ended)
	}
}

func TestIdleTimeoutEndsSession(t *testing.T) {
	srv := newFakeRealtimeServer(t)
	log := &eventLog{}
	o := NewOrchestrator(
		WithEndpoint(srv.url()),
		WithEventHandler(log.handle),
		WithIdleTimeout(30*time.Millisecond, time.Second),
	)
	defer o.Close()

	wait := runInBackground(context.Background(), o, nil)
	wait(t)

	ended := log.ofKind(events.KindSessionEnded)
	if len(ended) != 1 || ended[0].(events.SessionEnded).Reason != EndReasonIdle {
		t.Errorf("expected an idle session end, got %v", ended)
	}
}

func TestHalfDuplexTogglesTurnDetection(t *testing.T) {
	srv := newFakeRealtimeServer(t)
	o := NewOrchestrator(WithEndpoint(srv.url()), WithHalfDuplex(20*time.Millisecond))
	defer o.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wait := runInBackground(ctx, o, nil)
	waitForCondition(t, "session update", func() bool { return len(srv.framesOfType("session.update")) == 1 })

	srv.outbound <- `{"type":"input_audio_buffer.speech_stopped"}`
	waitForCondition(t, "turn detection disabled", func() bool { return len(srv.framesOfType("session.update")) == 2 })
	disabled := srv.framesOfType("session.update")[1]["session"].(map[string]any)
	if value, ok := disabled["turn_detection"]; !ok || value != nil {
		t.Fatalf("expected turn_detection null, got %v", disabled)
	}

	// playback ending re-enables detection after the delay
	o.dispatch(events.NewAssistantPlaybackEnded(false))
	waitForCondition(t, "turn detection enabled", func() bool { return len(srv.framesOfType("session.update")) == 3 })
	enabled := srv.framesOfType("session.update")[2]["session"].(map[string]any)
	if detection, _ := enabled["turn_detection"].(map[string]any); detection["type"] != "server_vad" {
		t.Fatalf("expected server_vad, got %v", enabled)
	}

	cancel()
	wait(t)
}

func TestSetListeningMutesMicrophone(t *testing.T) {
	srv := newFakeRealtimeServer(t)
	o := NewOrchestrator(WithEndpoint(srv.url()))
	defer o.Close()
	o.SetListening(false)

	mic := &scriptedMic{chunks: [][]byte{{0x01, 0x02}}}
	ctx, cancel := context.WithCancel(context.Background())
	wait := runInBackground(ctx, o, mic)
	waitForCondition(t, "mic drained", func() bool {
		mic.mu.Lock()
		defer mic.mu.Unlock()
		return len(mic.chunks) == 0
	})
	time.Sleep(30 * time.Millisecond)
	cancel()
	wait(t)

	if appends := srv.framesOfType("input_audio_buffer.append"); len(appends) != 0 {
		t.Errorf("muted microphone sent %d frames", len(appends))
	}
}
