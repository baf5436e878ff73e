package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	closeGracePeriod        = time.Second
)

// Encoding names how binary payloads are put on the wire.
type Encoding string

// EncodingBase64 is the only encoding the realtime protocol accepts for audio.
const EncodingBase64 Encoding = "base64"

// Channel is the duplex websocket connection to the realtime API.
//
// Send methods fail softly: they log and return false instead of returning
// an error, since one dropped frame must not end a streaming session. The
// channel never reconnects on its own.
type Channel struct {
	conn *websocket.Conn

	writeMu      sync.Mutex
	writeTimeout time.Duration

	closeOnce    sync.Once
	closed       atomic.Bool
	disconnected atomic.Bool
}

// Dial opens a channel to url. Failures are returned as *ConnectionError.
func Dial(ctx context.Context, url string, header http.Header) (*Channel, error) {
	ctx, span := tracer.Start(ctx, "dial realtime channel")
	defer span.End()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: defaultHandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}
		connErr := classifyDialError(url, statusCode, err)
		span.RecordError(connErr)
		span.SetStatus(codes.Error, connErr.Error())
		return nil, connErr
	}
	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))

	logger.Info("realtime channel connected")
	return &Channel{conn: conn, writeTimeout: defaultWriteTimeout}, nil
}

// IsConnected reports whether the connection is open and usable.
func (c *Channel) IsConnected() bool {
	return c != nil && c.conn != nil && !c.closed.Load() && !c.disconnected.Load()
}

// SendJSON marshals message and writes it as one text frame.
func (c *Channel) SendJSON(message any) bool {
	if !c.IsConnected() {
		logger.Error("cannot send message, channel is not connected")
		return false
	}

	data, err := json.Marshal(message)
	if err != nil {
		logger.Error("failed to marshal outbound message", "error", err)
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Error("failed to send message", "error", err)
		return false
	}
	return true
}

// SendBinary wraps data in an input_audio_buffer.append frame. Only
// EncodingBase64 is supported; any other encoding fails without sending.
func (c *Channel) SendBinary(data []byte, encoding Encoding) bool {
	if encoding != EncodingBase64 {
		logger.Error("unsupported binary encoding", "encoding", string(encoding))
		return false
	}

	return c.SendJSON(NewAudioAppend(base64.StdEncoding.EncodeToString(data)))
}

// ReceiveLoop reads frames until the connection closes, ctx is cancelled or
// shouldContinue returns false. Every text frame is passed to onMessage
// before shouldContinue is checked.
func (c *Channel) ReceiveLoop(ctx context.Context, onMessage func(data []byte), shouldContinue func() bool) {
	if !c.IsConnected() {
		logger.Error("cannot receive, channel is not connected")
		return
	}

	for ctx.Err() == nil {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.disconnected.Store(true)
			c.logReadError(err)
			return
		}

		if messageType != websocket.TextMessage {
			logger.Debug("ignoring non-text frame", "message_type", messageType)
		} else {
			onMessage(data)
		}

		if shouldContinue != nil && !shouldContinue() {
			return
		}
	}
}

func (c *Channel) logReadError(err error) {
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure):
		logger.Info("realtime channel closed by server")
	case c.closed.Load():
		logger.Debug("realtime channel closed locally", "error", err)
	default:
		logger.Error("realtime channel closed abnormally", "error", err)
	}
}

// Close sends a normal closure frame and releases the connection. It is safe
// to call more than once.
func (c *Channel) Close() {
	if c == nil || c.conn == nil {
		return
	}

	c.closeOnce.Do(func() {
		c.closed.Store(true)
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeGracePeriod)); err != nil {
			logger.Debug("failed to send close frame", "error", err)
		}
		if err := c.conn.Close(); err != nil {
			logger.Debug("failed to close connection", "error", err)
		}
		logger.Info("realtime channel closed")
	})
}
