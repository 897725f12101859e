// Package realtime probes the realtime websocket endpoint: it completes the
// upgrade, joins one channel and reports the server's reply.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raysh454/authprobe/internal/jsonutil"
	"github.com/raysh454/authprobe/internal/logging"
	"github.com/raysh454/authprobe/internal/probe"
	"github.com/raysh454/authprobe/internal/utils"
)

const (
	EventJoin      = "phx_join"
	EventReply     = "phx_reply"
	EventHeartbeat = "heartbeat"

	// JoinRef is the ref sent with the join; the reply echoes it.
	JoinRef = "1"

	DefaultTimeout         = 10 * time.Second
	DefaultMaxMessageBytes = 1 << 20
)

var ErrNoTopic = errors.New("realtime: request body has no topic")

// Message is a channel frame in the v1 JSON serializer format.
type Message struct {
	Topic   string `json:"topic"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
	Ref     string `json:"ref,omitempty"`
}

// Config tunes the prober.
type Config struct {
	// Timeout bounds the handshake plus the wait for the join reply when the
	// request has no timeout of its own.
	Timeout         time.Duration
	MaxMessageBytes int64
}

// Prober implements probe.WebSocketProber with gorilla/websocket.
type Prober struct {
	cfg    Config
	dialer *websocket.Dialer
	logger logging.Logger
}

var _ probe.WebSocketProber = (*Prober)(nil)

// NewProber builds a Prober. A nil dialer uses a copy of
// websocket.DefaultDialer.
func NewProber(cfg Config, dialer *websocket.Dialer, logger logging.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if dialer == nil {
		d := *websocket.DefaultDialer
		dialer = &d
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Prober{
		cfg:    cfg,
		dialer: dialer,
		logger: logger.With(logging.Field{Key: "component", Value: "realtime"}),
	}
}

// JoinTopic reads the channel topic from a request body of the form
// {"topic": "realtime:public:<table>"}.
func JoinTopic(body any) (string, error) {
	switch b := body.(type) {
	case map[string]any:
		if t, ok := b["topic"].(string); ok && t != "" {
			return t, nil
		}
	case map[string]string:
		if t := b["topic"]; t != "" {
			return t, nil
		}
	}
	return "", ErrNoTopic
}

// Probe dials req.URL, sends a join for the topic in req.Body and waits for
// the matching reply. A refused upgrade is reported like any HTTP response;
// only transport failures set Result.Err.
func (p *Prober) Probe(ctx context.Context, req probe.Request) (res probe.Result) {
	res = probe.Result{Request: req, StartedAt: time.Now()}
	defer func() { res.Duration = time.Since(res.StartedAt) }()

	topic, err := JoinTopic(req.Body)
	if err != nil {
		res.Err = err
		return res
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = p.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	header := http.Header{}
	for k, v := range req.Headers {
		header.Set(k, v)
	}

	p.logger.Info("dialing", logging.Field{Key: "url", Value: utils.MaskURL(req.URL)}, logging.Field{Key: "topic", Value: topic})
	conn, resp, err := p.dialer.DialContext(ctx, req.URL, header)
	if resp != nil {
		res.StatusCode = resp.StatusCode
		res.Headers = resp.Header
	}
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			// The server answered but refused the upgrade.
			body, _ := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxMessageBytes))
			_ = resp.Body.Close()
			res.RawBody = string(body)
			probe.DecodeBody(&res, body)
			p.logger.Warn("upgrade refused", logging.Field{Key: "status", Value: resp.StatusCode})
			return res
		}
		res.Err = fmt.Errorf("websocket dial: %w", err)
		return res
	}
	defer conn.Close()
	conn.SetReadLimit(p.cfg.MaxMessageBytes)

	// Unblock reads if the caller cancels before the deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
		_ = conn.SetWriteDeadline(dl)
	}

	join, err := jsonutil.Marshal(Message{Topic: topic, Event: EventJoin, Payload: map[string]any{}, Ref: JoinRef})
	if err != nil {
		res.Err = fmt.Errorf("encode join: %w", err)
		return res
	}
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		res.Err = fmt.Errorf("send join: %w", err)
		return res
	}

	reply, err := waitReply(conn, JoinRef)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (%v)", ctx.Err(), err)
		}
		res.Err = fmt.Errorf("read reply: %w", err)
		return res
	}
	res.RawBody = string(reply)
	probe.DecodeBody(&res, reply)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	p.logger.Info("joined", logging.Field{Key: "topic", Value: topic})
	return res
}

// waitReply reads frames until a reply with ref arrives. Other frames, such
// as presence state pushes, are skipped.
func waitReply(conn *websocket.Conn, ref string) ([]byte, error) {
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ != websocket.TextMessage {
			continue
		}
		var msg Message
		if err := jsonutil.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Event == EventReply && msg.Ref == ref {
			return data, nil
		}
	}
}
