// Package ws implements the host bridge over a WebSocket connection to the IDE.
package ws

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Message actions
const (
	ActionHandshake    = "handshake"
	ActionRequest      = "request"
	ActionResponse     = "response"
	ActionNotification = "notification"
)

// ErrClosed is returned by calls made on (or pending when) the connection closes
var ErrClosed = errors.New("bridge connection closed")

// Message is the bridge wire format
type Message struct {
	Action  string             `json:"action"`
	ID      uint64             `json:"id,omitempty"`
	Name    string             `json:"name,omitempty"`
	Key     string             `json:"key,omitempty"`
	Payload stdjson.RawMessage `json:"payload,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Conn is a bridge connection
type Conn struct {
	ws     *websocket.Conn
	name   string
	logger *slog.Logger

	writeMu sync.Mutex

	nextID  atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan Message

	loaded   chan struct{}
	loadOnce sync.Once

	done     chan struct{}
	doneOnce sync.Once
	err      error
}

// Dial connects to the bridge at url and identifies the plugin as name
func Dial(ctx context.Context, url, name string, logger *slog.Logger) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Proxy:            http.ProxyFromEnvironment,
	}

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing bridge %s: %w", url, err)
	}

	return newConn(ws, name, logger), nil
}

func newConn(ws *websocket.Conn, name string, logger *slog.Logger) *Conn {
	c := &Conn{
		ws:      ws,
		name:    name,
		logger:  logger,
		pending: make(map[uint64]chan Message),
		loaded:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// OnLoad blocks until the host handshake has been received. There is no timeout
// beyond ctx.
func (c *Conn) OnLoad(ctx context.Context) error {
	select {
	case <-c.loaded:
		return nil
	case <-c.done:
		return c.closeErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call sends a request to the host and waits for the matching response
func (c *Conn) Call(ctx context.Context, namespace, method string, args ...any) (stdjson.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encoding arguments: %w", err)
	}

	id := c.nextID.Add(1)
	ch := make(chan Message, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(Message{Action: ActionRequest, ID: id, Name: namespace, Key: method, Payload: payload}); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return nil, fmt.Errorf("%s.%s: %s", namespace, method, resp.Error)
		}
		return resp.Payload, nil
	case <-c.done:
		return nil, c.closeErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Emit sends a notification to the host
func (c *Conn) Emit(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", event, err)
	}
	return c.write(Message{Action: ActionNotification, Name: c.name, Key: event, Payload: data})
}

// Close closes the connection
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	c.fail(ErrClosed)
	return c.ws.Close()
}

func (c *Conn) write(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	select {
	case <-c.done:
		return c.closeErr()
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing to bridge: %w", err)
	}
	return nil
}

func (c *Conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.fail(ErrClosed)
			} else {
				c.fail(fmt.Errorf("%w: %v", ErrClosed, err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("dropping malformed bridge message", "error", err)
			continue
		}

		switch msg.Action {
		case ActionHandshake:
			c.loadOnce.Do(func() {
				c.logger.Debug("bridge handshake received", "host", msg.Name)
				close(c.loaded)
			})
			// Answer with our own name so the host can register the plugin.
			if err := c.write(Message{Action: ActionHandshake, Name: c.name}); err != nil {
				c.logger.Warn("answering bridge handshake", "error", err)
			}
		case ActionResponse:
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			c.mu.Unlock()
			if !ok {
				continue
			}
			select {
			case ch <- msg:
			default:
				c.logger.Warn("dropping duplicate bridge response", "id", msg.ID, "name", msg.Name, "key", msg.Key)
			}
		case ActionRequest:
			// The plugin exposes no methods to the host.
			_ = c.write(Message{Action: ActionResponse, ID: msg.ID, Name: msg.Name, Key: msg.Key,
				Error: fmt.Sprintf("method %s not exposed by %s", msg.Key, c.name)})
		default:
			c.logger.Debug("ignoring bridge message", "action", msg.Action, "key", msg.Key)
		}
	}
}

func (c *Conn) fail(err error) {
	c.doneOnce.Do(func() {
		c.err = err
		close(c.done)
	})
}

func (c *Conn) closeErr() error {
	<-c.done
	return c.err
}
