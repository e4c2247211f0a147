// Package bridge talks to the host environment (an IDE plugin bridge or a local project
// emulating one) through named remote methods and an event channel.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pendergraft/contraverify/internal/compilation"
)

// Namespaces and methods consumed from the host
const (
	NamespaceSolidity = "solidity"
	NamespaceNetwork  = "network"

	MethodGetCompilationResult = "getCompilationResult"
	MethodDetectNetwork        = "detectNetwork"

	// EventStatusChanged is the event used to report plugin status to the host
	EventStatusChanged = "statusChanged"
)

// Conn is the raw message-passing interface of a host bridge
type Conn interface {
	// OnLoad blocks until the host connection is established.
	OnLoad(ctx context.Context) error
	// Call invokes namespace.method on the host and returns the raw JSON result.
	Call(ctx context.Context, namespace, method string, args ...any) (json.RawMessage, error)
	// Emit sends a fire-and-forget notification to the host.
	Emit(ctx context.Context, event string, payload any) error
	Close() error
}

// Network is the network reported by the host
type Network struct {
	ID   NetworkID `json:"id"`
	Name string    `json:"name"`
}

// NetworkID holds a network or chain id sent either as a JSON string or a number
type NetworkID string

// UnmarshalJSON accepts "5", 5 and null
func (id *NetworkID) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = NetworkID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("network id must be a string or number: %s", data)
	}
	*id = NetworkID(n.String())
	return nil
}

// Status is the payload of a statusChanged event
type Status struct {
	Key   string `json:"key"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Host is a typed facade over a Conn
type Host struct {
	conn Conn
}

// NewHost wraps conn
func NewHost(conn Conn) *Host {
	return &Host{conn: conn}
}

// OnLoad waits for the host to be ready
func (h *Host) OnLoad(ctx context.Context) error {
	return h.conn.OnLoad(ctx)
}

// GetCompilationResult returns the current compilation result, or nil when the host has none.
func (h *Host) GetCompilationResult(ctx context.Context) (*compilation.Result, error) {
	raw, err := h.conn.Call(ctx, NamespaceSolidity, MethodGetCompilationResult)
	if err != nil {
		return nil, fmt.Errorf("calling %s.%s: %w", NamespaceSolidity, MethodGetCompilationResult, err)
	}
	if isNull(raw) {
		return nil, nil
	}

	var result compilation.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding compilation result: %w", err)
	}
	return &result, nil
}

// DetectNetwork returns the network the host is connected to, or nil when unknown.
func (h *Host) DetectNetwork(ctx context.Context) (*Network, error) {
	raw, err := h.conn.Call(ctx, NamespaceNetwork, MethodDetectNetwork)
	if err != nil {
		return nil, fmt.Errorf("calling %s.%s: %w", NamespaceNetwork, MethodDetectNetwork, err)
	}
	if isNull(raw) {
		return nil, nil
	}

	var network Network
	if err := json.Unmarshal(raw, &network); err != nil {
		return nil, fmt.Errorf("decoding network: %w", err)
	}
	return &network, nil
}

// EmitStatus sends a statusChanged event
func (h *Host) EmitStatus(ctx context.Context, status Status) error {
	return h.conn.Emit(ctx, EventStatusChanged, status)
}

// Close closes the underlying connection
func (h *Host) Close() error {
	return h.conn.Close()
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
