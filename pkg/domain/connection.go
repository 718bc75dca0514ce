package domain

import "time"

// ConnectionStatus is a transition reported by the transport for one account.
type ConnectionStatus string

const (
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusError        ConnectionStatus = "error"
)

// ParseConnectionStatus normalizes transport status names.
// Transports report "online" and "open" for an established session.
func ParseConnectionStatus(s string) (ConnectionStatus, bool) {
	switch s {
	case "connecting", "opening", "connect":
		return StatusConnecting, true
	case "connected", "online", "open":
		return StatusConnected, true
	case "disconnected", "offline", "closed", "disconnect":
		return StatusDisconnected, true
	case "error":
		return StatusError, true
	}
	return "", false
}

// EventKind distinguishes the items of an account stream.
type EventKind string

const (
	EventMessage EventKind = "message"
	EventStatus  EventKind = "status"
)

// ConnectionEvent is one item of an account's inbound stream.
type ConnectionEvent struct {
	Kind    EventKind        `json:"kind"`
	Account string           `json:"account"`
	Payload string           `json:"payload,omitempty"`
	Status  ConnectionStatus `json:"status,omitempty"`
	Error   string           `json:"error,omitempty"`
	Time    time.Time        `json:"time"`
}

// MessageEvent builds an inbound message event.
func MessageEvent(account, payload string) ConnectionEvent {
	return ConnectionEvent{Kind: EventMessage, Account: account, Payload: payload, Time: time.Now()}
}

// StatusEvent builds a status transition event.
func StatusEvent(account string, status ConnectionStatus, errMsg string) ConnectionEvent {
	return ConnectionEvent{Kind: EventStatus, Account: account, Status: status, Error: errMsg, Time: time.Now()}
}
