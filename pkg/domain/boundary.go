package domain

// CommandKind names an instruction sent to the process that owns the connections.
type CommandKind string

const (
	CommandAddAccount        CommandKind = "add-account"
	CommandConnectAccount    CommandKind = "connect-account"
	CommandSendStanza        CommandKind = "send-stanza"
	CommandDisconnectAccount CommandKind = "disconnect-account"
	CommandRemoveAccount     CommandKind = "remove-account"
)

// Command is one message of the engine -> transport direction.
type Command struct {
	Kind      CommandKind `json:"type"`
	AccountID string      `json:"accountId"`
	JID       string      `json:"jid,omitempty"`
	Host      string      `json:"host,omitempty"`
	Port      int         `json:"port,omitempty"`
	Payload   string      `json:"payload,omitempty"`
}

// InboundKind names a notification from the transport.
type InboundKind string

const (
	InboundStanzaResponse InboundKind = "stanza-response"
	InboundAccountStatus  InboundKind = "account-status"
)

// Inbound is one message of the transport -> engine direction.
type Inbound struct {
	Kind      InboundKind `json:"type"`
	AccountID string      `json:"accountId"`
	Payload   string      `json:"payload,omitempty"`
	Status    string      `json:"status,omitempty"`
	Error     string      `json:"error,omitempty"`
}
