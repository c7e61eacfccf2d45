package wsbridge

import "encoding/json"

// Operations sent by the gateway.
const (
	opOpen        = "open"
	opSend        = "send"
	opPairingCode = "pairing_code"
	opLogout      = "logout"
)

// eventResult is the bridge's reply to an operation. Other event names
// are transport.EventType values.
const eventResult = "result"

// frame is the JSON envelope exchanged with the bridge in both directions.
type frame struct {
	ID    uint64          `json:"id,omitempty"`
	Op    string          `json:"op,omitempty"`
	Event string          `json:"event,omitempty"`
	OK    bool            `json:"ok,omitempty"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type openPayload struct {
	Identity    string          `json:"identity"`
	Credentials json.RawMessage `json:"credentials,omitempty"`
}

type sendPayload struct {
	To       string `json:"to"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type pairingPayload struct {
	Phone string `json:"phone"`
}

type pairingResult struct {
	Code string `json:"code"`
}
