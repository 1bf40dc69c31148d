package models

// Websocket message types.
const (
	MessageInitial = "INITIAL"
	MessageUpdate  = "UPDATE"
)

// MRunMessage is what the websocket hub sends to clients.
type MRunMessage struct {
	Type      string       `json:"type"`
	Runs      []MRunReport `json:"runs"`
	Timestamp int64        `json:"timestamp"`
}

// MSubscribeCommand is sent by a client to narrow the symbols it hears about.
// An empty Symbols list means all symbols.
type MSubscribeCommand struct {
	Command string   `json:"command"`
	Symbols []string `json:"symbols"`
}
