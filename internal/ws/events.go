package ws

import "encoding/json"

// Envelope frames every inbound and outbound message: a named event plus its
// JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names.
const (
	EvtJoin         = "join"
	EvtStartAIGame  = "start-ai-game"
	EvtMove         = "move"
	EvtSendMessage  = "send-message"
	EvtPeerReady    = "peer-ready"
	EvtInitiateCall = "initiate-call"
	EvtCallEnded    = "call-ended"
)

// startAIGamePayload is the `start-ai-game` payload.
type startAIGamePayload struct {
	PlayerColor string `json:"playerColor"`
}

// signalPayload covers peer-ready / initiate-call / call-ended. RoomID is
// accepted as either a JSON number or string; clients are not consistent.
type signalPayload struct {
	RoomID json.Number `json:"roomId"`
	PeerID string      `json:"peerId,omitempty"`
}

// peerConnectedPayload is forwarded to the opponent on peer-ready.
type peerConnectedPayload struct {
	PeerID string `json:"peerId"`
}

func marshalRaw(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
