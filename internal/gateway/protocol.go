package gateway

import (
	"encoding/json"

	"github.com/genricoloni/navicord/internal/domain"
)

// Gateway opcodes
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opPresenceUpdate = 3
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

// closeAuthenticationFailed is sent by the server when the token is rejected
const closeAuthenticationFailed = 4004

// frame is an outbound gateway message
type frame struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

// inbound is a gateway message as received; only the sequence and opcode matter here
type inbound struct {
	Op int             `json:"op"`
	S  *int64          `json:"s"`
	T  *string         `json:"t"`
	D  json.RawMessage `json:"d"`
}

// Properties describe the connecting client in the identify handshake
type Properties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type identifyData struct {
	Token      string     `json:"token"`
	Intents    int        `json:"intents"`
	Properties Properties `json:"properties"`
}

type presenceData struct {
	Since      *int64             `json:"since"`
	Activities []*domain.Activity `json:"activities"`
	Status     *string            `json:"status"`
	AFK        *bool              `json:"afk"`
}

func identifyFrame(token string, props Properties) frame {
	return frame{Op: opIdentify, D: identifyData{Token: token, Intents: 0, Properties: props}}
}

func heartbeatFrame(seq *int64) frame {
	return frame{Op: opHeartbeat, D: seq}
}

func presenceFrame(activity *domain.Activity, status string) frame {
	afk := false
	return frame{Op: opPresenceUpdate, D: presenceData{
		Activities: []*domain.Activity{activity},
		Status:     &status,
		AFK:        &afk,
	}}
}

// clearFrame removes the activity; status and afk are left to the server
func clearFrame() frame {
	return frame{Op: opPresenceUpdate, D: presenceData{
		Activities: []*domain.Activity{nil},
	}}
}
