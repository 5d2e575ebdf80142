package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/edumarques81/stellar-queue/internal/domain/queue"
)

// Message is a decoded inbound command.
type Message interface {
	Command() string
}

// SetState carries the server's full snapshot and this client's role.
type SetState struct {
	Role  queue.Role
	State queue.State
}

func (SetState) Command() string { return CommandSetState }

// UpdateLibrary asks the host to refresh its catalog.
type UpdateLibrary struct {
	LastModified string
}

func (UpdateLibrary) Command() string { return CommandUpdateLibrary }

// EndSession is terminal: the user must authenticate again.
type EndSession struct{}

func (EndSession) Command() string { return CommandEndSession }

// Sessions lists the user's active sessions. It is informational only.
type Sessions struct {
	Raw json.RawMessage
}

func (Sessions) Command() string { return CommandSessions }

// Frame is a decoded inbound frame.
type Frame struct {
	// SessionUUID is set when the frame carried a session_uuid field.
	SessionUUID *string
	Message     Message
}

type inboundHeader struct {
	Command     string  `json:"command"`
	SessionUUID *string `json:"session_uuid"`
}

type inboundSetState struct {
	StatePayload
	Role queue.Role `json:"role"`
}

type inboundUpdateLibrary struct {
	LastModified json.RawMessage `json:"lastmodified"`
}

// Decode parses a raw frame. For unknown commands the returned Frame still
// carries the session uuid alongside ErrUnknownCommand.
func Decode(raw []byte) (Frame, error) {
	var header inboundHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if header.Command == "" {
		return Frame{}, fmt.Errorf("%w: missing command", ErrMalformedFrame)
	}

	frame := Frame{SessionUUID: header.SessionUUID}

	switch header.Command {
	case CommandSetState:
		var in inboundSetState
		if err := json.Unmarshal(raw, &in); err != nil {
			return frame, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, header.Command, err)
		}
		frame.Message = SetState{Role: in.Role, State: in.StatePayload.State()}
	case CommandUpdateLibrary:
		var in inboundUpdateLibrary
		if err := json.Unmarshal(raw, &in); err != nil {
			return frame, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, header.Command, err)
		}
		frame.Message = UpdateLibrary{LastModified: marker(in.LastModified)}
	case CommandEndSession:
		frame.Message = EndSession{}
	case CommandSessions:
		frame.Message = Sessions{Raw: json.RawMessage(raw)}
	default:
		return frame, fmt.Errorf("%w: %q", ErrUnknownCommand, header.Command)
	}
	return frame, nil
}

// marker renders the lastmodified field, which servers send either as a
// string or as a number.
func marker(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
